package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claviger/internal/common"
	"github.com/ternarybob/claviger/internal/models"
)

// canvasCSRFMetaJS reads the page-embedded CSRF token, which differs from the
// _csrf_token cookie and is what Canvas expects in the X-CSRF-Token header.
const canvasCSRFMetaJS = `(() => {
	const meta = document.querySelector('meta[name="csrf-token"]');
	return meta ? meta.content : "";
})()`

// canvasScript logs into a Canvas LMS instance, typically behind an
// institution's CAS/SSO page, and captures the canvas_session cookie plus the
// CSRF token. MFA prompts are completed by the user while Extract polls.
type canvasScript struct {
	logger arbor.ILogger
}

func newCanvasScript(logger arbor.ILogger) *canvasScript {
	return &canvasScript{logger: logger}
}

func (s *canvasScript) Integration() string { return "canvas" }

func (s *canvasScript) Submit(ctx context.Context, cfg common.IntegrationConfig) error {
	if cfg.WorkspaceURL == "" {
		return &common.ConfigError{Integration: "canvas", Setting: "workspace_url"}
	}

	if err := chromedp.Run(ctx, chromedp.Navigate(cfg.WorkspaceURL)); err != nil {
		return fmt.Errorf("failed to open Canvas instance: %w", err)
	}
	chromedp.Run(ctx, chromedp.Sleep(2*time.Second))

	// Institution login pages vary; CAS commonly uses name or id selectors.
	if err := fillIfPresent(ctx, `input[name="username"], input#username`, cfg.Username); err != nil {
		return err
	}
	if err := fillIfPresent(ctx, `input[name="password"], input#password`, cfg.Password); err != nil {
		return err
	}
	if err := clickIfPresent(ctx, `button[type="submit"], input[type="submit"], button[name="submit"]`); err != nil {
		return err
	}

	s.logger.Debug().Msg("Canvas credentials submitted")
	return nil
}

func (s *canvasScript) Extract(ctx context.Context) (*models.SessionCredential, bool, error) {
	cookies, err := cookieMap(ctx)
	if err != nil {
		return nil, false, nil
	}
	if cookies["canvas_session"] == "" {
		// Some MFA flows interpose a "trust this browser" prompt.
		clickIfPresent(ctx, `button#trust-browser-button, button[name="dont_trust"]`)
		return nil, false, nil
	}

	loc, err := currentURL(ctx)
	if err != nil || strings.Contains(loc, "/login") {
		return nil, false, nil
	}

	csrfMeta, _ := evalString(ctx, canvasCSRFMetaJS)
	if csrfMeta == "" {
		csrfMeta = cookies["_csrf_token"]
	}

	return &models.SessionCredential{
		Cookies:   cookies,
		CSRFToken: csrfMeta,
	}, true, nil
}
