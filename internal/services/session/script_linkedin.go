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

const linkedinLoginURL = "https://www.linkedin.com/login"

// linkedinScript logs into LinkedIn and captures the li_at session cookie and
// the JSESSIONID, whose unquoted value doubles as the Csrf-Token header on
// Voyager API calls. Verification challenges (email/phone PIN) are completed
// by the user in the browser window while Extract polls.
type linkedinScript struct {
	logger arbor.ILogger
}

func newLinkedInScript(logger arbor.ILogger) *linkedinScript {
	return &linkedinScript{logger: logger}
}

func (s *linkedinScript) Integration() string { return "linkedin" }

func (s *linkedinScript) Submit(ctx context.Context, cfg common.IntegrationConfig) error {
	if err := chromedp.Run(ctx,
		chromedp.Navigate(linkedinLoginURL),
		chromedp.WaitVisible(`input#username`, chromedp.ByQuery),
		chromedp.SendKeys(`input#username`, cfg.Username, chromedp.ByQuery),
		chromedp.SendKeys(`input#password`, cfg.Password, chromedp.ByQuery),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}

	s.logger.Debug().Msg("LinkedIn credentials submitted")
	return nil
}

func (s *linkedinScript) Extract(ctx context.Context) (*models.SessionCredential, bool, error) {
	loc, err := currentURL(ctx)
	if err != nil {
		return nil, false, nil
	}

	cookies, err := cookieMap(ctx)
	if err != nil {
		return nil, false, nil
	}

	// li_at alone is not enough: a challenge page also carries it. Wait
	// until the app itself has loaded.
	loggedIn := strings.Contains(loc, "/feed") ||
		strings.Contains(loc, "/mynetwork") ||
		strings.Contains(loc, "/messaging")
	if cookies["li_at"] == "" || !loggedIn {
		return nil, false, nil
	}

	// Let the feed settle so Cloudflare and analytics cookies land too.
	chromedp.Run(ctx, chromedp.Sleep(2*time.Second))
	if refreshed, err := cookieMap(ctx); err == nil {
		cookies = refreshed
	}

	return &models.SessionCredential{
		Cookies:   cookies,
		CSRFToken: strings.Trim(cookies["JSESSIONID"], `"`),
	}, true, nil
}
