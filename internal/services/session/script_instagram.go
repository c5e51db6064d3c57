package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claviger/internal/common"
	"github.com/ternarybob/claviger/internal/models"
)

const instagramLoginURL = "https://www.instagram.com/accounts/login/"

// instagramScript logs into Instagram and captures the sessionid cookie plus
// csrftoken, used as the X-CSRFToken header on web API calls.
type instagramScript struct {
	logger arbor.ILogger
}

func newInstagramScript(logger arbor.ILogger) *instagramScript {
	return &instagramScript{logger: logger}
}

func (s *instagramScript) Integration() string { return "instagram" }

func (s *instagramScript) Submit(ctx context.Context, cfg common.IntegrationConfig) error {
	if err := chromedp.Run(ctx,
		chromedp.Navigate(instagramLoginURL),
		chromedp.WaitVisible(`input[name="username"]`, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="username"]`, cfg.Username, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="password"]`, cfg.Password, chromedp.ByQuery),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}

	s.logger.Debug().Msg("Instagram credentials submitted")
	return nil
}

func (s *instagramScript) Extract(ctx context.Context) (*models.SessionCredential, bool, error) {
	loc, err := currentURL(ctx)
	if err != nil {
		return nil, false, nil
	}

	cookies, err := cookieMap(ctx)
	if err != nil {
		return nil, false, nil
	}

	// Still on the login (or checkpoint) page means the user has not
	// finished; sessionid only appears after a completed login.
	if cookies["sessionid"] == "" || strings.Contains(loc, "/accounts/login") {
		return nil, false, nil
	}

	return &models.SessionCredential{
		Cookies:   cookies,
		CSRFToken: cookies["csrftoken"],
		Tokens: map[string]string{
			"ds_user_id": cookies["ds_user_id"],
		},
	}, true, nil
}
