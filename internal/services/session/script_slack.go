package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claviger/internal/common"
	"github.com/ternarybob/claviger/internal/models"
)

// slackLocalConfigJS pulls the xoxc client token and team identity out of
// Slack's localStorage. The web client keeps them in localConfig_v2 keyed by
// team.
const slackLocalConfigJS = `(() => {
	try {
		const config = JSON.parse(localStorage.getItem('localConfig_v2'));
		if (config && config.teams) {
			const teamKeys = Object.keys(config.teams);
			if (teamKeys.length > 0) {
				const team = config.teams[teamKeys[0]];
				return JSON.stringify({
					token: team.token || "",
					team_id: teamKeys[0],
					user_id: team.user_id || "",
				});
			}
		}
	} catch (e) {}
	return "";
})()`

// slackScript logs into a Slack workspace and captures the d cookie
// (xoxd- value) plus the xoxc client token. Both are required on every web
// API request.
type slackScript struct {
	logger arbor.ILogger
}

func newSlackScript(logger arbor.ILogger) *slackScript {
	return &slackScript{logger: logger}
}

func (s *slackScript) Integration() string { return "slack" }

func (s *slackScript) Submit(ctx context.Context, cfg common.IntegrationConfig) error {
	if cfg.WorkspaceURL == "" {
		return &common.ConfigError{Integration: "slack", Setting: "workspace_url"}
	}

	if err := chromedp.Run(ctx, chromedp.Navigate(cfg.WorkspaceURL)); err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}
	chromedp.Run(ctx, chromedp.Sleep(2*time.Second))

	// Workspace sign-in asks for email first, then password.
	if err := fillIfPresent(ctx, `input[type="email"], input[name="email"], input#email`, cfg.Username); err != nil {
		return err
	}
	if err := clickIfPresent(ctx, `button[type="submit"]`); err != nil {
		return err
	}
	chromedp.Run(ctx, chromedp.Sleep(2*time.Second))

	if err := fillIfPresent(ctx, `input[type="password"], input[name="password"], input#password`, cfg.Password); err != nil {
		return err
	}
	if err := clickIfPresent(ctx, `button[type="submit"]`); err != nil {
		return err
	}

	s.logger.Debug().Msg("Slack credentials submitted")
	return nil
}

func (s *slackScript) Extract(ctx context.Context) (*models.SessionCredential, bool, error) {
	raw, err := evalString(ctx, slackLocalConfigJS)
	if err != nil {
		return nil, false, nil // page mid-navigation; keep polling
	}

	var token, teamID, userID string
	if raw != "" {
		parsed := struct {
			Token  string `json:"token"`
			TeamID string `json:"team_id"`
			UserID string `json:"user_id"`
		}{}
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			token, teamID, userID = parsed.Token, parsed.TeamID, parsed.UserID
		}
	}

	cookies, err := cookieMap(ctx)
	if err != nil {
		return nil, false, nil
	}

	dCookie := cookies["d"]
	if !strings.HasPrefix(token, "xoxc-") || !strings.HasPrefix(dCookie, "xoxd-") {
		return nil, false, nil
	}

	return &models.SessionCredential{
		Cookies: cookies,
		Tokens: map[string]string{
			"xoxc_token": token,
			"team_id":    teamID,
			"user_id":    userID,
		},
	}, true, nil
}
