package oauth

import (
	"golang.org/x/oauth2"

	"github.com/ternarybob/claviger/internal/common"
)

// Provider describes one OAuth2 integration: endpoints, scopes and any
// non-standard authorize parameters the platform requires.
type Provider struct {
	Endpoint        oauth2.Endpoint
	Scopes          []string
	ExtraAuthParams map[string]string
}

// gmailScopes grants read, send and modify access for the mail surface.
var gmailScopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/gmail.modify",
}

// slackUserScopes are the user-level scopes for personal assistant use.
var slackUserScopes = []string{
	"channels:read",
	"channels:history",
	"groups:read",
	"groups:history",
	"im:read",
	"im:history",
	"mpim:read",
	"mpim:history",
	"chat:write",
	"search:read",
	"users:read",
	"users:read.email",
	"reactions:write",
	"reactions:read",
	"files:read",
}

// defaultProviders registers the OAuth integrations. Adding a platform means
// adding an entry here plus its secrets in configuration.
var defaultProviders = map[string]Provider{
	"gmail": {
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
		Scopes: gmailScopes,
		ExtraAuthParams: map[string]string{
			"access_type": "offline",
			"prompt":      "consent",
		},
	},
	"slack": {
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://slack.com/oauth/v2/authorize",
			TokenURL: "https://slack.com/api/oauth.v2.access",
		},
		Scopes: slackUserScopes,
	},
}

// oauthConfig assembles the oauth2.Config for an integration from the
// provider registry and configured secrets.
func (e *Engine) oauthConfig(integration, redirectURI string) (*oauth2.Config, error) {
	provider, ok := e.providers[integration]
	if !ok {
		return nil, &common.AuthError{
			Integration: integration,
			Message:     "no OAuth provider registered",
		}
	}

	secrets := e.config.Integration(integration)
	if secrets.ClientID == "" || secrets.ClientSecret == "" {
		return nil, &common.ConfigError{
			Integration: integration,
			Setting:     "client_id/client_secret",
		}
	}

	return &oauth2.Config{
		ClientID:     secrets.ClientID,
		ClientSecret: secrets.ClientSecret,
		Endpoint:     provider.Endpoint,
		Scopes:       provider.Scopes,
		RedirectURL:  redirectURI,
	}, nil
}
