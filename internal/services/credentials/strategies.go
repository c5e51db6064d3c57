package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/claviger/internal/common"
	"github.com/ternarybob/claviger/internal/interfaces"
	"github.com/ternarybob/claviger/internal/models"
	"github.com/ternarybob/claviger/internal/services/oauth"
)

// oauthStrategy serves token-based integrations through the OAuth engine.
type oauthStrategy struct {
	engine *oauth.Engine
}

func (s *oauthStrategy) Kind() models.CredentialKind { return models.KindOAuth }

func (s *oauthStrategy) IsValid(record *models.CredentialRecord) bool {
	return record.OAuth != nil && time.Until(record.OAuth.Expiry) > oauth.ExpiryMargin
}

func (s *oauthStrategy) Refresh(ctx context.Context, key models.AccountKey) (*models.CredentialRecord, error) {
	cred, err := s.engine.GetValidCredential(ctx, key.Integration, key.Account)
	if err != nil {
		return nil, err
	}
	return models.NewOAuthRecord(key, cred), nil
}

// apiKeyStrategy serves integrations with a static configured key. The key
// never enters the store; it is materialized from config on every call.
type apiKeyStrategy struct {
	config *common.Config
}

func (s *apiKeyStrategy) Kind() models.CredentialKind { return models.KindAPIKey }

func (s *apiKeyStrategy) IsValid(record *models.CredentialRecord) bool {
	return record.APIKey != nil && record.APIKey.Key != ""
}

func (s *apiKeyStrategy) Refresh(ctx context.Context, key models.AccountKey) (*models.CredentialRecord, error) {
	apiKey := s.config.Integration(key.Integration).APIKey
	if apiKey == "" {
		return nil, &common.ConfigError{Integration: key.Integration, Setting: "api_key"}
	}
	return &models.CredentialRecord{
		Key:    key,
		Kind:   models.KindAPIKey,
		APIKey: &models.APIKeyCredential{Key: apiKey},
	}, nil
}

// sessionStrategy serves browser-derived sessions. Validity is learned from
// platform rejections, not predicted, so a stored session is served as-is;
// there is no refresh path short of a fresh browser login.
type sessionStrategy struct {
	store  interfaces.CredentialStore
	states interfaces.AuthStateTracker
}

func (s *sessionStrategy) Kind() models.CredentialKind { return models.KindSession }

func (s *sessionStrategy) IsValid(record *models.CredentialRecord) bool {
	return record.Session != nil && len(record.Session.Cookies) > 0
}

func (s *sessionStrategy) Refresh(ctx context.Context, key models.AccountKey) (*models.CredentialRecord, error) {
	return nil, &common.AuthError{
		Integration: key.Integration,
		Account:     key.Account,
		Message: fmt.Sprintf(
			"session cannot be refreshed automatically; visit /auth/%s/setup?account=%s to log in again",
			key.Integration, key.Account),
	}
}
