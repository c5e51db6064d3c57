// Package credentials is the single entry point business logic uses to
// obtain usable authentication material. It hides which auth strategy an
// integration uses behind a per-integration registry.
package credentials

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claviger/internal/common"
	"github.com/ternarybob/claviger/internal/interfaces"
	"github.com/ternarybob/claviger/internal/models"
	"github.com/ternarybob/claviger/internal/services/oauth"
	"github.com/ternarybob/claviger/internal/services/session"
)

// Facade resolves an integration's auth strategy and returns validated
// credentials, triggering OAuth refresh or flagging browser re-login as
// needed.
type Facade struct {
	store      interfaces.CredentialStore
	states     interfaces.AuthStateTracker
	engine     *oauth.Engine
	automator  *session.Automator
	config     *common.Config
	registry   map[string]interfaces.CredentialStrategy
	logger     arbor.ILogger
}

// NewFacade builds the facade and its strategy registry. An integration is
// routed to OAuth when a provider is registered, to the session strategy when
// a login script exists, and to the API-key strategy when a static key is
// configured.
func NewFacade(store interfaces.CredentialStore, states interfaces.AuthStateTracker, engine *oauth.Engine, automator *session.Automator, config *common.Config, logger arbor.ILogger) *Facade {
	f := &Facade{
		store:     store,
		states:    states,
		engine:    engine,
		automator: automator,
		config:    config,
		registry:  make(map[string]interfaces.CredentialStrategy),
		logger:    logger,
	}

	oauthStrat := &oauthStrategy{engine: engine}
	sessionStrat := &sessionStrategy{store: store, states: states}
	apiKeyStrat := &apiKeyStrategy{config: config}

	for name := range config.Integrations {
		switch {
		case automator.HasScript(name):
			f.registry[name] = sessionStrat
		case engine.HasProvider(name):
			f.registry[name] = oauthStrat
		case config.Integration(name).APIKey != "":
			f.registry[name] = apiKeyStrat
		}
	}
	// OAuth and session integrations are routable even before their
	// secrets are configured; the strategies surface the ConfigError.
	for _, name := range []string{"gmail"} {
		if _, ok := f.registry[name]; !ok {
			f.registry[name] = oauthStrat
		}
	}
	for _, name := range []string{"slack", "linkedin", "instagram", "canvas"} {
		if _, ok := f.registry[name]; !ok {
			f.registry[name] = sessionStrat
		}
	}

	return f
}

// Strategy returns the strategy serving an integration.
func (f *Facade) Strategy(integration string) (interfaces.CredentialStrategy, error) {
	s, ok := f.registry[integration]
	if !ok {
		return nil, &common.AuthError{
			Integration: integration,
			Message:     "unknown integration",
		}
	}
	return s, nil
}

// GetCredential returns validated credentials for (integration, account),
// refreshing when the strategy supports it.
func (f *Facade) GetCredential(ctx context.Context, integration, account string) (*models.CredentialRecord, error) {
	strategy, err := f.Strategy(integration)
	if err != nil {
		return nil, err
	}
	key := models.NewAccountKey(integration, account)

	// API keys never touch the store.
	if strategy.Kind() == models.KindAPIKey {
		return strategy.Refresh(ctx, key)
	}

	record, err := f.store.Get(ctx, key)
	if err != nil {
		if err == interfaces.ErrNotFound {
			return strategy.Refresh(ctx, key)
		}
		return nil, err
	}

	if f.states.State(key) == models.StateExpired || !strategy.IsValid(record) {
		return strategy.Refresh(ctx, key)
	}
	return record, nil
}

// Invalidate marks an AccountKey as expired; only a fresh login or refresh
// returns it to Authenticated.
func (f *Facade) Invalidate(key models.AccountKey) {
	f.states.SetState(key, models.StateExpired)
}

// Logout deletes the stored record for an AccountKey.
func (f *Facade) Logout(ctx context.Context, key models.AccountKey) error {
	if err := f.store.Delete(ctx, key); err != nil {
		return err
	}
	f.states.SetState(key, models.StateUnauthenticated)
	f.logger.Info().Str("key", key.String()).Msg("Credentials deleted")
	return nil
}

// Status reports, per known AccountKey, the current auth state and (for
// OAuth) the access-token expiry.
func (f *Facade) Status(ctx context.Context) ([]models.IntegrationStatus, error) {
	keys, err := f.store.ListKeys(ctx, "")
	if err != nil {
		return nil, err
	}

	seen := make(map[models.AccountKey]bool, len(keys))
	for _, key := range keys {
		seen[key] = true
	}
	// Configured integrations without a stored record still report, so an
	// operator sees what remains to be set up.
	for name := range f.registry {
		key := models.NewAccountKey(name, models.DefaultAccount)
		if !seen[key] {
			keys = append(keys, key)
			seen[key] = true
		}
	}

	statuses := make([]models.IntegrationStatus, 0, len(keys))
	for _, key := range keys {
		statuses = append(statuses, f.statusFor(ctx, key))
	}
	sort.Slice(statuses, func(i, j int) bool {
		if statuses[i].Integration != statuses[j].Integration {
			return statuses[i].Integration < statuses[j].Integration
		}
		return statuses[i].Account < statuses[j].Account
	})
	return statuses, nil
}

// StatusFor reports the auth state for a single AccountKey.
func (f *Facade) StatusFor(ctx context.Context, key models.AccountKey) models.IntegrationStatus {
	return f.statusFor(ctx, key)
}

func (f *Facade) statusFor(ctx context.Context, key models.AccountKey) models.IntegrationStatus {
	status := models.IntegrationStatus{
		Integration: key.Integration,
		Account:     key.Account,
		State:       f.states.State(key),
	}

	strategy, err := f.Strategy(key.Integration)
	if err == nil && strategy.Kind() == models.KindAPIKey {
		status.Kind = models.KindAPIKey
		if f.config.Integration(key.Integration).APIKey != "" {
			status.State = models.StateAuthenticated
			status.Message = "API key configured"
		} else {
			status.State = models.StateUnauthenticated
			status.Message = "API key not configured"
		}
		return status
	}

	record, err := f.store.Get(ctx, key)
	if err != nil {
		if status.State == models.StateUnauthenticated {
			status.Message = fmt.Sprintf("not authenticated; visit /auth/%s/setup", key.Integration)
		}
		return status
	}

	status.Kind = record.Kind
	switch record.Kind {
	case models.KindOAuth:
		expiry := record.OAuth.Expiry
		status.TokenExpiry = &expiry
		if status.State == models.StateUnauthenticated {
			if time.Until(expiry) > oauth.ExpiryMargin || record.OAuth.RefreshToken != "" {
				status.State = models.StateAuthenticated
			} else {
				status.State = models.StateExpired
			}
		}
	case models.KindSession:
		rotated := record.Session.LastRotatedAt
		status.LastRotatedAt = &rotated
		if status.State == models.StateUnauthenticated {
			status.State = models.StateAuthenticated
		}
	}
	return status
}
