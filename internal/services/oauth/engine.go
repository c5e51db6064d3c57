// Package oauth implements the authorization-code and refresh flows for
// token-based integrations.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claviger/internal/common"
	"github.com/ternarybob/claviger/internal/interfaces"
	"github.com/ternarybob/claviger/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	// ExpiryMargin is how close to expiry a token may get before it is
	// refreshed rather than served.
	ExpiryMargin = 60 * time.Second

	refreshRetries = 2
	refreshBackoff = time.Second
)

// Engine implements the OAuth2 token lifecycle: authorize URL construction,
// one-shot code exchange, and expiry-aware refresh. Refreshes are
// single-flighted per AccountKey because providers may invalidate the prior
// refresh token once used; duplicate concurrent refreshes would race one
// request into permanent invalidation.
type Engine struct {
	store     interfaces.CredentialStore
	states    interfaces.AuthStateTracker
	config    *common.Config
	providers map[string]Provider
	logger    arbor.ILogger

	refreshGroup singleflight.Group
	pending      *stateRegistry
}

// NewEngine creates an OAuth engine over the given store.
func NewEngine(store interfaces.CredentialStore, states interfaces.AuthStateTracker, config *common.Config, logger arbor.ILogger) *Engine {
	return &Engine{
		store:     store,
		states:    states,
		config:    config,
		providers: defaultProviders,
		logger:    logger,
		pending:   newStateRegistry(),
	}
}

// HasProvider reports whether an OAuth provider is registered for an
// integration.
func (e *Engine) HasProvider(integration string) bool {
	_, ok := e.providers[integration]
	return ok
}

// BuildAuthorizeURL returns the provider consent URL for an integration and
// account. The state parameter binds the callback to the originating key.
func (e *Engine) BuildAuthorizeURL(integration, account, redirectURI string) (string, error) {
	conf, err := e.oauthConfig(integration, redirectURI)
	if err != nil {
		return "", err
	}

	key := models.NewAccountKey(integration, account)
	state := e.pending.issue(key, redirectURI)

	opts := []oauth2.AuthCodeOption{}
	for k, v := range e.providers[integration].ExtraAuthParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return conf.AuthCodeURL(state, opts...), nil
}

// ExchangeCode performs the one-shot code exchange for the key bound to the
// state parameter and stores the resulting credential, overwriting any prior
// record for that key.
func (e *Engine) ExchangeCode(ctx context.Context, state, code string) (*models.CredentialRecord, error) {
	bound, ok := e.pending.claim(state)
	if !ok {
		return nil, &common.AuthError{
			Integration: "oauth",
			Message:     "unknown or expired state parameter; restart the setup flow",
		}
	}
	key := bound.key

	conf, err := e.oauthConfig(key.Integration, bound.redirectURI)
	if err != nil {
		return nil, err
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, &common.AuthError{
			Integration: key.Integration,
			Account:     key.Account,
			Message:     "code exchange failed; the code may be invalid or expired",
			Err:         err,
		}
	}

	record := models.NewOAuthRecord(key, &models.OAuthCredential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		Scopes:       e.providers[key.Integration].Scopes,
	})
	if err := e.store.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist exchanged token for %s: %w", key, err)
	}
	e.states.SetState(key, models.StateAuthenticated)

	e.logger.Info().
		Str("key", key.String()).
		Str("expiry", token.Expiry.Format(time.RFC3339)).
		Msg("OAuth code exchanged and credential stored")
	return record, nil
}

// GetValidCredential returns the stored credential if its expiry is more than
// ExpiryMargin in the future; otherwise it performs exactly one refresh. A
// rejected refresh transitions the key to Expired and returns an AuthError:
// re-authorization, not retry, is required.
func (e *Engine) GetValidCredential(ctx context.Context, integration, account string) (*models.OAuthCredential, error) {
	key := models.NewAccountKey(integration, account)

	record, err := e.store.Get(ctx, key)
	if err != nil {
		if err == interfaces.ErrNotFound {
			return nil, &common.AuthError{
				Integration: integration,
				Account:     account,
				Message:     fmt.Sprintf("not authenticated; visit /auth/%s/setup to connect", integration),
			}
		}
		return nil, err
	}
	if record.Kind != models.KindOAuth || record.OAuth == nil {
		return nil, fmt.Errorf("credential for %s is not an OAuth credential", key)
	}

	if time.Until(record.OAuth.Expiry) > ExpiryMargin {
		return record.OAuth, nil
	}

	return e.refresh(ctx, key, record.OAuth)
}

// refresh coalesces concurrent callers for the same key into one outbound
// refresh; they all share its result.
func (e *Engine) refresh(ctx context.Context, key models.AccountKey, current *models.OAuthCredential) (*models.OAuthCredential, error) {
	v, err, _ := e.refreshGroup.Do(key.String(), func() (interface{}, error) {
		// Re-read: a refresh that completed while we queued already
		// produced a fresh credential.
		record, err := e.store.Get(ctx, key)
		if err == nil && record.OAuth != nil && time.Until(record.OAuth.Expiry) > ExpiryMargin {
			return record.OAuth, nil
		}
		return e.doRefresh(ctx, key, current)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.OAuthCredential), nil
}

func (e *Engine) doRefresh(ctx context.Context, key models.AccountKey, current *models.OAuthCredential) (*models.OAuthCredential, error) {
	if current.RefreshToken == "" {
		e.states.SetState(key, models.StateExpired)
		return nil, &common.AuthError{
			Integration: key.Integration,
			Account:     key.Account,
			Message:     "access token expired and no refresh token is stored; re-authorization required",
		}
	}

	conf, err := e.oauthConfig(key.Integration, "")
	if err != nil {
		return nil, err
	}

	var token *oauth2.Token
	for attempt := 0; ; attempt++ {
		token, err = conf.TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken}).Token()
		if err == nil {
			break
		}
		if attempt >= refreshRetries || !isTransient(err) {
			e.states.SetState(key, models.StateExpired)
			e.logger.Warn().
				Str("key", key.String()).
				Err(err).
				Msg("Token refresh rejected by provider")
			return nil, &common.AuthError{
				Integration: key.Integration,
				Account:     key.Account,
				Message:     fmt.Sprintf("token refresh failed; visit /auth/%s/setup to re-authorize", key.Integration),
				Err:         err,
			}
		}

		backoff := refreshBackoff << attempt
		e.logger.Debug().
			Str("key", key.String()).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Transient refresh failure, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	refreshed := &models.OAuthCredential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		Scopes:       current.Scopes,
	}
	// Providers that do not rotate refresh tokens omit them from the
	// refresh response; keep the stored one.
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = current.RefreshToken
	}

	if err := e.store.Put(ctx, models.NewOAuthRecord(key, refreshed)); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed token for %s: %w", key, err)
	}
	e.states.SetState(key, models.StateAuthenticated)

	e.logger.Info().
		Str("key", key.String()).
		Str("expiry", refreshed.Expiry.Format(time.RFC3339)).
		Msg("OAuth token refreshed")
	return refreshed, nil
}

// isTransient distinguishes network-level failures worth retrying from a
// provider rejecting the refresh token.
func isTransient(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	// Connection-level failures arrive as url.Error wraps.
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
