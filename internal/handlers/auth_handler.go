package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claviger/internal/models"
	"github.com/ternarybob/claviger/internal/services/credentials"
	"github.com/ternarybob/claviger/internal/services/oauth"
	"github.com/ternarybob/claviger/internal/services/session"
)

// AuthHandler handles the /auth/* routes: browser login setup for session
// integrations, the OAuth authorize/callback pair, per-integration status,
// and credential deletion.
type AuthHandler struct {
	facade    *credentials.Facade
	engine    *oauth.Engine
	automator *session.Automator
	logger    arbor.ILogger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(facade *credentials.Facade, engine *oauth.Engine, automator *session.Automator, logger arbor.ILogger) *AuthHandler {
	return &AuthHandler{
		facade:    facade,
		engine:    engine,
		automator: automator,
		logger:    logger,
	}
}

// accountParam returns the ?account= query value, defaulting to "default".
func accountParam(r *http.Request) string {
	if account := r.URL.Query().Get("account"); account != "" {
		return account
	}
	return models.DefaultAccount
}

// SessionSetupHandler starts a browser login flow for a session integration.
// The flow runs in the background; the response carries a flow ID the caller
// polls via the status route.
func (h *AuthHandler) SessionSetupHandler(integration string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		account := accountParam(r)

		flow, err := h.automator.StartLogin(r.Context(), integration, account)
		if err != nil {
			h.logger.Error().Err(err).
				Str("integration", integration).
				Str("account", account).
				Msg("Failed to start login flow")
			WriteTaxonomyError(w, err)
			return
		}

		h.logger.Info().
			Str("integration", integration).
			Str("account", account).
			Str("flow_id", flow.ID).
			Msg("Login flow started")

		WriteJSON(w, http.StatusAccepted, models.StatusResponse{
			Integration:   integration,
			Account:       account,
			Authenticated: false,
			Message:       "login in progress; poll status until authenticated",
			FlowID:        flow.ID,
		})
	}
}

// OAuthSetupHandler redirects the browser to the provider's consent page.
func (h *AuthHandler) OAuthSetupHandler(w http.ResponseWriter, r *http.Request, integration string) {
	account := accountParam(r)

	redirectURI := "http://" + r.Host + "/auth/" + integration + "/callback"
	authURL, err := h.engine.BuildAuthorizeURL(integration, account, redirectURI)
	if err != nil {
		h.logger.Error().Err(err).
			Str("integration", integration).
			Msg("Failed to build authorize URL")
		WriteTaxonomyError(w, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// CallbackHandler completes the OAuth flow: validates state, exchanges the
// code for tokens, and persists the credential.
func (h *AuthHandler) CallbackHandler(w http.ResponseWriter, r *http.Request, integration string) {
	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		h.logger.Warn().
			Str("integration", integration).
			Str("error", errMsg).
			Msg("Provider returned an authorization error")
		WriteError(w, http.StatusBadRequest, "authorization denied: "+errMsg)
		return
	}

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		WriteError(w, http.StatusBadRequest, "missing state or code parameter")
		return
	}

	record, err := h.engine.ExchangeCode(r.Context(), state, code)
	if err != nil {
		h.logger.Error().Err(err).
			Str("integration", integration).
			Msg("Code exchange failed")
		WriteTaxonomyError(w, err)
		return
	}

	h.logger.Info().
		Str("key", record.Key.String()).
		Msg("OAuth credentials stored")

	WriteJSON(w, http.StatusOK, models.StatusResponse{
		Integration:   record.Key.Integration,
		Account:       record.Key.Account,
		Authenticated: true,
		Message:       "authentication complete",
	})
}

// StatusHandler reports the auth state for one integration/account pair.
// When a ?flow= ID is supplied the response also reflects that login flow.
func (h *AuthHandler) StatusHandler(w http.ResponseWriter, r *http.Request, integration string) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	account := accountParam(r)
	key := models.NewAccountKey(integration, account)

	if flowID := r.URL.Query().Get("flow"); flowID != "" {
		flow, ok := h.automator.Flow(flowID)
		if !ok {
			WriteError(w, http.StatusNotFound, "unknown flow id")
			return
		}
		resp := models.StatusResponse{
			Integration:   flow.Key.Integration,
			Account:       flow.Key.Account,
			Authenticated: flow.State == models.StateAuthenticated,
			FlowID:        flow.ID,
		}
		switch flow.State {
		case models.StateAuthenticated:
			resp.Message = "authentication complete"
		case models.StateLoginInProgress:
			resp.Message = "login in progress"
		default:
			resp.Message = "login failed"
			if flow.Err != "" {
				resp.Message = "login failed: " + flow.Err
			}
		}
		WriteJSON(w, http.StatusOK, resp)
		return
	}

	status := h.facade.StatusFor(r.Context(), key)
	WriteJSON(w, http.StatusOK, status)
}

// DeleteHandler removes stored credentials for an integration/account pair.
func (h *AuthHandler) DeleteHandler(w http.ResponseWriter, r *http.Request, integration string) {
	account := accountParam(r)
	key := models.NewAccountKey(integration, account)

	if err := h.facade.Logout(r.Context(), key); err != nil {
		h.logger.Error().Err(err).
			Str("key", key.String()).
			Msg("Failed to delete credentials")
		WriteTaxonomyError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "credentials deleted for " + key.String(),
	})
}

// DispatchHandler routes /auth/{integration}/{action} requests. Session
// integrations with dedicated setup routes are registered ahead of this
// handler, so setup here always means OAuth.
func (h *AuthHandler) DispatchHandler(w http.ResponseWriter, r *http.Request) {
	integration, action, ok := parseAuthPath(r.URL.Path)
	if !ok {
		WriteError(w, http.StatusNotFound, "not found")
		return
	}

	if r.Method == http.MethodDelete && action == "" {
		h.DeleteHandler(w, r, integration)
		return
	}

	switch action {
	case "setup":
		if h.automator.HasScript(integration) {
			h.SessionSetupHandler(integration)(w, r)
			return
		}
		h.OAuthSetupHandler(w, r, integration)
	case "callback":
		h.CallbackHandler(w, r, integration)
	case "status":
		h.StatusHandler(w, r, integration)
	default:
		WriteError(w, http.StatusNotFound, "not found")
	}
}

// parseAuthPath splits "/auth/{integration}" or "/auth/{integration}/{action}".
func parseAuthPath(path string) (integration, action string, ok bool) {
	trimmed := strings.Trim(strings.TrimPrefix(path, "/auth/"), "/")
	if trimmed == "" {
		return "", "", false
	}
	parts := strings.Split(trimmed, "/")
	switch len(parts) {
	case 1:
		return parts[0], "", true
	case 2:
		return parts[0], parts[1], true
	default:
		return "", "", false
	}
}
