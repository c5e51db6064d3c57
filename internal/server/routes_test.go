package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claviger/internal/app"
	"github.com/ternarybob/claviger/internal/common"
	"github.com/ternarybob/claviger/internal/handlers"
	"github.com/ternarybob/claviger/internal/services/credentials"
	"github.com/ternarybob/claviger/internal/services/oauth"
	"github.com/ternarybob/claviger/internal/services/session"
	"github.com/ternarybob/claviger/internal/storage/memory"
)

func newTestServer(t *testing.T, config *common.Config) *Server {
	t.Helper()
	if config == nil {
		config = common.NewDefaultConfig()
	}

	logger := arbor.NewLogger()
	store := memory.NewCredentialStorage()
	states := credentials.NewTracker()
	engine := oauth.NewEngine(store, states, config, logger)
	automator := session.NewAutomator(store, states, config, logger)
	facade := credentials.NewFacade(store, states, engine, automator, config, logger)

	application := &app.App{
		Config:        config,
		Logger:        logger,
		Store:         store,
		Tracker:       states,
		Engine:        engine,
		Automator:     automator,
		Facade:        facade,
		AuthHandler:   handlers.NewAuthHandler(facade, engine, automator, logger),
		StatusHandler: handlers.NewStatusHandler(facade, logger),
	}
	return New(application)
}

func TestRoutes_SessionSetupPrecedesGenericAuth(t *testing.T) {
	srv := newTestServer(t, nil)

	// A session integration's setup route must hit the browser login
	// handler, not the OAuth redirect. Without configured credentials it
	// reports the missing setting instead of an unknown-provider error.
	req := httptest.NewRequest(http.MethodPost, "/auth/linkedin/setup", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Contains(t, rec.Body.String(), "username/password")
}

func TestRoutes_OAuthSetupViaGenericAuth(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Integrations["gmail"] = common.IntegrationConfig{ClientID: "id", ClientSecret: "secret"}
	srv := newTestServer(t, config)

	req := httptest.NewRequest(http.MethodGet, "http://localhost:9000/auth/gmail/setup", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "accounts.google.com")
}

func TestRoutes_APIStatus(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "integrations")
}

func TestRoutes_APIHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestRoutes_UnknownAPIRoute(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/nonexistent", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
