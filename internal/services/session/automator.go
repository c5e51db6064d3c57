// Package session manages browser-derived session credentials: interactive
// login automation, authenticated request execution, and cookie rotation
// bookkeeping.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claviger/internal/common"
	"github.com/ternarybob/claviger/internal/interfaces"
	"github.com/ternarybob/claviger/internal/models"
)

// submitTimeout bounds the synchronous part of StartLogin: navigating to the
// login page and submitting primary credentials.
const submitTimeout = 60 * time.Second

// LoginScript is what differs between platforms: which page to open, which
// selectors to fill, and which cookies/tokens to extract once logged in. The
// state machine and timeout/poll contract are shared.
type LoginScript interface {
	// Integration names the platform this script logs into.
	Integration() string

	// Submit navigates to the login page and submits primary credentials.
	// The browser context is passed as ctx. Errors here are non-fatal when
	// the platform's form varies; extraction decides success.
	Submit(ctx context.Context, cfg common.IntegrationConfig) error

	// Extract checks whether login has completed and, if so, captures the
	// session material. It is polled; done=false means keep waiting (the
	// user may be resolving a challenge in the browser window).
	Extract(ctx context.Context) (cred *models.SessionCredential, done bool, err error)
}

// Automator drives interactive browser logins for session-cookie
// integrations. One interactive browser per integration at a time; any
// secondary challenge (MFA code, verification prompt) is resolved by a human
// in the browser window, so completion is polled rather than awaited
// synchronously.
type Automator struct {
	store   interfaces.CredentialStore
	states  interfaces.AuthStateTracker
	config  *common.Config
	scripts map[string]LoginScript
	logger  arbor.ILogger

	mu      sync.Mutex
	flows   map[string]*interfaces.LoginFlow
	busy    map[string]bool // one login per integration at a time
}

// NewAutomator creates the login automator with the default platform scripts.
func NewAutomator(store interfaces.CredentialStore, states interfaces.AuthStateTracker, config *common.Config, logger arbor.ILogger) *Automator {
	a := &Automator{
		store:   store,
		states:  states,
		config:  config,
		scripts: make(map[string]LoginScript),
		logger:  logger,
		flows:   make(map[string]*interfaces.LoginFlow),
		busy:    make(map[string]bool),
	}
	for _, s := range []LoginScript{
		newSlackScript(logger),
		newLinkedInScript(logger),
		newInstagramScript(logger),
		newCanvasScript(logger),
	} {
		a.scripts[s.Integration()] = s
	}
	return a
}

// HasScript reports whether a login script is registered for an integration.
func (a *Automator) HasScript(integration string) bool {
	_, ok := a.scripts[integration]
	return ok
}

// StartLogin opens the login flow for (integration, account). It blocks only
// until primary credentials are submitted, then returns a flow handle while
// cookie capture continues in the background up to the configured completion
// timeout.
func (a *Automator) StartLogin(ctx context.Context, integration, account string) (*interfaces.LoginFlow, error) {
	script, ok := a.scripts[integration]
	if !ok {
		return nil, &common.AuthError{
			Integration: integration,
			Message:     "no browser login script registered",
		}
	}

	cfg := a.config.Integration(integration)
	if cfg.Username == "" || cfg.Password == "" {
		return nil, &common.ConfigError{
			Integration: integration,
			Setting:     "username/password",
		}
	}

	key := models.NewAccountKey(integration, account)

	a.mu.Lock()
	if a.busy[integration] {
		a.mu.Unlock()
		return nil, &common.AuthError{
			Integration: integration,
			Account:     account,
			Message:     "a browser login is already in progress for this integration; wait for it to finish",
		}
	}
	a.busy[integration] = true
	flow := &interfaces.LoginFlow{
		ID:        uuid.NewString(),
		Key:       key,
		State:     models.StateLoginInProgress,
		StartedAt: time.Now(),
	}
	a.flows[flow.ID] = flow
	a.mu.Unlock()

	a.states.SetState(key, models.StateLoginInProgress)

	// The flow outlives the caller's request; it carries its own deadline.
	flowCtx, flowCancel := context.WithTimeout(context.Background(), submitTimeout+a.config.Login.CompleteTimeout)

	browser, err := openBrowser(flowCtx, a.config.Browser)
	if err != nil {
		flowCancel()
		a.finishFlow(flow, nil, fmt.Errorf("failed to start browser: %w", err))
		return nil, &common.AuthError{
			Integration: integration,
			Account:     account,
			Message:     "could not start the login browser; check that Chrome is installed",
			Err:         err,
		}
	}

	a.logger.Info().
		Str("key", key.String()).
		Str("flow", flow.ID).
		Msg("Browser login started")

	// Submit primary credentials synchronously so the caller learns about
	// form-level failures immediately. Platform forms drift; extraction is
	// the arbiter of success, so submit errors are logged and tolerated.
	submitCtx, submitCancel := context.WithTimeout(browser.ctx, submitTimeout)
	if err := script.Submit(submitCtx, cfg); err != nil {
		a.logger.Warn().
			Str("key", key.String()).
			Err(err).
			Msg("Login form submission reported an error, continuing to poll for completion")
	}
	submitCancel()

	go a.pollCompletion(flowCtx, flowCancel, browser, script, flow)

	a.mu.Lock()
	snapshot := *flow
	a.mu.Unlock()
	return &snapshot, nil
}

// pollCompletion waits for the login to finish, extracting credentials once
// the script reports completion.
func (a *Automator) pollCompletion(ctx context.Context, cancel context.CancelFunc, browser *browserSession, script LoginScript, flow *interfaces.LoginFlow) {
	defer cancel()
	defer browser.Close()

	deadline := time.Now().Add(a.config.Login.CompleteTimeout)
	ticker := time.NewTicker(a.config.Login.PollInterval)
	defer ticker.Stop()

	for {
		cred, done, err := script.Extract(browser.ctx)
		if err != nil {
			a.finishFlow(flow, nil, err)
			return
		}
		if done {
			a.finishFlow(flow, cred, nil)
			return
		}

		if time.Now().After(deadline) {
			a.finishFlow(flow, nil, fmt.Errorf(
				"login timed out after %s; complete any verification prompt faster or raise login.complete_timeout",
				a.config.Login.CompleteTimeout))
			return
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			a.finishFlow(flow, nil, fmt.Errorf("login flow cancelled"))
			return
		}
	}
}

// finishFlow records the outcome, stores captured credentials, and releases
// the integration's browser slot. On failure the key returns to
// Unauthenticated, never stuck in LoginInProgress.
func (a *Automator) finishFlow(flow *interfaces.LoginFlow, cred *models.SessionCredential, flowErr error) {
	if flowErr == nil && cred != nil {
		cred.LastRotatedAt = time.Now()
		record := models.NewSessionRecord(flow.Key, cred)
		if err := a.store.Put(context.Background(), record); err != nil {
			flowErr = fmt.Errorf("login succeeded but storing the session failed: %w", err)
		}
	}

	a.mu.Lock()
	flow.CompletedAt = time.Now()
	if flowErr != nil {
		flow.State = models.StateUnauthenticated
		flow.Err = flowErr.Error()
	} else {
		flow.State = models.StateAuthenticated
	}
	delete(a.busy, flow.Key.Integration)
	a.mu.Unlock()

	if flowErr != nil {
		a.states.SetState(flow.Key, models.StateUnauthenticated)
		a.logger.Warn().
			Str("key", flow.Key.String()).
			Str("flow", flow.ID).
			Err(flowErr).
			Msg("Browser login failed")
		return
	}

	a.states.SetState(flow.Key, models.StateAuthenticated)
	a.logger.Info().
		Str("key", flow.Key.String()).
		Str("flow", flow.ID).
		Msg("Browser login completed, session stored")
}

// Flow returns the current state of a login flow by ID.
func (a *Automator) Flow(id string) (*interfaces.LoginFlow, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, ok := a.flows[id]
	if !ok {
		return nil, false
	}
	copied := *f
	return &copied, true
}
