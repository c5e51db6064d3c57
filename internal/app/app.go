package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claviger/internal/common"
	"github.com/ternarybob/claviger/internal/handlers"
	"github.com/ternarybob/claviger/internal/interfaces"
	"github.com/ternarybob/claviger/internal/services/credentials"
	"github.com/ternarybob/claviger/internal/services/oauth"
	"github.com/ternarybob/claviger/internal/services/ratelimit"
	"github.com/ternarybob/claviger/internal/services/session"
	"github.com/ternarybob/claviger/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Store    interfaces.CredentialStore
	Tracker  interfaces.AuthStateTracker
	Governor interfaces.RateGovernor

	Engine    *oauth.Engine
	Automator *session.Automator
	Client    *session.Client
	Facade    *credentials.Facade
	Watchdog  *session.Watchdog

	// HTTP handlers
	AuthHandler   *handlers.AuthHandler
	StatusHandler *handlers.StatusHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.initServices()
	app.initHandlers()

	if err := app.Watchdog.Start(); err != nil {
		return nil, fmt.Errorf("failed to start login watchdog: %w", err)
	}

	logger.Info().
		Int("integrations", len(cfg.Integrations)).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage initializes the credential store (Badger)
func (a *App) initStorage() error {
	store, err := storage.NewCredentialStore(a.Logger, a.Config)
	if err != nil {
		return err
	}
	a.Store = store

	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

func (a *App) initServices() {
	a.Tracker = credentials.NewTracker()
	a.Governor = ratelimit.NewGovernor(a.Config, a.Logger)

	a.Engine = oauth.NewEngine(a.Store, a.Tracker, a.Config, a.Logger)
	a.Automator = session.NewAutomator(a.Store, a.Tracker, a.Config, a.Logger)
	a.Client = session.NewClient(a.Store, a.Tracker,
		session.WithLogger(a.Logger),
		session.WithGovernor(a.Governor),
	)
	a.Facade = credentials.NewFacade(a.Store, a.Tracker, a.Engine, a.Automator, a.Config, a.Logger)
	a.Watchdog = session.NewWatchdog(a.Tracker, a.Config, a.Logger)
}

func (a *App) initHandlers() {
	a.AuthHandler = handlers.NewAuthHandler(a.Facade, a.Engine, a.Automator, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.Facade, a.Logger)
}

// Close shuts down background services and the storage layer.
func (a *App) Close(ctx context.Context) error {
	a.Watchdog.Stop()

	if err := a.Store.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("Failed to close credential store")
		return err
	}

	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}
