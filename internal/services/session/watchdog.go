package session

import (
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claviger/internal/common"
	"github.com/ternarybob/claviger/internal/interfaces"
	"github.com/ternarybob/claviger/internal/models"
)

// Watchdog periodically clears login flows stuck in LoginInProgress past the
// maximum flow duration, so a crashed or abandoned browser flow never leaves
// an AccountKey wedged.
type Watchdog struct {
	states interfaces.AuthStateTracker
	config *common.Config
	cron   *cron.Cron
	logger arbor.ILogger
}

// NewWatchdog creates the stale-login watchdog.
func NewWatchdog(states interfaces.AuthStateTracker, config *common.Config, logger arbor.ILogger) *Watchdog {
	return &Watchdog{
		states: states,
		config: config,
		cron:   cron.New(cron.WithSeconds()),
		logger: logger,
	}
}

// Start begins the sweep, running once a minute.
func (w *Watchdog) Start() error {
	_, err := w.cron.AddFunc("0 * * * * *", w.sweep)
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Debug().
		Dur("max_flow_duration", w.config.Login.MaxFlowDuration).
		Msg("Stale login watchdog started")
	return nil
}

// Stop stops the watchdog.
func (w *Watchdog) Stop() {
	w.cron.Stop()
}

// sweep returns any stale LoginInProgress keys to Unauthenticated.
func (w *Watchdog) sweep() {
	stale := w.states.StaleLogins(w.config.Login.MaxFlowDuration)
	for _, key := range stale {
		w.states.SetState(key, models.StateUnauthenticated)
		w.logger.Warn().
			Str("key", key.String()).
			Msg("Cleared stale login flow")
	}
}
