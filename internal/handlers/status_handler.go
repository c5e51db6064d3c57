package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claviger/internal/common"
	"github.com/ternarybob/claviger/internal/services/credentials"
)

// StatusHandler handles HTTP requests for application status
type StatusHandler struct {
	facade *credentials.Facade
	logger arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(facade *credentials.Facade, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		facade: facade,
		logger: logger,
	}
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	statuses, err := h.facade.Status(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to collect integration status")
		WriteError(w, http.StatusInternalServerError, "failed to collect status")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version":      common.Version,
		"integrations": statuses,
	})
}

// HealthHandler handles GET /api/health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": common.Version,
	})
}
