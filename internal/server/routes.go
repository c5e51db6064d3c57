package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Session integrations get dedicated setup routes. These are registered
	// before the generic /auth/ prefix so the mux matches them first.
	for _, integration := range []string{"slack", "linkedin", "instagram", "canvas"} {
		mux.HandleFunc("/auth/"+integration+"/setup", s.app.AuthHandler.SessionSetupHandler(integration))
	}

	// Generic auth routes: OAuth setup/callback, status, DELETE
	mux.HandleFunc("/auth/", s.app.AuthHandler.DispatchHandler)

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/health", s.app.StatusHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not found", http.StatusNotFound)
	})

	return mux
}
