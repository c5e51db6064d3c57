package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/claviger/internal/common"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteTaxonomyError maps the error taxonomy onto HTTP statuses so callers
// can render actionable guidance: re-authenticate, wait and retry, or fix
// configuration.
func WriteTaxonomyError(w http.ResponseWriter, err error) error {
	var authErr *common.AuthError
	if errors.As(err, &authErr) {
		return WriteError(w, http.StatusUnauthorized, authErr.Error())
	}
	var rateErr *common.RateLimitError
	if errors.As(err, &rateErr) {
		return WriteError(w, http.StatusTooManyRequests, rateErr.Error())
	}
	var cfgErr *common.ConfigError
	if errors.As(err, &cfgErr) {
		return WriteError(w, http.StatusPreconditionFailed, cfgErr.Error())
	}
	var intErr *common.IntegrationError
	if errors.As(err, &intErr) {
		return WriteError(w, http.StatusBadGateway, intErr.Error())
	}
	return WriteError(w, http.StatusInternalServerError, err.Error())
}
