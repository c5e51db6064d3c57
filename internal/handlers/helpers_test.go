package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/claviger/internal/common"
)

func TestRequireMethod(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/slack/setup", nil)
	assert.True(t, RequireMethod(rec, req, "POST"))

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/auth/slack/setup", nil)
	assert.False(t, RequireMethod(rec, req, "POST"))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWriteTaxonomyError_StatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{&common.AuthError{Integration: "slack", Message: "expired"}, http.StatusUnauthorized},
		{&common.RateLimitError{Integration: "slack", Operation: "messages", RetryAfter: time.Second}, http.StatusTooManyRequests},
		{&common.ConfigError{Integration: "gmail", Setting: "client_id"}, http.StatusPreconditionFailed},
		{&common.IntegrationError{Integration: "canvas", StatusCode: 502, Message: "bad gateway"}, http.StatusBadGateway},
		{errors.New("something else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		WriteTaxonomyError(rec, tt.err)
		assert.Equal(t, tt.code, rec.Code, tt.err.Error())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}
