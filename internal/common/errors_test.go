package common

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAuthError_Message(t *testing.T) {
	err := &AuthError{Integration: "slack", Account: "default", Message: "session rejected"}
	assert.Equal(t, "slack: session rejected", err.Error())

	err = &AuthError{Integration: "slack", Account: "work", Message: "session rejected"}
	assert.Contains(t, err.Error(), "account=work")
}

func TestAuthError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &AuthError{Integration: "gmail", Message: "refresh failed", Err: cause}
	assert.ErrorIs(t, err, cause)
}

func TestTaxonomyHelpers(t *testing.T) {
	authErr := &AuthError{Integration: "linkedin", Message: "expired"}
	rateErr := &RateLimitError{Integration: "linkedin", Operation: "search", RetryAfter: 30 * time.Second}
	cfgErr := &ConfigError{Integration: "gmail", Setting: "client_id"}

	assert.True(t, IsAuthError(authErr))
	assert.True(t, IsRateLimited(rateErr))
	assert.True(t, IsConfigError(cfgErr))

	assert.False(t, IsAuthError(rateErr))
	assert.False(t, IsRateLimited(cfgErr))
	assert.False(t, IsConfigError(authErr))

	// Helpers see through wrapping
	wrapped := fmt.Errorf("call failed: %w", authErr)
	assert.True(t, IsAuthError(wrapped))
}

func TestRateLimitError_RetryAfterHint(t *testing.T) {
	withHint := &RateLimitError{Integration: "slack", Operation: "messages", RetryAfter: 10 * time.Second}
	assert.Contains(t, withHint.Error(), "retry after 10s")

	noHint := &RateLimitError{Integration: "slack", Operation: "messages"}
	assert.NotContains(t, noHint.Error(), "retry after")
}
