package common

import (
	"errors"
	"fmt"
	"time"
)

// AuthError indicates missing or rejected credentials. The caller must
// re-authenticate; retrying the same request will not succeed.
type AuthError struct {
	Integration string
	Account     string
	Message     string
	Err         error
}

func (e *AuthError) Error() string {
	if e.Account != "" && e.Account != "default" {
		return fmt.Sprintf("%s (account=%s): %s", e.Integration, e.Account, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Integration, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// RateLimitError indicates a platform quota was exhausted. RetryAfter is a
// hint for when the caller may retry; zero means no hint was available.
type RateLimitError struct {
	Integration string
	Operation   string
	RetryAfter  time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s/%s: rate limit exceeded, retry after %s", e.Integration, e.Operation, e.RetryAfter)
	}
	return fmt.Sprintf("%s/%s: rate limit exceeded", e.Integration, e.Operation)
}

// IntegrationError indicates the remote platform errored on a request that
// was correctly authenticated.
type IntegrationError struct {
	Integration string
	StatusCode  int
	Message     string
	Err         error
}

func (e *IntegrationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: integration error (HTTP %d): %s", e.Integration, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: integration error: %s", e.Integration, e.Message)
}

func (e *IntegrationError) Unwrap() error {
	return e.Err
}

// ConfigError indicates a required static secret is absent. Non-retryable
// until an operator fixes the configuration.
type ConfigError struct {
	Integration string
	Setting     string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: missing configuration: %s", e.Integration, e.Setting)
}

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsRateLimited reports whether err is (or wraps) a RateLimitError.
func IsRateLimited(err error) bool {
	var re *RateLimitError
	return errors.As(err, &re)
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
