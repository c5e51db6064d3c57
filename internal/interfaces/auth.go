package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/claviger/internal/models"
)

// CredentialStrategy covers what differs between auth strategies. One
// implementation exists per strategy; a per-integration registry selects
// which one serves a given integration.
type CredentialStrategy interface {
	// Kind reports which CredentialRecord variant this strategy manages.
	Kind() models.CredentialKind

	// IsValid reports whether the stored record can be served as-is.
	IsValid(record *models.CredentialRecord) bool

	// Refresh attempts to bring an invalid record back to serviceable.
	// Strategies with no refresh path return an AuthError directing the
	// caller to re-authenticate.
	Refresh(ctx context.Context, key models.AccountKey) (*models.CredentialRecord, error)
}

// AuthStateTracker records per-AccountKey lifecycle state. Expired never
// silently returns to Authenticated; only a completed login or refresh moves
// it back.
type AuthStateTracker interface {
	State(key models.AccountKey) models.AuthState
	SetState(key models.AccountKey, state models.AuthState)
	// StaleLogins returns keys stuck in LoginInProgress longer than maxAge.
	StaleLogins(maxAge time.Duration) []models.AccountKey
}

// LoginAutomator drives an interactive browser login for a session-cookie
// integration and stores the captured credentials on success.
type LoginAutomator interface {
	// StartLogin opens the flow. It returns once primary credentials have
	// been submitted; challenge resolution and cookie capture continue in
	// the background until the configured completion timeout.
	StartLogin(ctx context.Context, integration, account string) (*LoginFlow, error)

	// Flow returns the current state of a login flow by ID.
	Flow(id string) (*LoginFlow, bool)
}

// LoginFlow is the observable state of one browser login attempt.
type LoginFlow struct {
	ID          string           `json:"id"`
	Key         models.AccountKey `json:"key"`
	State       models.AuthState `json:"state"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at,omitzero"`
	Err         string           `json:"error,omitempty"`
}

// RateGovernor throttles requests per (integration, operation) according to
// platform-imposed quotas.
type RateGovernor interface {
	// Acquire blocks until quota is available or the configured wait
	// ceiling is hit, in which case it returns a RateLimitError.
	Acquire(ctx context.Context, integration, operation string) error

	// Penalize blocks the (integration, operation) bucket for the given
	// duration, used to honor an explicit retry-after signal.
	Penalize(integration, operation string, d time.Duration)
}
