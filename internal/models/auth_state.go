package models

import "time"

// AuthState tracks where an AccountKey sits in its authentication lifecycle.
type AuthState string

const (
	StateUnauthenticated AuthState = "unauthenticated"
	StateLoginInProgress AuthState = "login_in_progress" // session-cookie strategy only
	StateAuthenticated   AuthState = "authenticated"
	StateExpired         AuthState = "expired" // refresh failed or session rejected; needs re-auth
)

// IntegrationStatus is the read-only status view for one AccountKey, used by
// operators and by the business layer to short-circuit doomed calls.
type IntegrationStatus struct {
	Integration   string     `json:"integration"`
	Account       string     `json:"account"`
	State         AuthState  `json:"state"`
	Kind          CredentialKind `json:"kind,omitempty"`
	TokenExpiry   *time.Time `json:"token_expiry,omitempty"` // OAuth only
	LastRotatedAt *time.Time `json:"last_rotated_at,omitempty"`
	Message       string     `json:"message,omitempty"`
}

// StatusResponse is the JSON body returned by the auth setup/status routes.
type StatusResponse struct {
	Integration   string `json:"integration"`
	Account       string `json:"account"`
	Authenticated bool   `json:"authenticated"`
	Message       string `json:"message"`
	FlowID        string `json:"flow_id,omitempty"` // present while a browser login is in progress
}
