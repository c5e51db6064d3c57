package models

import (
	"fmt"
	"strings"
	"time"
)

// DefaultAccount is the account name used when no account is specified.
const DefaultAccount = "default"

// AccountKey identifies one credential slot. Multiple accounts per
// integration are first-class and independent.
type AccountKey struct {
	Integration string `json:"integration"`
	Account     string `json:"account"`
}

// NewAccountKey builds an AccountKey, defaulting the account name.
func NewAccountKey(integration, account string) AccountKey {
	if account == "" {
		account = DefaultAccount
	}
	return AccountKey{Integration: integration, Account: account}
}

// String renders the store key format "<integration>:<account>".
func (k AccountKey) String() string {
	return k.Integration + ":" + k.Account
}

// ParseAccountKey parses a "<integration>:<account>" store key.
func ParseAccountKey(s string) (AccountKey, error) {
	integration, account, ok := strings.Cut(s, ":")
	if !ok || integration == "" || account == "" {
		return AccountKey{}, fmt.Errorf("invalid account key: %q", s)
	}
	return AccountKey{Integration: integration, Account: account}, nil
}

// CredentialKind discriminates the credential variants.
type CredentialKind string

const (
	KindOAuth   CredentialKind = "oauth"
	KindAPIKey  CredentialKind = "api_key"
	KindSession CredentialKind = "session"
)

// OAuthCredential holds token material for the OAuth2 refresh strategy.
// AccessToken and Expiry change together on refresh; RefreshToken is stable
// unless the provider rotates it.
type OAuthCredential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// APIKeyCredential holds a static key sourced from configuration. It has no
// lifecycle beyond process start and is never persisted.
type APIKeyCredential struct {
	Key string `json:"key"`
}

// SessionCredential holds browser-derived session material. Every field may
// be overwritten after any outbound request.
type SessionCredential struct {
	Cookies       map[string]string `json:"cookies"`
	CSRFToken     string            `json:"csrf_token,omitempty"`
	Tokens        map[string]string `json:"tokens,omitempty"` // auxiliary tokens (e.g. xoxc client token, team/user ids)
	LastRotatedAt time.Time         `json:"last_rotated_at"`
}

// Clone returns a deep copy so rotation never mutates a record shared with
// concurrent readers.
func (s *SessionCredential) Clone() *SessionCredential {
	if s == nil {
		return nil
	}
	out := &SessionCredential{
		CSRFToken:     s.CSRFToken,
		LastRotatedAt: s.LastRotatedAt,
	}
	if s.Cookies != nil {
		out.Cookies = make(map[string]string, len(s.Cookies))
		for k, v := range s.Cookies {
			out.Cookies[k] = v
		}
	}
	if s.Tokens != nil {
		out.Tokens = make(map[string]string, len(s.Tokens))
		for k, v := range s.Tokens {
			out.Tokens[k] = v
		}
	}
	return out
}

// CredentialRecord is the stored credential for one AccountKey. Exactly one
// variant is populated, matching Kind. Writes are total replacements.
type CredentialRecord struct {
	Key       AccountKey         `json:"key"`
	Kind      CredentialKind     `json:"kind"`
	OAuth     *OAuthCredential   `json:"oauth,omitempty"`
	APIKey    *APIKeyCredential  `json:"api_key,omitempty"`
	Session   *SessionCredential `json:"session,omitempty"`
	CreatedAt int64              `json:"created_at"`
	UpdatedAt int64              `json:"updated_at"`
}

// NewOAuthRecord builds a CredentialRecord for the OAuth strategy.
func NewOAuthRecord(key AccountKey, cred *OAuthCredential) *CredentialRecord {
	return &CredentialRecord{Key: key, Kind: KindOAuth, OAuth: cred}
}

// NewSessionRecord builds a CredentialRecord for the session-cookie strategy.
func NewSessionRecord(key AccountKey, cred *SessionCredential) *CredentialRecord {
	return &CredentialRecord{Key: key, Kind: KindSession, Session: cred}
}

// Validate checks that exactly the variant matching Kind is populated.
func (r *CredentialRecord) Validate() error {
	switch r.Kind {
	case KindOAuth:
		if r.OAuth == nil || r.Session != nil || r.APIKey != nil {
			return fmt.Errorf("record %s: kind %s with mismatched variant", r.Key, r.Kind)
		}
	case KindAPIKey:
		if r.APIKey == nil || r.OAuth != nil || r.Session != nil {
			return fmt.Errorf("record %s: kind %s with mismatched variant", r.Key, r.Kind)
		}
	case KindSession:
		if r.Session == nil || r.OAuth != nil || r.APIKey != nil {
			return fmt.Errorf("record %s: kind %s with mismatched variant", r.Key, r.Kind)
		}
	default:
		return fmt.Errorf("record %s: unknown kind %q", r.Key, r.Kind)
	}
	return nil
}
