package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccountKey_DefaultsAccount(t *testing.T) {
	key := NewAccountKey("slack", "")
	assert.Equal(t, "slack", key.Integration)
	assert.Equal(t, DefaultAccount, key.Account)

	key = NewAccountKey("slack", "work")
	assert.Equal(t, "work", key.Account)
}

func TestAccountKey_StringRoundTrip(t *testing.T) {
	key := NewAccountKey("linkedin", "personal")
	assert.Equal(t, "linkedin:personal", key.String())

	parsed, err := ParseAccountKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)
}

func TestParseAccountKey_Invalid(t *testing.T) {
	for _, input := range []string{"", "slack", ":work", "slack:"} {
		_, err := ParseAccountKey(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestCredentialRecord_Validate(t *testing.T) {
	key := NewAccountKey("gmail", "default")

	oauthRecord := NewOAuthRecord(key, &OAuthCredential{AccessToken: "tok"})
	assert.NoError(t, oauthRecord.Validate())

	sessionRecord := NewSessionRecord(key, &SessionCredential{
		Cookies: map[string]string{"sid": "abc"},
	})
	assert.NoError(t, sessionRecord.Validate())

	// Kind must match exactly one populated variant
	mixed := NewOAuthRecord(key, &OAuthCredential{AccessToken: "tok"})
	mixed.Session = &SessionCredential{}
	assert.Error(t, mixed.Validate())

	empty := &CredentialRecord{Key: key, Kind: KindOAuth}
	assert.Error(t, empty.Validate())

	unknown := &CredentialRecord{Key: key, Kind: CredentialKind("wat")}
	assert.Error(t, unknown.Validate())
}

func TestSessionCredential_Clone(t *testing.T) {
	original := &SessionCredential{
		Cookies:       map[string]string{"sid": "a"},
		CSRFToken:     "csrf",
		Tokens:        map[string]string{"xoxc_token": "x"},
		LastRotatedAt: time.Now(),
	}

	clone := original.Clone()
	require.NotNil(t, clone)
	assert.Equal(t, original.Cookies, clone.Cookies)
	assert.Equal(t, original.CSRFToken, clone.CSRFToken)

	// Mutating the clone must not leak into the original
	clone.Cookies["sid"] = "b"
	clone.Tokens["xoxc_token"] = "y"
	assert.Equal(t, "a", original.Cookies["sid"])
	assert.Equal(t, "x", original.Tokens["xoxc_token"])

	var nilCred *SessionCredential
	assert.Nil(t, nilCred.Clone())
}
