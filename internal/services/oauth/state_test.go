package oauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/claviger/internal/models"
)

func TestStateRegistry_IssueAndClaim(t *testing.T) {
	r := newStateRegistry()
	key := models.NewAccountKey("gmail", "work")

	state := r.issue(key, "http://localhost/cb")
	require.NotEmpty(t, state)

	bound, ok := r.claim(state)
	require.True(t, ok)
	assert.Equal(t, key, bound.key)
	assert.Equal(t, "http://localhost/cb", bound.redirectURI)

	// Claimed states are gone
	_, ok = r.claim(state)
	assert.False(t, ok)
}

func TestStateRegistry_DistinctStatesPerIssue(t *testing.T) {
	r := newStateRegistry()
	key := models.NewAccountKey("gmail", "default")

	a := r.issue(key, "http://localhost/cb")
	b := r.issue(key, "http://localhost/cb")
	assert.NotEqual(t, a, b)
}

func TestStateRegistry_ExpiredStateNotClaimable(t *testing.T) {
	r := newStateRegistry()
	key := models.NewAccountKey("gmail", "default")

	state := r.issue(key, "http://localhost/cb")

	r.mu.Lock()
	b := r.states[state]
	b.issuedAt = time.Now().Add(-stateTTL - time.Minute)
	r.states[state] = b
	r.mu.Unlock()

	_, ok := r.claim(state)
	assert.False(t, ok)
}
