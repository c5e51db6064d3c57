package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claviger/internal/common"
	"github.com/ternarybob/claviger/internal/interfaces"
	"github.com/ternarybob/claviger/internal/models"
	"github.com/ternarybob/claviger/internal/storage/memory"
)

func newTestAutomator(t *testing.T) (*Automator, interfaces.CredentialStore, *mockTracker) {
	t.Helper()
	store := memory.NewCredentialStorage()
	states := newMockTracker()
	config := common.NewDefaultConfig()
	return NewAutomator(store, states, config, arbor.NewLogger()), store, states
}

func TestAutomator_RegistersPlatformScripts(t *testing.T) {
	a, _, _ := newTestAutomator(t)

	for _, integration := range []string{"slack", "linkedin", "instagram", "canvas"} {
		assert.True(t, a.HasScript(integration), integration)
	}
	assert.False(t, a.HasScript("gmail"))
}

func TestStartLogin_UnknownIntegration(t *testing.T) {
	a, _, _ := newTestAutomator(t)

	_, err := a.StartLogin(context.Background(), "gmail", "default")
	assert.True(t, common.IsAuthError(err))
}

func TestStartLogin_MissingCredentialsConfig(t *testing.T) {
	a, _, _ := newTestAutomator(t)

	_, err := a.StartLogin(context.Background(), "linkedin", "default")
	require.Error(t, err)
	assert.True(t, common.IsConfigError(err))
}

func TestAutomator_FlowLookup(t *testing.T) {
	a, _, _ := newTestAutomator(t)

	_, ok := a.Flow("nonexistent")
	assert.False(t, ok)
}

func TestFinishFlow_SuccessStoresSession(t *testing.T) {
	a, store, states := newTestAutomator(t)
	key := models.NewAccountKey("linkedin", "default")

	flow := &interfaces.LoginFlow{
		ID:        "flow-1",
		Key:       key,
		State:     models.StateLoginInProgress,
		StartedAt: time.Now(),
	}
	a.mu.Lock()
	a.flows[flow.ID] = flow
	a.busy["linkedin"] = true
	a.mu.Unlock()
	states.SetState(key, models.StateLoginInProgress)

	a.finishFlow(flow, &models.SessionCredential{
		Cookies:   map[string]string{"li_at": "tok", "JSESSIONID": "ajax:1"},
		CSRFToken: "ajax:1",
	}, nil)

	stored, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "tok", stored.Session.Cookies["li_at"])
	assert.False(t, stored.Session.LastRotatedAt.IsZero())
	assert.Equal(t, models.StateAuthenticated, states.State(key))

	got, ok := a.Flow("flow-1")
	require.True(t, ok)
	assert.Equal(t, models.StateAuthenticated, got.State)
	assert.False(t, got.CompletedAt.IsZero())

	// The integration's browser slot is released
	a.mu.Lock()
	assert.False(t, a.busy["linkedin"])
	a.mu.Unlock()
}

func TestFinishFlow_FailureReturnsToUnauthenticated(t *testing.T) {
	a, store, states := newTestAutomator(t)
	key := models.NewAccountKey("instagram", "default")

	flow := &interfaces.LoginFlow{
		ID:        "flow-2",
		Key:       key,
		State:     models.StateLoginInProgress,
		StartedAt: time.Now(),
	}
	a.mu.Lock()
	a.flows[flow.ID] = flow
	a.busy["instagram"] = true
	a.mu.Unlock()
	states.SetState(key, models.StateLoginInProgress)

	a.finishFlow(flow, nil, context.DeadlineExceeded)

	_, err := store.Get(context.Background(), key)
	assert.Equal(t, interfaces.ErrNotFound, err)
	// Never stuck in LoginInProgress after a failed flow
	assert.Equal(t, models.StateUnauthenticated, states.State(key))

	got, ok := a.Flow("flow-2")
	require.True(t, ok)
	assert.Equal(t, models.StateUnauthenticated, got.State)
	assert.NotEmpty(t, got.Err)
}
