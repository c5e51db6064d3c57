package credentials

import (
	"sync"
	"time"

	"github.com/ternarybob/claviger/internal/interfaces"
	"github.com/ternarybob/claviger/internal/models"
)

type stateEntry struct {
	state models.AuthState
	since time.Time
}

// Tracker is the in-process AuthStateTracker. State is derived from the
// store on restart (a stored record means Authenticated until the platform
// says otherwise), so it is not persisted.
type Tracker struct {
	mu     sync.RWMutex
	states map[models.AccountKey]stateEntry
}

// NewTracker creates an empty state tracker.
func NewTracker() interfaces.AuthStateTracker {
	return &Tracker{states: make(map[models.AccountKey]stateEntry)}
}

func (t *Tracker) State(key models.AccountKey) models.AuthState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if entry, ok := t.states[key]; ok {
		return entry.state
	}
	return models.StateUnauthenticated
}

func (t *Tracker) SetState(key models.AccountKey, state models.AuthState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if state == models.StateUnauthenticated {
		delete(t.states, key)
		return
	}
	t.states[key] = stateEntry{state: state, since: time.Now()}
}

func (t *Tracker) StaleLogins(maxAge time.Duration) []models.AccountKey {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var stale []models.AccountKey
	for key, entry := range t.states {
		if entry.state == models.StateLoginInProgress && time.Since(entry.since) > maxAge {
			stale = append(stale, key)
		}
	}
	return stale
}
