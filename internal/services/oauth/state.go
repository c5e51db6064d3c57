package oauth

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/claviger/internal/models"
)

// stateTTL bounds how long an issued authorize state stays claimable.
const stateTTL = 15 * time.Minute

type boundState struct {
	key         models.AccountKey
	redirectURI string
	issuedAt    time.Time
}

// stateRegistry tracks issued authorize states so a callback can be bound
// back to the (integration, account) that started the flow. States are
// single-use and expire unclaimed.
type stateRegistry struct {
	mu     sync.Mutex
	states map[string]boundState
}

func newStateRegistry() *stateRegistry {
	return &stateRegistry{states: make(map[string]boundState)}
}

func (r *stateRegistry) issue(key models.AccountKey, redirectURI string) string {
	state := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	for s, b := range r.states {
		if time.Since(b.issuedAt) > stateTTL {
			delete(r.states, s)
		}
	}
	r.states[state] = boundState{key: key, redirectURI: redirectURI, issuedAt: time.Now()}
	return state
}

func (r *stateRegistry) claim(state string) (boundState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.states[state]
	if !ok || time.Since(b.issuedAt) > stateTTL {
		delete(r.states, state)
		return boundState{}, false
	}
	delete(r.states, state)
	return b, true
}
