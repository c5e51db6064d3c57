package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/claviger/internal/common"
	"github.com/ternarybob/claviger/internal/interfaces"
	"github.com/ternarybob/claviger/internal/models"
	"github.com/ternarybob/claviger/internal/storage/memory"
)

// mockTracker implements interfaces.AuthStateTracker for testing
type mockTracker struct {
	mu     sync.Mutex
	states map[models.AccountKey]models.AuthState
}

func newMockTracker() *mockTracker {
	return &mockTracker{states: make(map[models.AccountKey]models.AuthState)}
}

func (m *mockTracker) State(key models.AccountKey) models.AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[key]; ok {
		return s
	}
	return models.StateUnauthenticated
}

func (m *mockTracker) SetState(key models.AccountKey, state models.AuthState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key] = state
}

func (m *mockTracker) StaleLogins(maxAge time.Duration) []models.AccountKey {
	return nil
}

// recordingGovernor implements interfaces.RateGovernor and records calls
type recordingGovernor struct {
	mu        sync.Mutex
	acquires  int
	penalties []time.Duration
	denyWith  error
}

func (g *recordingGovernor) Acquire(ctx context.Context, integration, operation string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.acquires++
	return g.denyWith
}

func (g *recordingGovernor) Penalize(integration, operation string, d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.penalties = append(g.penalties, d)
}

func seedSession(t *testing.T, store interfaces.CredentialStore, key models.AccountKey, cookies map[string]string) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), models.NewSessionRecord(key, &models.SessionCredential{
		Cookies: cookies,
	})))
}

func TestClient_RotationWriteBack(t *testing.T) {
	store := memory.NewCredentialStorage()
	states := newMockTracker()
	key := models.NewAccountKey("instagram", "default")
	seedSession(t, store, key, map[string]string{"sessionid": "A", "csrftoken": "c1"})

	var gotCookies atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookies.Store(r.Header.Get("Cookie"))
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "B"})
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "c2"})
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewClient(store, states)

	resp, err := client.Do(context.Background(), Request{
		Integration: "instagram",
		Account:     "default",
		Operation:   "feed",
		Method:      http.MethodGet,
		URL:         srv.URL + "/api/v1/feed",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, gotCookies.Load().(string), "sessionid=A")

	// The rotated values are durable before the response is returned
	stored, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "B", stored.Session.Cookies["sessionid"])
	assert.Equal(t, "c2", stored.Session.CSRFToken)
	assert.False(t, stored.Session.LastRotatedAt.IsZero())

	// The next request attaches the rotated cookie
	_, err = client.Do(context.Background(), Request{
		Integration: "instagram",
		Account:     "default",
		Operation:   "feed",
		Method:      http.MethodGet,
		URL:         srv.URL + "/api/v1/feed",
	})
	require.NoError(t, err)
	assert.Contains(t, gotCookies.Load().(string), "sessionid=B")
	assert.Contains(t, gotCookies.Load().(string), "csrftoken=c2")
}

func TestClient_AuthRejectionIsNotRetried(t *testing.T) {
	store := memory.NewCredentialStorage()
	states := newMockTracker()
	key := models.NewAccountKey("linkedin", "default")
	seedSession(t, store, key, map[string]string{"li_at": "stale"})

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(store, states)

	_, err := client.Do(context.Background(), Request{
		Integration: "linkedin",
		Account:     "default",
		Operation:   "search",
		Method:      http.MethodGet,
		URL:         srv.URL + "/voyager/api/search",
	})
	require.Error(t, err)
	assert.True(t, common.IsAuthError(err))
	assert.EqualValues(t, 1, hits.Load())
	assert.Equal(t, models.StateExpired, states.State(key))

	// Subsequent calls short-circuit on the expired state
	_, err = client.Do(context.Background(), Request{
		Integration: "linkedin",
		Account:     "default",
		Operation:   "search",
		Method:      http.MethodGet,
		URL:         srv.URL + "/voyager/api/search",
	})
	assert.True(t, common.IsAuthError(err))
	assert.EqualValues(t, 1, hits.Load())
}

func TestClient_LoginRedirectIsRejection(t *testing.T) {
	store := memory.NewCredentialStorage()
	states := newMockTracker()
	key := models.NewAccountKey("instagram", "default")
	seedSession(t, store, key, map[string]string{"sessionid": "dead"})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://www.instagram.com/accounts/login/")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	client := NewClient(store, states)

	_, err := client.Do(context.Background(), Request{
		Integration: "instagram",
		Account:     "default",
		Method:      http.MethodGet,
		URL:         srv.URL + "/api/v1/feed",
	})
	assert.True(t, common.IsAuthError(err))
	assert.Equal(t, models.StateExpired, states.State(key))
}

func TestClient_TransientFailureIsRetried(t *testing.T) {
	store := memory.NewCredentialStorage()
	states := newMockTracker()
	seedSession(t, store, models.NewAccountKey("canvas", "default"), map[string]string{"canvas_session": "s"})

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(store, states, WithRetry(3, time.Millisecond))

	resp, err := client.Do(context.Background(), Request{
		Integration: "canvas",
		Account:     "default",
		Operation:   "courses",
		Method:      http.MethodGet,
		URL:         srv.URL + "/api/v1/courses",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, hits.Load())
}

func TestClient_ExhaustedRetriesReturnLastError(t *testing.T) {
	store := memory.NewCredentialStorage()
	states := newMockTracker()
	seedSession(t, store, models.NewAccountKey("canvas", "default"), map[string]string{"canvas_session": "s"})

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(store, states, WithRetry(3, time.Millisecond))

	_, err := client.Do(context.Background(), Request{
		Integration: "canvas",
		Account:     "default",
		Method:      http.MethodGet,
		URL:         srv.URL + "/api/v1/courses",
	})
	require.Error(t, err)

	var intErr *common.IntegrationError
	require.ErrorAs(t, err, &intErr)
	assert.Equal(t, http.StatusInternalServerError, intErr.StatusCode)
	assert.EqualValues(t, 3, hits.Load())
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	store := memory.NewCredentialStorage()
	states := newMockTracker()
	seedSession(t, store, models.NewAccountKey("canvas", "default"), map[string]string{"canvas_session": "s"})

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewClient(store, states, WithRetry(3, time.Millisecond))

	_, err := client.Do(context.Background(), Request{
		Integration: "canvas",
		Account:     "default",
		Method:      http.MethodPost,
		URL:         srv.URL + "/api/v1/courses",
	})
	require.Error(t, err)
	assert.EqualValues(t, 1, hits.Load())
}

func TestClient_RateLimitPenalizesGovernor(t *testing.T) {
	store := memory.NewCredentialStorage()
	states := newMockTracker()
	seedSession(t, store, models.NewAccountKey("slack", "default"), map[string]string{"d": "xoxd"})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	governor := &recordingGovernor{}
	client := NewClient(store, states,
		WithGovernor(governor),
		WithRetry(1, time.Millisecond),
	)

	_, err := client.Do(context.Background(), Request{
		Integration: "slack",
		Account:     "default",
		Operation:   "messages",
		Method:      http.MethodPost,
		URL:         srv.URL + "/api/chat.postMessage",
	})
	require.Error(t, err)

	var rateErr *common.RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 7*time.Second, rateErr.RetryAfter)

	governor.mu.Lock()
	defer governor.mu.Unlock()
	assert.Equal(t, 1, governor.acquires)
	require.Len(t, governor.penalties, 1)
	assert.Equal(t, 7*time.Second, governor.penalties[0])
}

func TestClient_GovernorDenialBlocksRequest(t *testing.T) {
	store := memory.NewCredentialStorage()
	states := newMockTracker()
	seedSession(t, store, models.NewAccountKey("slack", "default"), map[string]string{"d": "xoxd"})

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	governor := &recordingGovernor{
		denyWith: &common.RateLimitError{Integration: "slack", Operation: "messages", RetryAfter: time.Minute},
	}
	client := NewClient(store, states, WithGovernor(governor))

	_, err := client.Do(context.Background(), Request{
		Integration: "slack",
		Account:     "default",
		Operation:   "messages",
		Method:      http.MethodPost,
		URL:         srv.URL + "/api/chat.postMessage",
	})
	assert.True(t, common.IsRateLimited(err))
	assert.EqualValues(t, 0, hits.Load())
}

func TestClient_MissingCredentialIsAuthError(t *testing.T) {
	store := memory.NewCredentialStorage()
	client := NewClient(store, newMockTracker())

	_, err := client.Do(context.Background(), Request{
		Integration: "slack",
		Account:     "default",
		Method:      http.MethodGet,
		URL:         "http://localhost/api",
	})
	require.Error(t, err)
	assert.True(t, common.IsAuthError(err))
	assert.Contains(t, err.Error(), "/auth/slack/setup")
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("garbage"))

	httpDate := time.Now().Add(45 * time.Second).UTC().Format(http.TimeFormat)
	parsed := parseRetryAfter(httpDate)
	assert.Greater(t, parsed, 40*time.Second)
	assert.LessOrEqual(t, parsed, 45*time.Second)

	// Dates in the past yield no hint
	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	assert.Equal(t, time.Duration(0), parseRetryAfter(past))
}
