package session

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claviger/internal/common"
	"github.com/ternarybob/claviger/internal/interfaces"
	"github.com/ternarybob/claviger/internal/models"
)

const (
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxAttempts bounds retries on transient failures.
	DefaultMaxAttempts = 3

	// DefaultBackoff is the initial retry backoff, doubled per attempt.
	DefaultBackoff = time.Second
)

// Doer executes one HTTP request. Platforms that reject the Go TLS
// fingerprint get a substituted transport here instead of being silently
// blocked by the default client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request is one outbound authenticated call for a session-cookie
// integration.
type Request struct {
	Integration string
	Account     string
	Operation   string // operation class for rate governance (e.g. "search", "messages")
	Method      string
	URL         string
	Header      http.Header
	Body        []byte
}

// Response carries the platform reply after rotation bookkeeping completed.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client executes authenticated requests for session-cookie integrations and
// applies rotation bookkeeping: any Set-Cookie in the response is written
// back to the store before the response is returned, so the next request for
// the same AccountKey always attaches the rotated values.
type Client struct {
	store       interfaces.CredentialStore
	states      interfaces.AuthStateTracker
	governor    interfaces.RateGovernor
	transport   Doer
	logger      arbor.ILogger
	maxAttempts int
	backoff     time.Duration
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTransport substitutes the HTTP transport, e.g. one with a browser TLS
// fingerprint for platforms that detect automated clients.
func WithTransport(d Doer) ClientOption {
	return func(c *Client) {
		c.transport = d
	}
}

// WithGovernor routes requests through a rate governor.
func WithGovernor(g interfaces.RateGovernor) ClientOption {
	return func(c *Client) {
		c.governor = g
	}
}

// WithRetry sets the transient-failure retry policy.
func WithRetry(maxAttempts int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxAttempts = maxAttempts
		c.backoff = backoff
	}
}

// NewClient creates a session API client over the given store.
func NewClient(store interfaces.CredentialStore, states interfaces.AuthStateTracker, opts ...ClientOption) *Client {
	c := &Client{
		store:  store,
		states: states,
		transport: &http.Client{
			Timeout: DefaultTimeout,
			// Platforms signal a dead session with a login redirect;
			// following it would hide the signal.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:      common.GetLogger(),
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do executes one authenticated request.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	key := models.NewAccountKey(req.Integration, req.Account)

	if c.states.State(key) == models.StateExpired {
		return nil, &common.AuthError{
			Integration: req.Integration,
			Account:     key.Account,
			Message:     fmt.Sprintf("session expired; visit /auth/%s/setup to re-authenticate", req.Integration),
		}
	}

	record, err := c.store.Get(ctx, key)
	if err != nil {
		if err == interfaces.ErrNotFound {
			return nil, &common.AuthError{
				Integration: req.Integration,
				Account:     key.Account,
				Message:     fmt.Sprintf("not authenticated; visit /auth/%s/setup to log in via browser", req.Integration),
			}
		}
		return nil, err
	}
	if record.Kind != models.KindSession || record.Session == nil {
		return nil, fmt.Errorf("credential for %s is not a session credential", key)
	}

	if c.governor != nil {
		if err := c.governor.Acquire(ctx, req.Integration, req.Operation); err != nil {
			return nil, err
		}
	}

	var lastErr error
	backoff := c.backoff
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, retryable, err := c.attempt(ctx, key, record, req)
		if err == nil {
			return resp, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err

		if attempt < c.maxAttempts {
			c.logger.Debug().
				Str("key", key.String()).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Err(err).
				Msg("Transient failure, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
	}
	return nil, lastErr
}

// attempt executes one try. retryable reports whether the failure is
// transient.
func (c *Client) attempt(ctx context.Context, key models.AccountKey, record *models.CredentialRecord, req Request) (*Response, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	attachAuth(httpReq, key.Integration, record.Session)

	httpResp, err := c.transport.Do(httpReq)
	if err != nil {
		return nil, true, &common.IntegrationError{
			Integration: key.Integration,
			Message:     "request failed",
			Err:         err,
		}
	}
	defer httpResp.Body.Close()

	body, err := readBody(httpResp)
	if err != nil {
		return nil, true, &common.IntegrationError{
			Integration: key.Integration,
			Message:     "failed to read response body",
			Err:         err,
		}
	}

	// Rotation write-back happens before any status handling: even a
	// rejected response can rotate anti-bot cookies the next request needs.
	if err := c.writeBackRotation(ctx, key, record, httpResp); err != nil {
		return nil, false, err
	}

	switch {
	case isAuthRejection(httpResp, body):
		c.states.SetState(key, models.StateExpired)
		c.logger.Warn().
			Str("key", key.String()).
			Int("status", httpResp.StatusCode).
			Msg("Platform rejected session")
		return nil, false, &common.AuthError{
			Integration: key.Integration,
			Account:     key.Account,
			Message:     fmt.Sprintf("session rejected by platform; visit /auth/%s/setup to re-authenticate", key.Integration),
		}

	case httpResp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(httpResp.Header.Get("Retry-After"))
		if c.governor != nil && retryAfter > 0 {
			c.governor.Penalize(key.Integration, req.Operation, retryAfter)
		}
		return nil, true, &common.RateLimitError{
			Integration: key.Integration,
			Operation:   req.Operation,
			RetryAfter:  retryAfter,
		}

	case httpResp.StatusCode >= 500:
		return nil, true, &common.IntegrationError{
			Integration: key.Integration,
			StatusCode:  httpResp.StatusCode,
			Message:     truncate(string(body), 500),
		}

	case httpResp.StatusCode >= 400:
		return nil, false, &common.IntegrationError{
			Integration: key.Integration,
			StatusCode:  httpResp.StatusCode,
			Message:     truncate(string(body), 500),
		}
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, false, nil
}

// writeBackRotation persists rotated secrets. A crash between response and
// write-back would leave the next request with a stale, rejected secret, so
// the write is part of the critical path: if it fails, the call fails.
func (c *Client) writeBackRotation(ctx context.Context, key models.AccountKey, record *models.CredentialRecord, httpResp *http.Response) error {
	rotated := httpResp.Cookies()
	if len(rotated) == 0 {
		return nil
	}

	updated := record.Session.Clone()
	if updated.Cookies == nil {
		updated.Cookies = make(map[string]string)
	}
	changed := false
	for _, cookie := range rotated {
		if cookie.Name == "" || updated.Cookies[cookie.Name] == cookie.Value {
			continue
		}
		updated.Cookies[cookie.Name] = cookie.Value
		changed = true

		// A rotated CSRF-bearing cookie must also refresh the derived
		// header value.
		switch cookie.Name {
		case "JSESSIONID":
			updated.CSRFToken = strings.Trim(cookie.Value, `"`)
		case "csrftoken", "_csrf_token":
			updated.CSRFToken = cookie.Value
		}
	}
	if !changed {
		return nil
	}

	updated.LastRotatedAt = time.Now()
	if err := c.store.Put(ctx, models.NewSessionRecord(key, updated)); err != nil {
		return fmt.Errorf("failed to persist rotated session for %s: %w", key, err)
	}
	record.Session = updated

	c.logger.Debug().
		Str("key", key.String()).
		Int("rotated", len(rotated)).
		Msg("Session rotation written back")
	return nil
}

// parseRetryAfter handles the delay-seconds form of the header.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
