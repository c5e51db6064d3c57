// Package ratelimit enforces platform-imposed quotas per (integration,
// operation). Some platform operations allow roughly one call per minute, far
// below generic API limits, so every governed call acquires a permit first.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/claviger/internal/common"
	"github.com/ternarybob/claviger/internal/interfaces"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxWait bounds how long Acquire blocks before failing.
	DefaultMaxWait = 30 * time.Second

	// DefaultRateLimit applies when no quota is configured for an
	// integration (requests per second).
	DefaultRateLimit = 5
)

type bucket struct {
	limiter      *rate.Limiter
	maxWait      time.Duration
	mu           sync.Mutex
	blockedUntil time.Time
}

// Governor implements interfaces.RateGovernor with one token bucket per
// (integration, operation). Quotas come from configuration; the governor does
// not discover limits from responses beyond the explicit retry-after signal
// delivered via Penalize.
type Governor struct {
	config *common.Config
	logger arbor.ILogger

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewGovernor creates a rate governor from configured quotas.
func NewGovernor(config *common.Config, logger arbor.ILogger) interfaces.RateGovernor {
	return &Governor{
		config:  config,
		logger:  logger,
		buckets: make(map[string]*bucket),
	}
}

// quotaFor resolves the configured quota, most specific first.
func (g *Governor) quotaFor(integration, operation string) common.RateLimitConfig {
	if cfg, ok := g.config.RateLimits[integration+"."+operation]; ok {
		return cfg
	}
	if cfg, ok := g.config.RateLimits[integration]; ok {
		return cfg
	}
	return common.RateLimitConfig{}
}

func (g *Governor) bucketFor(integration, operation string) *bucket {
	key := integration + "." + operation

	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.buckets[key]; ok {
		return b
	}

	quota := g.quotaFor(integration, operation)
	limit := rate.Limit(DefaultRateLimit)
	burst := DefaultRateLimit
	if quota.Calls > 0 && quota.Window > 0 {
		limit = rate.Limit(float64(quota.Calls) / quota.Window.Seconds())
		burst = quota.Calls
	}
	maxWait := quota.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	b := &bucket{
		limiter: rate.NewLimiter(limit, burst),
		maxWait: maxWait,
	}
	g.buckets[key] = b
	return b
}

// Acquire blocks until quota is available or the wait ceiling is hit.
func (g *Governor) Acquire(ctx context.Context, integration, operation string) error {
	b := g.bucketFor(integration, operation)

	b.mu.Lock()
	penalty := time.Until(b.blockedUntil)
	b.mu.Unlock()
	if penalty > b.maxWait {
		return &common.RateLimitError{Integration: integration, Operation: operation, RetryAfter: penalty}
	}

	r := b.limiter.Reserve()
	if !r.OK() {
		return &common.RateLimitError{Integration: integration, Operation: operation}
	}
	delay := r.Delay()
	if delay < penalty {
		delay = penalty
	}
	if delay > b.maxWait {
		r.Cancel()
		return &common.RateLimitError{Integration: integration, Operation: operation, RetryAfter: delay}
	}
	if delay <= 0 {
		return nil
	}

	g.logger.Debug().
		Str("integration", integration).
		Str("operation", operation).
		Dur("wait", delay).
		Msg("Waiting for rate limit permit")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// Penalize blocks the bucket until the given duration elapses, honoring an
// explicit retry-after signal from the platform.
func (g *Governor) Penalize(integration, operation string, d time.Duration) {
	if d <= 0 {
		return
	}
	b := g.bucketFor(integration, operation)
	until := time.Now().Add(d)

	b.mu.Lock()
	if until.After(b.blockedUntil) {
		b.blockedUntil = until
	}
	b.mu.Unlock()

	g.logger.Warn().
		Str("integration", integration).
		Str("operation", operation).
		Dur("retry_after", d).
		Msg("Rate limit penalty applied")
}
