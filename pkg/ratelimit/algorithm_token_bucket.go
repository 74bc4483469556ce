package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucketAlgorithm implements token bucket rate limiting on top of
// golang.org/x/time/rate, keeping per-key bucket state with
// monotonic-clock-based refill inside rate.Limiter. That makes it the right
// fit for per-host crawl politeness, where the bucket semantics (capacity =
// burst, refill = requests/minute / 60 per second) matter more than an
// auditable request log.
//
// Thread safety: safe for concurrent use.
type TokenBucketAlgorithm struct {
	clock Clock

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewTokenBucketAlgorithm creates a token bucket algorithm. Buckets are
// created lazily per key on first use and kept for the life of the process;
// the key space (crawled hosts) is bounded by the sources table so no
// eviction is needed.
func NewTokenBucketAlgorithm(clock Clock) *TokenBucketAlgorithm {
	if clock == nil {
		clock = &SystemClock{}
	}
	return &TokenBucketAlgorithm{
		clock:   clock,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (a *TokenBucketAlgorithm) bucketFor(key string, limit int, window time.Duration) *rate.Limiter {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.buckets[key]
	if !ok {
		refill := rate.Limit(float64(limit) / window.Seconds())
		b = rate.NewLimiter(refill, limit)
		a.buckets[key] = b
	}
	return b
}

// IsAllowed reports whether key's bucket currently holds a token. limit and
// window together define the refill rate (limit tokens per window) and the
// burst capacity (limit).
func (a *TokenBucketAlgorithm) IsAllowed(
	ctx context.Context,
	key string,
	limit int,
	window time.Duration,
) (*RateLimitDecision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := a.bucketFor(key, limit, window)
	now := a.clock.Now()
	resetAt := now.Add(window)

	if b.AllowN(now, 1) {
		remaining := int(b.TokensAt(now))
		return NewAllowedDecision(key, "host", limit, remaining, resetAt), nil
	}

	decision := NewDeniedDecision(key, "host", limit, resetAt)
	// One token refills every window/limit.
	if limit > 0 {
		decision.RetryAfter = window / time.Duration(limit)
	}
	return decision, nil
}

// GetWindowDuration returns zero: a token bucket has no fixed window, only a
// refill rate derived from the limit/window pair passed to IsAllowed.
func (a *TokenBucketAlgorithm) GetWindowDuration() time.Duration {
	return 0
}
