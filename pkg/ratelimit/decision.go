package ratelimit

import (
	"fmt"
	"time"
)

// RateLimitDecision is the outcome of one rate-limit check: the verdict plus
// the metadata a polite caller needs to schedule its next attempt.
type RateLimitDecision struct {
	// Key is the rate-limit subject, normally a crawled host.
	Key string

	// Allowed reports whether the request may proceed now.
	Allowed bool

	// Limit is the maximum number of requests per window.
	Limit int

	// Remaining is how many requests the current window still admits;
	// zero once the budget is spent.
	Remaining int

	// ResetAt is when the budget is whole again.
	ResetAt time.Time

	// RetryAfter is how long a denied caller should wait before retrying.
	RetryAfter time.Duration

	// LimiterType names which limiter produced the decision, e.g. "host"
	// for the per-host politeness bucket or "source" for a source's own
	// throttle block.
	LimiterType string
}

// String renders the decision for crawl logs.
func (d *RateLimitDecision) String() string {
	if d.Allowed {
		return fmt.Sprintf(
			"RateLimitDecision{Allowed: true, Key: %s, Type: %s, Remaining: %d/%d, ResetAt: %s}",
			d.Key, d.LimiterType, d.Remaining, d.Limit, d.ResetAt.Format(time.RFC3339),
		)
	}
	return fmt.Sprintf(
		"RateLimitDecision{Allowed: false, Key: %s, Type: %s, Limit: %d, RetryAfter: %s, ResetAt: %s}",
		d.Key, d.LimiterType, d.Limit, d.RetryAfter.String(), d.ResetAt.Format(time.RFC3339),
	)
}

// IsDenied reports the inverse of Allowed.
func (d *RateLimitDecision) IsDenied() bool {
	return !d.Allowed
}

// HasRemaining reports whether the current window still admits requests.
func (d *RateLimitDecision) HasRemaining() bool {
	return d.Remaining > 0
}

// NewAllowedDecision builds the decision for an admitted request.
func NewAllowedDecision(key, limiterType string, limit, remaining int, resetAt time.Time) *RateLimitDecision {
	retryAfter := time.Until(resetAt)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &RateLimitDecision{
		Key:         key,
		Allowed:     true,
		Limit:       limit,
		Remaining:   remaining,
		ResetAt:     resetAt,
		RetryAfter:  retryAfter,
		LimiterType: limiterType,
	}
}

// NewDeniedDecision builds the decision for a rejected request.
func NewDeniedDecision(key, limiterType string, limit int, resetAt time.Time) *RateLimitDecision {
	retryAfter := time.Until(resetAt)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &RateLimitDecision{
		Key:         key,
		Allowed:     false,
		Limit:       limit,
		Remaining:   0,
		ResetAt:     resetAt,
		RetryAfter:  retryAfter,
		LimiterType: limiterType,
	}
}
