package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewAllowedDecision(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		remaining int
	}{
		{"allowed with tokens remaining", "jobs.undp.org", 5},
		{"allowed with the last token", "careers.unicef.org", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetAt := time.Now().Add(time.Minute)
			decision := NewAllowedDecision(tt.key, "host", 10, tt.remaining, resetAt)

			assert.True(t, decision.Allowed)
			assert.Equal(t, tt.key, decision.Key)
			assert.Equal(t, 10, decision.Limit)
			assert.Equal(t, tt.remaining, decision.Remaining)
			assert.Equal(t, "host", decision.LimiterType)
			assert.True(t, decision.ResetAt.Equal(resetAt))
			assert.GreaterOrEqual(t, decision.RetryAfter, time.Duration(0))
		})
	}
}

func TestNewAllowedDecision_PastResetClampsRetryAfter(t *testing.T) {
	decision := NewAllowedDecision("example.org", "host", 10, 3, time.Now().Add(-time.Minute))
	assert.Equal(t, time.Duration(0), decision.RetryAfter)
}

func TestNewDeniedDecision(t *testing.T) {
	resetAt := time.Now().Add(2 * time.Minute)
	decision := NewDeniedDecision("jobs.undp.org", "source", 6, resetAt)

	assert.False(t, decision.Allowed)
	assert.True(t, decision.IsDenied())
	assert.Equal(t, 0, decision.Remaining)
	assert.Equal(t, "source", decision.LimiterType)
	assert.Greater(t, decision.RetryAfter, time.Duration(0))
}

func TestRateLimitDecision_HasRemaining(t *testing.T) {
	tests := []struct {
		name      string
		remaining int
		want      bool
	}{
		{"positive remaining", 10, true},
		{"zero remaining", 0, false},
		{"negative remaining", -5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := &RateLimitDecision{Remaining: tt.remaining}
			assert.Equal(t, tt.want, decision.HasRemaining())
		})
	}
}

func TestRateLimitDecision_String(t *testing.T) {
	now := time.Now()

	allowed := &RateLimitDecision{
		Key: "jobs.undp.org", Allowed: true, Limit: 10, Remaining: 7,
		ResetAt: now, LimiterType: "host",
	}
	for _, want := range []string{"Allowed: true", "jobs.undp.org", "host", "7", "10"} {
		assert.Contains(t, allowed.String(), want)
	}

	denied := &RateLimitDecision{
		Key: "careers.example.org", Allowed: false, Limit: 6,
		ResetAt: now, RetryAfter: 30 * time.Second, LimiterType: "source",
	}
	for _, want := range []string{"Allowed: false", "careers.example.org", "source", "6"} {
		assert.Contains(t, denied.String(), want)
	}
}
