package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockClock is a controllable Clock for refill tests.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTokenBucketAlgorithm_AllowsUpToBurst(t *testing.T) {
	clock := NewMockClock(time.Now())
	algo := NewTokenBucketAlgorithm(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		decision, err := algo.IsAllowed(ctx, "example.org", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "request %d within burst should be allowed", i+1)
	}

	decision, err := algo.IsAllowed(ctx, "example.org", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Greater(t, decision.RetryAfter, time.Duration(0))
}

func TestTokenBucketAlgorithm_RefillsOverTime(t *testing.T) {
	clock := NewMockClock(time.Now())
	algo := NewTokenBucketAlgorithm(clock)
	ctx := context.Background()

	// Drain the bucket.
	for i := 0; i < 2; i++ {
		_, err := algo.IsAllowed(ctx, "example.org", 2, time.Minute)
		require.NoError(t, err)
	}
	decision, err := algo.IsAllowed(ctx, "example.org", 2, time.Minute)
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	// 2 per minute refills one token every 30s.
	clock.Advance(31 * time.Second)
	decision, err = algo.IsAllowed(ctx, "example.org", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestTokenBucketAlgorithm_KeysAreIndependent(t *testing.T) {
	clock := NewMockClock(time.Now())
	algo := NewTokenBucketAlgorithm(clock)
	ctx := context.Background()

	_, err := algo.IsAllowed(ctx, "a.example.org", 1, time.Minute)
	require.NoError(t, err)
	blocked, err := algo.IsAllowed(ctx, "a.example.org", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	other, err := algo.IsAllowed(ctx, "b.example.org", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestTokenBucketAlgorithm_CancelledContext(t *testing.T) {
	algo := NewTokenBucketAlgorithm(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := algo.IsAllowed(ctx, "example.org", 1, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
