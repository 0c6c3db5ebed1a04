package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTokenBucketLimiter_BurstThenBlocksThenRefills(t *testing.T) {
	t.Parallel()

	clk := newFakeClock(time.Unix(0, 0))
	l := NewTokenBucketLimiter(clk, Config{Rate: 2, Burst: 2})

	require.True(t, l.Allow("driver:1"))
	require.True(t, l.Allow("driver:1"))
	require.False(t, l.Allow("driver:1"), "burst exhausted")

	clk.Add(500 * time.Millisecond)
	require.True(t, l.Allow("driver:1"), "one token refilled")
	require.False(t, l.Allow("driver:1"))

	clk.Add(10 * time.Second)
	require.True(t, l.Allow("driver:1"))
	require.True(t, l.Allow("driver:1"))
	require.False(t, l.Allow("driver:1"), "refill is capped at burst")
}

func TestTokenBucketLimiter_IsPerKey(t *testing.T) {
	t.Parallel()

	clk := newFakeClock(time.Unix(0, 0))
	l := NewTokenBucketLimiter(clk, Config{Rate: 1, Burst: 1})

	require.True(t, l.Allow("driver:1"))
	require.False(t, l.Allow("driver:1"))
	require.True(t, l.Allow("driver:2"))
}

func TestTokenBucketLimiter_MaxBucketsRefusesNewKeys(t *testing.T) {
	t.Parallel()

	l := NewTokenBucketLimiter(newFakeClock(time.Unix(0, 0)), Config{Rate: 1, Burst: 5, MaxBuckets: 1})

	require.True(t, l.Allow("a"))
	require.False(t, l.Allow("b"))
	require.True(t, l.Allow("a"))
	require.Equal(t, 1, l.Len())
}

func TestTokenBucketLimiter_TTLCleanupRemovesIdleBuckets(t *testing.T) {
	t.Parallel()

	clk := newFakeClock(time.Unix(0, 0))
	l := NewTokenBucketLimiter(clk, Config{Rate: 10, Burst: 1, TTL: 2 * time.Second})

	_ = l.Allow("A")
	_ = l.Allow("B")
	require.Equal(t, 2, l.Len())

	// the cleanup interval is at least a minute
	clk.Add(59 * time.Second)
	_ = l.Allow("B")
	require.Equal(t, 2, l.Len())

	clk.Add(2 * time.Second)
	_ = l.Allow("B")

	_, hasA := l.buckets["A"]
	_, hasB := l.buckets["B"]
	require.False(t, hasA)
	require.True(t, hasB)
}

func TestNewPerMinute_UsesLimitAsBurst(t *testing.T) {
	t.Parallel()

	clk := newFakeClock(time.Unix(0, 0))
	l := NewPerMinute(clk, 3, 0, 0, 0)

	for i := 1; i <= 3; i++ {
		require.True(t, l.Allow("k"), "allow #%d", i)
	}
	require.False(t, l.Allow("k"))

	clk.Add(20 * time.Second)
	require.True(t, l.Allow("k"), "3/min refills one token every 20s")
}
