package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSteady(t *testing.T) {
	s := NewSteady(3600, 2) // one token per second, burst two

	assert.True(t, s.Allow())
	assert.True(t, s.Allow())
	assert.False(t, s.Allow(), "burst exhausted")

	s.Reset()
	assert.True(t, s.Allow(), "reset restores burst")
}

func TestSteadyWaitCancelled(t *testing.T) {
	s := NewSteady(1, 1)
	require.True(t, s.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, s.Wait(ctx))
}

func TestSlidingWindow(t *testing.T) {
	sw := NewSlidingWindow(3, time.Minute)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sw.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		assert.True(t, sw.Allow(), "request %d", i+1)
	}
	assert.False(t, sw.Allow(), "limit reached")

	clock = clock.Add(time.Minute + time.Second)
	assert.True(t, sw.Allow(), "window slid")

	sw.Reset()
	assert.Empty(t, sw.requests)
}

func TestSlidingWindowWait(t *testing.T) {
	sw := NewSlidingWindow(1, 30*time.Millisecond)
	require.True(t, sw.Allow())

	start := time.Now()
	require.NoError(t, sw.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSlidingWindowWaitCancelled(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	require.True(t, sw.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sw.Wait(ctx), context.Canceled)
}

func TestFromQuota(t *testing.T) {
	assert.IsType(t, Unlimited{}, FromQuota(0, 0, 0, 0))
	assert.IsType(t, &Steady{}, FromQuota(100, 1, 0, 0))
	assert.IsType(t, &SlidingWindow{}, FromQuota(0, 0, 10, time.Minute))
	assert.IsType(t, Chain{}, FromQuota(100, 1, 10, time.Minute))
}

func TestChainRequiresAll(t *testing.T) {
	c := Chain{NewSlidingWindow(5, time.Hour), NewSlidingWindow(1, time.Hour)}

	assert.True(t, c.Allow())
	assert.False(t, c.Allow())

	c.Reset()
	assert.True(t, c.Allow())
}
