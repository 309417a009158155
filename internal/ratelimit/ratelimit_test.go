package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	krl := New(1, 3)
	defer krl.Stop()

	for i := range 3 {
		assert.True(t, krl.Allow("10.0.0.1"), "request %d within burst", i)
	}
	assert.False(t, krl.Allow("10.0.0.1"))
}

func TestKeyedRateLimiter_IndependentKeys(t *testing.T) {
	krl := New(1, 1)
	defer krl.Stop()

	assert.True(t, krl.Allow("a"))
	assert.False(t, krl.Allow("a"))
	assert.True(t, krl.Allow("b"))
	assert.Equal(t, 2, krl.Len())
}

func TestKeyedRateLimiter_Wait(t *testing.T) {
	krl := New(100, 1)
	defer krl.Stop()

	ctx := context.Background()
	require.NoError(t, krl.Wait(ctx, "k"))

	start := time.Now()
	require.NoError(t, krl.Wait(ctx, "k"))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestKeyedRateLimiter_WaitContextCancelled(t *testing.T) {
	krl := New(0.001, 1)
	defer krl.Stop()

	require.True(t, krl.Allow("k"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, krl.Wait(ctx, "k"))
}

func TestKeyedRateLimiter_EvictIdle(t *testing.T) {
	krl := NewWithTTL(1, 1, time.Minute)
	defer krl.Stop()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	krl.now = func() time.Time { return now }

	krl.Allow("old")
	now = now.Add(2 * time.Minute)
	krl.Allow("fresh")

	krl.evictIdle()
	assert.Equal(t, 1, krl.Len())

	// An evicted key starts over with a full bucket.
	assert.True(t, krl.Allow("old"))
}

func TestKeyedRateLimiter_StopIsIdempotent(t *testing.T) {
	krl := New(1, 1)
	krl.Stop()
	assert.NotPanics(t, krl.Stop)
}
