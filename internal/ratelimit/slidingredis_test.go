package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newSlidingWindow(t *testing.T) (SlidingWindow, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return SlidingWindow{Client: client, Prefix: "test:", Now: func() time.Time { return now }}, &now
}

func TestSlidingWindowAllow(t *testing.T) {
	limiter, now := newSlidingWindow(t)
	ctx := context.Background()
	window := 2 * time.Second
	max := 2

	for i := 0; i < max; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "key", window, max)
		require.NoError(t, err)
		require.True(t, allowed, "request %d", i)
		require.Equal(t, max-(i+1), remaining)
		*now = now.Add(100 * time.Millisecond)
	}

	allowed, remaining, _, err := limiter.Allow(ctx, "key", window, max)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 0, remaining)

	*now = now.Add(window + time.Second)

	allowed, _, _, err = limiter.Allow(ctx, "key", window, max)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestSlidingWindowKeysAreIndependent(t *testing.T) {
	limiter, _ := newSlidingWindow(t)
	ctx := context.Background()

	allowed, _, _, err := limiter.Allow(ctx, "a", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, _, err = limiter.Allow(ctx, "b", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, _, err = limiter.Allow(ctx, "a", time.Minute, 1)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestSlidingWindowWithoutClientAllows(t *testing.T) {
	allowed, remaining, _, err := SlidingWindow{}.Allow(context.Background(), "k", time.Minute, 3)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 3, remaining)
}
