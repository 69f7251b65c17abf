package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-freight/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, Prefix: "lock:"}, mr
}

func TestTryWithLockReportsContention(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	err := locker.TryWithLock(ctx, "snapshot:bills", time.Minute, func(ctx context.Context) error {
		require.True(t, mr.Exists("lock:snapshot:bills"))
		inner := locker.TryWithLock(ctx, "snapshot:bills", time.Minute, func(context.Context) error {
			t.Fatal("nested holder must not run")
			return nil
		})
		require.ErrorIs(t, inner, lock.ErrNotAcquired)
		return nil
	})
	require.NoError(t, err)
	require.False(t, mr.Exists("lock:snapshot:bills"))
}

func TestTryWithLockReleasesOnError(t *testing.T) {
	locker, mr := newLocker(t)
	boom := errors.New("boom")
	err := locker.TryWithLock(context.Background(), "k", time.Minute, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("lock:k"))
}

func TestTryWithLockKeepsForeignToken(t *testing.T) {
	locker, mr := newLocker(t)
	err := locker.TryWithLock(context.Background(), "k", time.Minute, func(context.Context) error {
		// Simulate expiry followed by another holder taking the key.
		require.NoError(t, mr.Set("lock:k", "someone-else"))
		return nil
	})
	require.NoError(t, err)
	got, err := mr.Get("lock:k")
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
}

func TestLockerRequiresClient(t *testing.T) {
	err := lock.Locker{}.TryWithLock(context.Background(), "k", time.Second, func(context.Context) error { return nil })
	require.Error(t, err)
}
