// Package lock implements a Redis-backed mutual exclusion lock shared by
// worker replicas.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned by TryWithLock when another holder owns the key.
var ErrNotAcquired = errors.New("lock: not acquired")

var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// Locker hands out short exclusive leases on Redis keys. A holder that dies
// loses the lease when its ttl runs out.
type Locker struct {
	R      *redis.Client
	Prefix string
}

// TryWithLock runs fn only if the lock for key is free right now, and
// releases it afterwards unless another holder took it over meanwhile.
func (l Locker) TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if err := l.check(fn); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	redisKey := l.Prefix + key
	token := uuid.NewString()
	ok, err := l.R.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcquired
	}
	defer func() {
		_ = releaseScript.Run(context.Background(), l.R, []string{redisKey}, token).Err()
	}()
	return fn(ctx)
}

func (l Locker) check(fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	return nil
}
