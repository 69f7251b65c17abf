package records

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-freight/internal/resilience"
)

const cacheKeyPrefix = "records:v2:"

// Cache keeps the raw record set of each collection in Redis as JSON.
//
// Each collection has a generation counter that every write bumps. A set is
// stored under the generation read before the store was listed, so a fill
// that races a write lands under a generation no reader asks for again. When
// a bump fails the collection bypasses the cache in this process until a
// later bump succeeds.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *resilience.Breaker

	mu    sync.Mutex
	dirty map[string]bool
}

// NewCache constructs a cache helper. A nil client or non-positive ttl disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, dirty: map[string]bool{}}
}

// WithBreaker guards reads and fills with b. While it is open the cache is
// bypassed and requests go straight to the store.
func (c *Cache) WithBreaker(b *resilience.Breaker) *Cache {
	if c != nil {
		c.breaker = b
	}
	return c
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

func (c *Cache) guard(ctx context.Context, fn func(context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	return c.breaker.Do(ctx, fn)
}

// Generation returns the current generation of collection. ok is false when
// the cache must not be used for this read, either because it is disabled, the
// breaker is open or an earlier bump is still outstanding.
func (c *Cache) Generation(ctx context.Context, collection string) (gen int64, ok bool, err error) {
	if !c.enabled() {
		return 0, false, nil
	}
	if c.isDirty(collection) {
		if err := c.bump(ctx, collection); err != nil {
			return 0, false, err
		}
	}
	err = c.guard(ctx, func(ctx context.Context) error {
		n, err := c.client.Get(ctx, generationKey(collection)).Int64()
		if errors.Is(err, redis.Nil) {
			n, err = 0, nil
		}
		gen = n
		return err
	})
	if errors.Is(err, resilience.ErrOpenCircuit) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return gen, true, nil
}

// Get loads the set cached for collection at gen into dst. It reports whether
// an entry existed.
func (c *Cache) Get(ctx context.Context, collection string, gen int64, dst *[]Record) (bool, error) {
	if !c.enabled() {
		return false, nil
	}
	var data []byte
	err := c.guard(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.client.Get(ctx, cacheKey(collection, gen)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	})
	if errors.Is(err, resilience.ErrOpenCircuit) {
		return false, nil
	}
	if err != nil || data == nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Fill stores recs as the set of collection at gen.
func (c *Cache) Fill(ctx context.Context, collection string, gen int64, recs []Record) error {
	if !c.enabled() {
		return nil
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return err
	}
	err = c.guard(ctx, func(ctx context.Context) error {
		return c.client.Set(ctx, cacheKey(collection, gen), data, c.ttl).Err()
	})
	if errors.Is(err, resilience.ErrOpenCircuit) {
		return nil
	}
	return err
}

// Invalidate moves collection to a new generation. It always reaches Redis,
// even with the breaker open; on failure the collection stays uncached here
// until a bump succeeds.
func (c *Cache) Invalidate(ctx context.Context, collection string) error {
	if !c.enabled() {
		return nil
	}
	return c.bump(ctx, collection)
}

func (c *Cache) bump(ctx context.Context, collection string) error {
	gen, err := c.client.Incr(ctx, generationKey(collection)).Result()
	if c.breaker != nil {
		c.breaker.Report(err == nil)
	}
	c.mu.Lock()
	if err != nil {
		c.dirty[collection] = true
	} else {
		delete(c.dirty, collection)
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	// The previous generation is unreachable now; dropping it only saves memory.
	_ = c.client.Del(ctx, cacheKey(collection, gen-1)).Err()
	return nil
}

func (c *Cache) isDirty(collection string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty[collection]
}

func generationKey(collection string) string {
	return cacheKeyPrefix + collection + ":gen"
}

func cacheKey(collection string, gen int64) string {
	return cacheKeyPrefix + collection + ":" + strconv.FormatInt(gen, 10)
}
