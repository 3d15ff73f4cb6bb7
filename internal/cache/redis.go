package cache

import (
	"context"
	"time"

	"github.com/go-redis/cache/v8"
	"github.com/go-redis/redis/v8"
)

// redisCache keeps hot relayer data, price quotes mostly, in Redis so
// restarts do not refetch them from the oracle feed. The local in-process
// tier is skipped: several node replicas may share the same Redis and a
// stale local copy of a quote would bypass the staleness check.
type redisCache struct {
	quotes *cache.Cache
}

// NewRedisCache returns a Cache backed by the given Redis client
func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{quotes: cache.New(&cache.Options{Redis: client})}
}

// Set stores value under key for ttl. ForEver keeps it until deleted.
func (c *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.quotes.Set(&cache.Item{
		Ctx:            ctx,
		Key:            key,
		Value:          value,
		TTL:            ttl,
		SkipLocalCache: true,
	})
}

// Get loads the entry for key into value, which must be a pointer. It
// reports whether the key was found.
func (c *redisCache) Get(ctx context.Context, key string, value any) bool {
	return c.quotes.Get(ctx, key, &value) == nil
}

// Exists reports whether key is cached
func (c *redisCache) Exists(ctx context.Context, key string) bool {
	return c.quotes.Exists(ctx, key)
}

// Delete evicts key
func (c *redisCache) Delete(ctx context.Context, key string) error {
	return c.quotes.Delete(ctx, key)
}
