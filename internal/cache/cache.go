package cache

import (
	"context"
	"time"
)

// ForEver is a cache entry TTL that never expires
const ForEver = 0

// Cache interface propose a cache storage implementation agnostic
type Cache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string, value any) bool
	Exists(ctx context.Context, key string) bool
	Delete(ctx context.Context, key string) error
}
