package redis

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// Open opens a connection to redis and returns it
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := Status(ctx, rdb); err != nil {
		return nil, err
	}
	return rdb, nil
}

// Status returns nil if redis status is ok. Otherwise a redis status err
func Status(ctx context.Context, rdb *redis.Client) error {
	if pingCmd := rdb.Ping(ctx); pingCmd.Err() != nil {
		return pingCmd.Err()
	}
	return nil
}

// Wrapper adapts a redis client to the health pinger interface
type Wrapper struct {
	conn *redis.Client
}

// NewWrapper returns a redis Wrapper
func NewWrapper(conn *redis.Client) Wrapper {
	return Wrapper{conn: conn}
}

// Ping returns the redis connection status
func (w Wrapper) Ping(ctx context.Context) error {
	return Status(ctx, w.conn)
}
