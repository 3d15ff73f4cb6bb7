package pubsub

import (
	"context"

	"github.com/go-redis/redis/v8"

	"github.com/verichain-labs/verification-node/internal/log"
)

// RedisClient struct
type RedisClient struct {
	conn *redis.Client
}

// NewRedis returns a redis pubsub client
func NewRedis(rdb *redis.Client) Client {
	return &RedisClient{rdb}
}

// Publish publishes a new topic payload
func (rdb *RedisClient) Publish(ctx context.Context, topic string, payload Event) error {
	msg, err := payload.Marshal()
	if err != nil {
		return err
	}
	return rdb.conn.Publish(ctx, topic, []byte(msg)).Err()
}

// Subscribe adds a topic subscription and runs callback for each received message
func (rdb *RedisClient) Subscribe(ctx context.Context, topic string, callback EventHandler) {
	pubsub := rdb.conn.Subscribe(ctx, topic)
	go func() {
		for {
			select {
			case event := <-pubsub.Channel():
				if event.Channel != topic {
					log.Error(ctx, "msg channel != topic", "channel", event.Channel, "topic", topic)
					continue
				}
				if err := callback(ctx, Message(event.Payload)); err != nil {
					log.Error(ctx, "executing callback function", "err", err, "topic", topic)
				}

			case <-ctx.Done():
				return
			}
		}
	}()
}
