package realtime

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes snapshot payloads to Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher wraps a Redis client for publishing.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	if client == nil {
		panic("realtime: redis client cannot be nil")
	}
	return &RedisPublisher{client: client}
}

// Publish sends a payload to the given channel.
func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload string) error {
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("realtime: failed to publish to %s: %w", channel, err)
	}
	return nil
}
