package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type redisPublishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher sends events over Redis Pub/Sub.
type RedisPublisher struct {
	client  redisPublishClient
	channel string
}

// NewRedisPublisher returns nil when client is nil so it can be passed straight to NewFanout.
func NewRedisPublisher(client *redis.Client, channel string) Publisher {
	if client == nil {
		return nil
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Name() string { return "redis" }

func (p *RedisPublisher) Publish(ctx context.Context, evt PaymentEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	return nil
}

// Close is a no-op; the Redis client is owned by main.
func (p *RedisPublisher) Close() error { return nil }
