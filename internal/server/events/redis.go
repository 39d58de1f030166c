package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// RedisPublisher appends events to a Redis stream named prefix+routingKey.
type RedisPublisher struct {
	client streamAdder
	prefix string
}

// NewRedisPublisher connects using a redis:// URL and pings the server.
func NewRedisPublisher(ctx context.Context, dsn, prefix string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisPublisher{client: client, prefix: prefix}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, routingKey string, payload []byte) (bool, error) {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.prefix + routingKey,
		Values: map[string]any{
			"id":      uuid.NewString(),
			"payload": string(payload),
		},
	}).Err()
	if err != nil {
		return false, fmt.Errorf("redis xadd %s: %w", routingKey, err)
	}
	return true, nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
