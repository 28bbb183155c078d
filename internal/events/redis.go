package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes events on Redis pub/sub for the gateway's SSE
// forwarder.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher returns a Publisher backed by rdb.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) PublishStatus(ctx context.Context, ev StatusChanged) error {
	if ev.Type == "" {
		ev.Type = StatusChannel
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, StatusChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", StatusChannel, err)
	}
	return nil
}
