package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"
	"tour-optimization-service/internal/ports"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher broadcasts job lifecycle events over Redis Pub/Sub,
// one channel per optimization run.
type RedisPublisher struct {
	rdb     *redis.Client
	timeout time.Duration
}

var _ ports.JobEventPublisher = (*RedisPublisher)(nil)

func NewRedisPublisher(redisURL string) (*RedisPublisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis publisher: parse url: %w", err)
	}
	return NewRedisPublisherFromClient(redis.NewClient(opt)), nil
}

func NewRedisPublisherFromClient(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, timeout: 2 * time.Second}
}

// ChannelName returns the Pub/Sub channel carrying the events of one run.
func ChannelName(runID string) string { return "optimization:" + runID }

// Publish never fails the caller; delivery errors are logged.
func (p *RedisPublisher) Publish(ctx context.Context, event ports.JobEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("job event encode failed: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.rdb.Publish(ctx, ChannelName(event.RunID), data).Err(); err != nil {
		log.Printf("job event publish failed run_id=%s strategy=%s kind=%s: %v", event.RunID, event.Strategy, event.Kind, err)
	}
}

func (p *RedisPublisher) Close() error { return p.rdb.Close() }
