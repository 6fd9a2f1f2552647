package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"
	"tour-optimization-service/internal/domain"
	"tour-optimization-service/internal/ports"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisherPublishesToRunChannel(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, ChannelName("run-1"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub, err := NewRedisPublisher("redis://" + mr.Addr())
	require.NoError(t, err)
	defer pub.Close()

	pub.Publish(ctx, ports.JobEvent{
		RunID:    "run-1",
		Strategy: domain.StrategyCheapest,
		Kind:     ports.JobSubmitted,
		Handle:   "https://example.test/status/1",
		At:       time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	})

	select {
	case msg := <-sub.Channel():
		var got ports.JobEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, domain.StrategyCheapest, got.Strategy)
		assert.Equal(t, ports.JobSubmitted, got.Kind)
		assert.Equal(t, ports.JobHandle("https://example.test/status/1"), got.Handle)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestRedisPublisherSwallowsErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	pub, err := NewRedisPublisher("redis://" + mr.Addr())
	require.NoError(t, err)
	defer pub.Close()

	mr.Close()

	assert.NotPanics(t, func() {
		pub.Publish(context.Background(), ports.JobEvent{RunID: "run-2", Kind: ports.JobFailed})
	})
}

func TestNewRedisPublisherRejectsBadURL(t *testing.T) {
	_, err := NewRedisPublisher("not a url")
	require.Error(t, err)
}
