package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/learnsphere/class-service/internal/models"
)

// RedisBroadcaster publishes meeting events on per-class Redis channels.
// Delivery is best-effort: subscribers that are not listening at publish
// time miss the event, which matches the at-most-once contract of the
// coordinator.
type RedisBroadcaster struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisBroadcaster constructs a broadcaster backed by the given client.
func NewRedisBroadcaster(client *redis.Client, logger *zap.Logger) *RedisBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroadcaster{client: client, logger: logger}
}

// Publish marshals the event and publishes it on the topic channel.
func (b *RedisBroadcaster) Publish(ctx context.Context, topic string, event models.MeetingEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal meeting event: %w", err)
	}
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish meeting event: %w", err)
	}
	b.logger.Debug("meeting event published", zap.String("topic", topic), zap.String("type", event.Type))
	return nil
}
