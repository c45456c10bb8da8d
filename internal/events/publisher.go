// Package events delivers domain events over Redis. Delivery is at-most-once
// and best-effort: the orchestrator logs publish failures and never blocks on
// them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/echoroom/backend/internal/session"
)

const (
	// StreamKey is the Redis list downstream consumers read domain events from.
	StreamKey = "events:domain"
	// ChannelKey is the pub/sub channel live subscribers listen on.
	ChannelKey = "events:live"

	publishTimeout = 5 * time.Second
)

// Publisher implements session.EventPublisher on Redis.
type Publisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewPublisher creates a Redis-backed event publisher.
func NewPublisher(client *redis.Client, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, logger: logger}
}

// Publish appends the event to the durable stream and notifies live
// subscribers. The pub/sub notify is secondary; only the stream append is
// reported as failure.
func (p *Publisher) Publish(ctx context.Context, e session.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.client.RPush(ctx, StreamKey, body).Err(); err != nil {
		return fmt.Errorf("rpush event: %w", err)
	}
	if err := p.client.Publish(ctx, ChannelKey, body).Err(); err != nil {
		p.logger.Debug("event live notify failed", zap.String("event", e.Name), zap.Error(err))
	}
	p.logger.Debug("event published",
		zap.String("event", e.Name),
		zap.String("priority", e.Priority),
		zap.String("room_id", e.RoomID.String()),
	)
	return nil
}
