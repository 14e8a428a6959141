package notify

import (
	"context"
	"encoding/json"

	"musaix/logger"

	"github.com/redis/go-redis/v9"
)

// UpdateChannel is the Redis pub/sub channel carrying analysis updates
// between processes.
const UpdateChannel = "analysis:updates"

// RedisBridge relays hub updates through Redis pub/sub so subscribers
// connected to other processes observe the same row changes.
type RedisBridge struct {
	client *redis.Client
	hub    *Hub
}

// NewRedisBridge wires a hub to Redis and registers itself as the hub's
// broadcaster.
func NewRedisBridge(client *redis.Client, hub *Hub) *RedisBridge {
	b := &RedisBridge{client: client, hub: hub}
	hub.SetBridge(b)
	return b
}

// Broadcast publishes an update to the Redis channel.
func (b *RedisBridge) Broadcast(update Update) {
	payload, err := json.Marshal(update)
	if err != nil {
		logger.Error("Failed to encode analysis update", logger.ErrorField(err))
		return
	}

	ctx := context.Background()
	if err := b.client.Publish(ctx, UpdateChannel, payload).Err(); err != nil {
		logger.Error("Failed to publish analysis update to Redis",
			logger.String("analysisId", update.AnalysisID),
			logger.ErrorField(err))
	}
}

// Run consumes the Redis channel and republishes foreign updates into the
// local hub. Blocks until the context is canceled.
func (b *RedisBridge) Run(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, UpdateChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var update Update
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				logger.Warn("Dropping malformed analysis update from Redis", logger.ErrorField(err))
				continue
			}
			// Locally produced updates were already dispatched.
			if update.Origin == b.hub.ID() {
				continue
			}
			b.hub.Publish(update)
		}
	}
}
