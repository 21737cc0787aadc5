package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const channelPrefix = "eventhub:event:"

func channelName(eventID string) string {
	return channelPrefix + eventID
}

func eventIDFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, channelPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(channel, channelPrefix)
	return id, id != ""
}

// RedisBroadcaster publishes through Redis pub/sub so that every instance of
// the service relays the update to its own websocket subscribers.
type RedisBroadcaster struct {
	rdb *redis.Client
	hub *Hub
	log *zerolog.Logger
}

func NewRedisBroadcaster(rdb *redis.Client, hub *Hub, log *zerolog.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb, hub: hub, log: log}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, eventID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := b.rdb.Publish(ctx, channelName(eventID), raw).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run relays messages from Redis into the local hub until ctx is done.
func (b *RedisBroadcaster) Run(ctx context.Context) error {
	pubsub := b.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	b.log.Info().Str("pattern", channelPrefix+"*").Msg("realtime relay subscribed")

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("realtime relay stopped")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			eventID, ok := eventIDFromChannel(msg.Channel)
			if !ok {
				continue
			}
			b.hub.Deliver(eventID, []byte(msg.Payload))
		}
	}
}
