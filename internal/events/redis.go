package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"

	"github.com/sakif/species-catalog/internal/model"
)

const defaultChannel = "species-catalog:changes"

// envelope is the wire format on the pub/sub channel.
type envelope struct {
	Origin string       `json:"origin"`
	Change model.Change `json:"change"`
}

// RedisRelay carries changes between server instances.
//
// Forward publishes a change tagged with this instance's origin ID. Run
// subscribes to the same channel and rebroadcasts changes from other
// instances into the local Hub; its own messages are skipped because the
// Hub already delivered them locally.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	hub     *Hub
	logger  *slog.Logger
}

func NewRedisRelay(client *redis.Client, channel string, hub *Hub, logger *slog.Logger) *RedisRelay {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = defaultChannel
	}
	return &RedisRelay{
		client:  client,
		channel: channel,
		origin:  xid.New().String(),
		hub:     hub,
		logger:  logger,
	}
}

// Forward implements Forwarder.
func (r *RedisRelay) Forward(ctx context.Context, change model.Change) error {
	payload, err := json.Marshal(envelope{Origin: r.origin, Change: change})
	if err != nil {
		return fmt.Errorf("events: encoding change: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("events: publishing to %s: %w", r.channel, err)
	}
	return nil
}

// Run relays remote changes into the hub until ctx is cancelled. It returns
// an error only if the initial subscription fails.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed so no message published
	// after Run returns control is missed.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("events: subscribing to %s: %w", r.channel, err)
	}
	r.logger.Info("relaying species changes via redis", slog.String("channel", r.channel))

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Warn("dropping malformed change message", slog.String("error", err.Error()))
				continue
			}
			if env.Origin == r.origin {
				continue
			}
			r.hub.Broadcast(env.Change)
		}
	}
}
