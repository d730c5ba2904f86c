package realtime

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/teleseva/teleseva-platform/pkg/logging"
)

// Broadcaster is the hub surface the feed pushes into.
type Broadcaster interface {
	Broadcast(topic, payload string)
}

// RedisFeed consumes Redis pub/sub channels and forwards snapshots to the
// hub. It bridges the services, which publish without knowing who listens,
// and the websocket subscribers.
type RedisFeed struct {
	client *redis.Client
	hub    Broadcaster
	logger *logging.Logger
}

// NewRedisFeed creates a feed over the given Redis client.
func NewRedisFeed(client *redis.Client, hub Broadcaster, logger *logging.Logger) *RedisFeed {
	if client == nil {
		panic("realtime: redis client cannot be nil")
	}
	if hub == nil {
		panic("realtime: hub cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisFeed{client: client, hub: hub, logger: logger}
}

// Run subscribes and forwards until the context is cancelled.
func (f *RedisFeed) Run(ctx context.Context) error {
	sub := f.client.PSubscribe(ctx, ChannelAppointmentsPattern())
	if err := sub.Subscribe(ctx, ChannelDoctors); err != nil {
		_ = sub.Close()
		return err
	}
	defer sub.Close()

	f.logger.Info("realtime feed subscribed",
		"channels", []string{ChannelDoctors, ChannelAppointmentsPattern()})

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			f.hub.Broadcast(topicForChannel(msg.Channel), msg.Payload)
		}
	}
}

// topicForChannel maps a Redis channel name onto a hub topic.
func topicForChannel(channel string) string {
	if channel == ChannelDoctors {
		return TopicDoctors
	}
	if userID := UserFromAppointmentsChannel(channel); userID != "" {
		return TopicAppointments(userID)
	}
	return channel
}
