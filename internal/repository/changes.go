package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

const subscriptionBuffer = 64

func (that *RedisStore) publish(ctx context.Context, sessionID string, events ...ChangeEvent) {
	log := that.logger.With("method", "publish", "sessionID", sessionID)

	for _, event := range events {
		eventJSON, err := json.Marshal(event)
		if err != nil {
			log.Error("failed to marshal change", "error", err)
			continue
		}

		if err = that.client.Publish(ctx, ChangesChannel(sessionID), eventJSON).Err(); err != nil {
			log.Error("failed to publish change", "entity", event.Entity, "error", err)
		}
	}
}

// Subscribe opens the session's change channel. The subscription is confirmed
// before returning, so every change published afterwards is delivered.
func (that *RedisStore) Subscribe(ctx context.Context, sessionID string) (Subscription, error) {
	pubsub := that.client.Subscribe(ctx, ChangesChannel(sessionID))

	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to session %s: %w", sessionID, err)
	}

	sub := &redisSubscription{
		logger: that.logger.With("component", "subscription", "sessionID", sessionID),
		pubsub: pubsub,
		events: make(chan ChangeEvent, subscriptionBuffer),
		done:   make(chan struct{}),
	}

	go sub.run()
	go sub.closeOnDone(ctx)

	return sub, nil
}

type redisSubscription struct {
	logger *slog.Logger
	pubsub *redis.PubSub

	events chan ChangeEvent
	done   chan struct{}
	once   sync.Once
	err    error
}

func (that *redisSubscription) Events() <-chan ChangeEvent {
	return that.events
}

func (that *redisSubscription) Close() error {
	that.once.Do(func() {
		close(that.done)
		that.err = that.pubsub.Close()
	})

	return that.err
}

func (that *redisSubscription) closeOnDone(ctx context.Context) {
	select {
	case <-ctx.Done():
		_ = that.Close()
	case <-that.done:
	}
}

// run forwards published changes. go-redis resubscribes on its own after a
// dropped connection and reports it as a subscription message; anything
// published in between is lost, so each one is forwarded as a gap.
func (that *redisSubscription) run() {
	defer close(that.events)

	messages := that.pubsub.ChannelWithSubscriptions()

	for {
		var msg any
		var ok bool

		select {
		case <-that.done:
			return
		case msg, ok = <-messages:
			if !ok {
				return
			}
		}

		var event ChangeEvent

		switch msg := msg.(type) {
		case *redis.Subscription:
			if msg.Kind != "subscribe" {
				continue
			}

			that.logger.Warn("subscription re-established, changes may have been missed", "channel", msg.Channel)
			event = GapEvent()

		case *redis.Message:
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				that.logger.Error("failed to unmarshal change", "error", err)
				continue
			}

		default:
			continue
		}

		select {
		case that.events <- event:
		case <-that.done:
			return
		}
	}
}
