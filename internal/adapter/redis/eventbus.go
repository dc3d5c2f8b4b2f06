package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/alanyang/shard-coordinator/internal/domain/event"
	porteventbus "github.com/alanyang/shard-coordinator/internal/port/eventbus"
)

var _ porteventbus.EventBus = (*EventBus)(nil)

// EventBus carries agent events over Redis pub/sub. Like NOTIFY, messages
// published while nobody listens are lost.
type EventBus struct {
	client goredis.UniversalClient
	prefix string
	logger *slog.Logger
}

func NewEventBus(client goredis.UniversalClient, tenantID string, logger *slog.Logger) *EventBus {
	return &EventBus{client: client, prefix: "shard_coord:" + tenantID + ":", logger: logger}
}

func (eb *EventBus) channel(ch event.Channel) string { return eb.prefix + string(ch) }

func (eb *EventBus) Publish(ctx context.Context, e event.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	channel := eb.channel(event.ChannelFor(e.Type))
	if err := eb.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("redis: publish on %s: %w", channel, err)
	}
	return nil
}

func (eb *EventBus) Subscribe(ctx context.Context, ch event.Channel, handler porteventbus.Handler) (porteventbus.Subscription, error) {
	channel := eb.channel(ch)
	pubsub := eb.client.Subscribe(ctx, channel)
	// Wait for the confirmation so a broken connection fails here.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe to %s: %w", channel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{pubsub: pubsub, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		msgs := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e event.Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					eb.logger.Warn("dropping malformed event", "channel", channel, "error", err)
					continue
				}
				handler(subCtx, e)
			}
		}
	}()

	return sub, nil
}

type subscription struct {
	pubsub *goredis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *subscription) Unsubscribe() {
	s.cancel()
	<-s.done
	s.pubsub.Close()
}
