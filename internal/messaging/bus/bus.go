// Package bus is the in-process event bus connecting the price sync engine,
// the order engine and their consumers, built on watermill's gochannel pub/sub.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/lovemage/deepvape/internal/messaging"
)

// Bus implements messaging.Publisher and messaging.Subscriber over an
// in-process channel pub/sub.
type Bus struct {
	pubSub *gochannel.GoChannel
}

var (
	_ messaging.Publisher  = (*Bus)(nil)
	_ messaging.Subscriber = (*Bus)(nil)
)

func New(logger *slog.Logger) *Bus {
	return &Bus{
		pubSub: gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger)),
	}
}

func (b *Bus) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("key", key)
	if err := b.pubSub.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe runs handler for every message on topic until ctx is cancelled.
// Handler errors are logged; the message is acked either way since the bus
// carries notifications, not work queues.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler func(ctx context.Context, payload []byte) error) error {
	msgs, err := b.pubSub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	go func() {
		for msg := range msgs {
			if err := handler(ctx, msg.Payload); err != nil {
				slog.Error("Error handling bus message", "topic", topic, "err", err)
			}
			msg.Ack()
		}
	}()
	return nil
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}
