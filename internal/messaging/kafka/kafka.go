package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/lovemage/deepvape/internal/messaging"
)

type kafkaBroker struct {
	brokers []string
	prefix  string
}

// NewKafkaBroker creates a Kafka publisher. Topics get the configured prefix
// so one cluster can host multiple storefront environments.
func NewKafkaBroker(brokers []string, topicPrefix string) messaging.Publisher {
	return &kafkaBroker{brokers: brokers, prefix: topicPrefix}
}

func (k *kafkaBroker) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	w := &kafkaGo.Writer{
		Addr:     kafkaGo.TCP(k.brokers...),
		Topic:    k.prefix + topic,
		Balancer: &kafkaGo.LeastBytes{},
	}
	defer w.Close()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := w.WriteMessages(ctx, kafkaGo.Message{
		Key:   []byte(key),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", k.prefix+topic, err)
	}

	slog.Debug("Published event to Kafka", "topic", k.prefix+topic, "key", key)
	return nil
}
