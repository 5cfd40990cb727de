package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Topics the API publishes to
const (
	TopicOrders  = "order_events"
	TopicImports = "import_events"
	TopicUsers   = "user_events"
)

// Publisher emits domain events. Callers treat publishing as
// best-effort: a failed publish is logged, never surfaced to the user.
type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event interface{}) error
	Close() error
}

// Producer publishes JSON events to Kafka
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer creates a Kafka-backed event producer
func NewProducer(brokers []string, logger *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}

	return &Producer{
		writer: writer,
		logger: logger,
	}
}

// PublishEvent marshals the event to JSON and writes it to the topic,
// keyed so that events about one entity stay ordered
func (p *Producer) PublishEvent(ctx context.Context, topic, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: failed to publish to %s: %w", topic, err)
	}

	p.logger.Debug("Event published",
		zap.String("topic", topic),
		zap.String("key", key),
	)

	return nil
}

// Close flushes and closes the underlying writer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// NopPublisher drops all events. Used when no broker is configured.
type NopPublisher struct{}

// PublishEvent discards the event
func (NopPublisher) PublishEvent(ctx context.Context, topic, key string, event interface{}) error {
	return nil
}

// Close is a no-op
func (NopPublisher) Close() error {
	return nil
}
