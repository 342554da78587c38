package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher sends CloudEvents to a topic.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, ce CloudEvent) error
}

// Producer publishes CloudEvents with a kafka-go writer.
type Producer struct {
	writer *kafkago.Writer
	logger *zap.Logger
}

// NewProducer creates a producer for brokers. The topic is chosen per message.
func NewProducer(brokers []string, logger *zap.Logger) *Producer {
	return &Producer{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
		logger: logger,
	}
}

// PublishEvent writes ce to topic, keyed by the event subject when set.
func (p *Producer) PublishEvent(ctx context.Context, topic string, ce CloudEvent) error {
	raw, err := json.Marshal(ce)
	if err != nil {
		return fmt.Errorf("failed to encode cloud event: %w", err)
	}

	key := ce.Subject()
	if key == "" {
		key = ce.ID()
	}

	msg := kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: raw,
		Headers: []kafkago.Header{
			{Key: "content-type", Value: []byte("application/cloudevents+json")},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("type", ce.Type()),
			zap.Error(err),
		)
		return err
	}

	p.logger.Debug("event published",
		zap.String("topic", topic),
		zap.String("type", ce.Type()),
		zap.String("id", ce.ID()),
	)
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events. It is used when Kafka is disabled.
type NopPublisher struct {
	Logger *zap.Logger
}

// PublishEvent implements Publisher.
func (n NopPublisher) PublishEvent(_ context.Context, topic string, ce CloudEvent) error {
	if n.Logger != nil {
		n.Logger.Debug("kafka disabled, dropping event",
			zap.String("topic", topic),
			zap.String("type", ce.Type()),
		)
	}
	return nil
}
