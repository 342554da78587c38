package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bytesize-travel/service-curation/internal/application"
	"github.com/bytesize-travel/service-curation/internal/contracts"
	"github.com/bytesize-travel/service-curation/internal/domain/content"
	"github.com/bytesize-travel/service-curation/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ContentIngester stores enriched records.
type ContentIngester interface {
	Ingest(ctx context.Context, rec contracts.EnrichedContent) (*application.ContentDTO, error)
}

// ContentEventConsumer listens to enrichment events and stores their records.
type ContentEventConsumer struct {
	consumer *kafka.Consumer
	ingester ContentIngester
	logger   *zap.Logger
}

// NewContentEventConsumer creates a new consumer for content events.
func NewContentEventConsumer(
	brokers []string,
	groupID string,
	ingester ContentIngester,
	logger *zap.Logger,
) *ContentEventConsumer {
	return &ContentEventConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, contracts.TopicContentEvents, logger),
		ingester: ingester,
		logger:   logger,
	}
}

// NewContentEventConsumerWithReader builds the consumer over an existing reader.
func NewContentEventConsumerWithReader(
	reader kafka.Reader,
	ingester ContentIngester,
	logger *zap.Logger,
	opts ...kafka.ConsumerOption,
) *ContentEventConsumer {
	return &ContentEventConsumer{
		consumer: kafka.NewConsumerWithReader(reader, logger, opts...),
		ingester: ingester,
		logger:   logger,
	}
}

// Start begins consuming content events. It blocks until the context is cancelled.
func (c *ContentEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// handleMessage routes incoming Kafka messages to the appropriate handler.
func (c *ContentEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from content topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return fmt.Errorf("%w: %v", kafka.ErrPoison, err)
	}

	c.logger.Info("received content event",
		zap.String("type", cloudEvent.Type()),
		zap.String("id", cloudEvent.ID()),
	)

	switch {
	case strings.EqualFold(cloudEvent.Type(), contracts.ContentEnriched):
		return c.handleContentEnriched(ctx, cloudEvent)

	default:
		c.logger.Debug("ignoring unhandled content event type",
			zap.String("type", cloudEvent.Type()),
		)
		return nil
	}
}

// handleContentEnriched processes a ContentEnriched event. Records that fail
// validation are dropped; storage errors are returned for redelivery.
func (c *ContentEventConsumer) handleContentEnriched(ctx context.Context, ce kafka.CloudEvent) error {
	var rec contracts.EnrichedContent
	if err := ce.DataAs(&rec); err != nil {
		c.logger.Error("failed to parse EnrichedContent data", zap.Error(err))
		return fmt.Errorf("%w: %v", kafka.ErrPoison, err)
	}

	_, err := c.ingester.Ingest(ctx, rec)
	if errors.Is(err, content.ErrInvalidContent) {
		c.logger.Warn("dropping invalid enriched content",
			zap.String("event_id", ce.ID()),
			zap.String("title", rec.Title),
			zap.Error(err),
		)
		return nil
	}
	return err
}

// Close closes the underlying Kafka consumer.
func (c *ContentEventConsumer) Close() error {
	return c.consumer.Close()
}
