package kafka

import (
	"context"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrPoison marks a message that can never be handled. It is committed and
// skipped instead of retried.
var ErrPoison = errors.New("poison message")

// MessageHandler processes one Kafka message.
type MessageHandler func(ctx context.Context, msg kafkago.Message) error

// Reader is the subset of *kafkago.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Consumer reads a topic as part of a consumer group.
type Consumer struct {
	reader       Reader
	logger       *zap.Logger
	initialDelay time.Duration
	maxDelay     time.Duration
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithRetryBackoff sets the delay before the first redelivery attempt and the
// cap the doubling delay grows to.
func WithRetryBackoff(initial, max time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.initialDelay = initial
		c.maxDelay = max
	}
}

// NewConsumer creates a consumer group member for topic.
func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger, opts ...ConsumerOption) *Consumer {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return NewConsumerWithReader(reader, logger, opts...)
}

// NewConsumerWithReader creates a consumer over an existing reader.
func NewConsumerWithReader(reader Reader, logger *zap.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:       reader,
		logger:       logger,
		initialDelay: 500 * time.Millisecond,
		maxDelay:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Consume fetches messages until ctx is cancelled. A message is committed
// only once its handler succeeds or reports ErrPoison; any other failure is
// retried in place with exponential backoff, holding the partition.
func (c *Consumer) Consume(ctx context.Context, handle MessageHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			return err
		}

		if err := c.handleWithRetry(ctx, msg, handle); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("failed to commit message", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// handleWithRetry returns nil once msg may be committed, or ctx's error.
func (c *Consumer) handleWithRetry(ctx context.Context, msg kafkago.Message, handle MessageHandler) error {
	delay := c.initialDelay
	for attempt := 1; ; attempt++ {
		err := handle(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrPoison) {
			c.logger.Warn("skipping unprocessable message",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			return nil
		}

		c.logger.Error("failed to handle message, will retry",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > c.maxDelay {
			delay = c.maxDelay
		}
	}
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
