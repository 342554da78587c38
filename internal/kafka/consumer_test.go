package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubReader struct {
	queue     []kafkago.Message
	committed []int64
}

func (r *stubReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	if len(r.queue) == 0 {
		<-ctx.Done()
		return kafkago.Message{}, ctx.Err()
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *stubReader) Close() error { return nil }

func consumeFor(t *testing.T, c *Consumer, handle MessageHandler) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	return c.Consume(ctx, handle)
}

func TestConsume_CommitsAfterSuccess(t *testing.T) {
	reader := &stubReader{queue: []kafkago.Message{{Offset: 1}, {Offset: 2}}}
	c := NewConsumerWithReader(reader, zap.NewNop())

	err := consumeFor(t, c, func(context.Context, kafkago.Message) error { return nil })

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []int64{1, 2}, reader.committed)
}

func TestConsume_RetriesUntilHandled(t *testing.T) {
	reader := &stubReader{queue: []kafkago.Message{{Offset: 7}}}
	c := NewConsumerWithReader(reader, zap.NewNop(), WithRetryBackoff(time.Millisecond, 2*time.Millisecond))

	attempts := 0
	_ = consumeFor(t, c, func(context.Context, kafkago.Message) error {
		attempts++
		if attempts < 3 {
			return errors.New("database unavailable")
		}
		return nil
	})

	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int64{7}, reader.committed)
}

func TestConsume_FailingMessageHoldsOffset(t *testing.T) {
	reader := &stubReader{queue: []kafkago.Message{{Offset: 3}, {Offset: 4}}}
	c := NewConsumerWithReader(reader, zap.NewNop(), WithRetryBackoff(time.Millisecond, 2*time.Millisecond))

	var seen []int64
	err := consumeFor(t, c, func(_ context.Context, m kafkago.Message) error {
		seen = append(seen, m.Offset)
		return errors.New("database unavailable")
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, reader.committed)
	assert.NotContains(t, seen, int64(4))
}

func TestConsume_PoisonIsSkipped(t *testing.T) {
	reader := &stubReader{queue: []kafkago.Message{{Offset: 5}, {Offset: 6}}}
	c := NewConsumerWithReader(reader, zap.NewNop())

	_ = consumeFor(t, c, func(_ context.Context, m kafkago.Message) error {
		if m.Offset == 5 {
			return fmt.Errorf("%w: not a cloud event", ErrPoison)
		}
		return nil
	})

	assert.Equal(t, []int64{5, 6}, reader.committed)
}
