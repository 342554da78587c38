package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bytesize-travel/service-curation/internal/application"
	"github.com/bytesize-travel/service-curation/internal/contracts"
	"github.com/bytesize-travel/service-curation/internal/domain/content"
	"github.com/bytesize-travel/service-curation/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeIngester struct {
	received []contracts.EnrichedContent
	err      error
}

func (f *fakeIngester) Ingest(_ context.Context, rec contracts.EnrichedContent) (*application.ContentDTO, error) {
	f.received = append(f.received, rec)
	if f.err != nil {
		return nil, f.err
	}
	return &application.ContentDTO{}, nil
}

func newTestConsumer(ing ContentIngester) *ContentEventConsumer {
	return &ContentEventConsumer{ingester: ing, logger: zap.NewNop()}
}

func message(t *testing.T, eventType string, data any) kafkago.Message {
	t.Helper()
	ce, err := kafka.NewCloudEvent("service-enrichment", eventType, data)
	require.NoError(t, err)
	raw, err := json.Marshal(ce)
	require.NoError(t, err)
	return kafkago.Message{Value: raw}
}

func TestHandleMessage_ContentEnriched(t *testing.T) {
	ing := &fakeIngester{}
	c := newTestConsumer(ing)

	rec := contracts.EnrichedContent{
		Categories: []string{"guide"},
		Title:      "Three days in Kyoto",
		Locations:  contracts.EnrichedLocation{Primary: "Japan", Secondary: []string{"Kyoto"}},
	}
	require.NoError(t, c.handleMessage(context.Background(), message(t, contracts.ContentEnriched, rec)))

	require.Len(t, ing.received, 1)
	assert.Equal(t, "Three days in Kyoto", ing.received[0].Title)
	assert.Equal(t, []string{"Kyoto"}, ing.received[0].Locations.Secondary)
}

func TestHandleMessage_IgnoresOtherTypes(t *testing.T) {
	ing := &fakeIngester{}
	c := newTestConsumer(ing)

	require.NoError(t, c.handleMessage(context.Background(), message(t, "content.fetched", map[string]string{"url": "x"})))
	assert.Empty(t, ing.received)
}

func TestHandleMessage_DropsInvalidContent(t *testing.T) {
	ing := &fakeIngester{err: fmt.Errorf("%w: title is required", content.ErrInvalidContent)}
	c := newTestConsumer(ing)

	err := c.handleMessage(context.Background(), message(t, contracts.ContentEnriched, contracts.EnrichedContent{}))
	assert.NoError(t, err)
	assert.Len(t, ing.received, 1)
}

func TestHandleMessage_PropagatesStorageErrors(t *testing.T) {
	boom := errors.New("db down")
	c := newTestConsumer(&fakeIngester{err: boom})

	err := c.handleMessage(context.Background(), message(t, contracts.ContentEnriched, contracts.EnrichedContent{Title: "x"}))
	assert.ErrorIs(t, err, boom)
}

func TestHandleMessage_MalformedPayload(t *testing.T) {
	c := newTestConsumer(&fakeIngester{})
	err := c.handleMessage(context.Background(), kafkago.Message{Value: []byte("{broken")})
	assert.ErrorIs(t, err, kafka.ErrPoison)
}

// queueReader serves queued messages, then blocks until ctx is done.
type queueReader struct {
	mu        sync.Mutex
	queue     []kafkago.Message
	committed []kafkago.Message
}

func (r *queueReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (r *queueReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *queueReader) Close() error { return nil }

func (r *queueReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func TestStart_RepositoryUnavailableIsNotCommitted(t *testing.T) {
	rec := contracts.EnrichedContent{Categories: []string{"tip"}, Title: "Roll, don't fold"}
	reader := &queueReader{queue: []kafkago.Message{message(t, contracts.ContentEnriched, rec)}}
	ing := &fakeIngester{err: fmt.Errorf("%w: connection refused", content.ErrRepositoryUnavailable)}
	c := NewContentEventConsumerWithReader(reader, ing, zap.NewNop(), kafka.WithRetryBackoff(time.Millisecond, 5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := c.Start(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, reader.commits(), "an unstored record must stay uncommitted")
	assert.Greater(t, len(ing.received), 1, "the record is redelivered to the ingester")
}

func TestStart_InvalidAndMalformedAreCommitted(t *testing.T) {
	reader := &queueReader{queue: []kafkago.Message{
		{Value: []byte("{broken")},
		message(t, contracts.ContentEnriched, contracts.EnrichedContent{}),
	}}
	ing := &fakeIngester{err: fmt.Errorf("%w: title is required", content.ErrInvalidContent)}
	c := NewContentEventConsumerWithReader(reader, ing, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = c.Start(ctx)

	assert.Equal(t, 2, reader.commits())
	assert.Len(t, ing.received, 1)
}
