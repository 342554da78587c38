package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, cadence string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, cadence)
	return p.err
}

func TestScheduler_AddRejectsInvalidCadence(t *testing.T) {
	s := NewScheduler(&recordingPublisher{}, time.Minute, zap.NewNop())

	assert.Error(t, s.Add(Cadence{Name: "", Schedule: "0 8 * * 1"}))
	assert.Error(t, s.Add(Cadence{Name: "weekly", Schedule: "not a cron"}))
	// Six-field expressions are not accepted.
	assert.Error(t, s.Add(Cadence{Name: "weekly", Schedule: "0 0 8 * * 1"}))
}

func TestScheduler_NextRun(t *testing.T) {
	s := NewScheduler(&recordingPublisher{}, time.Minute, zap.NewNop())
	require.NoError(t, s.Add(Cadence{Name: "weekly", Schedule: "0 8 * * 1"}))

	s.Start(context.Background())
	defer s.Stop()

	next, ok := s.Next("weekly")
	require.True(t, ok)
	assert.Equal(t, time.Monday, next.UTC().Weekday())
	assert.Equal(t, 8, next.UTC().Hour())

	_, ok = s.Next("daily")
	assert.False(t, ok)
}

func TestScheduler_ReplaceCadence(t *testing.T) {
	s := NewScheduler(&recordingPublisher{}, time.Minute, zap.NewNop())
	require.NoError(t, s.Add(Cadence{Name: "weekly", Schedule: "0 8 * * 1"}))
	require.NoError(t, s.Add(Cadence{Name: "weekly", Schedule: "0 9 * * 2"}))

	assert.Len(t, s.cron.Entries(), 1)
}

func TestScheduler_TriggerCallsPublisher(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nothing to publish")}
	s := NewScheduler(pub, time.Second, zap.NewNop())

	s.trigger("weekly")
	s.trigger("daily")

	assert.Equal(t, []string{"weekly", "daily"}, pub.calls)
}
