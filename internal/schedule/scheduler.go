// Package schedule triggers publication runs on cron schedules.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Cadence is one named publication schedule.
type Cadence struct {
	Name string `mapstructure:"name"`
	// Schedule is a standard five-field cron expression.
	Schedule string `mapstructure:"schedule"`
	// SeasonalEvery includes the seasonal experience slot on every Nth
	// published run; 0 or 1 includes it every time, negative never.
	SeasonalEvery int `mapstructure:"seasonal_every"`
}

// Publisher runs one non-preview selection for a cadence.
type Publisher interface {
	Publish(ctx context.Context, cadence string) error
}

// Scheduler owns the cron instance and its entries.
type Scheduler struct {
	cron      *cron.Cron
	parser    cron.Parser
	publisher Publisher
	timeout   time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	ctx     context.Context
}

// NewScheduler creates a Scheduler. timeout bounds each triggered run.
func NewScheduler(publisher Publisher, timeout time.Duration, logger *zap.Logger) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cron.DefaultLogger)),
		),
		parser:    parser,
		publisher: publisher,
		timeout:   timeout,
		logger:    logger,
		entries:   make(map[string]cron.EntryID),
		ctx:       context.Background(),
	}
}

// Add registers a cadence. Adding a name twice replaces its schedule.
func (s *Scheduler) Add(c Cadence) error {
	if c.Name == "" {
		return errors.New("cadence name is required")
	}
	sched, err := s.parser.Parse(c.Schedule)
	if err != nil {
		return fmt.Errorf("failed to parse cron expression for %s: %w", c.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[c.Name]; ok {
		s.cron.Remove(id)
	}

	name := c.Name
	s.entries[name] = s.cron.Schedule(sched, cron.FuncJob(func() { s.trigger(name) }))

	s.logger.Info("cadence scheduled",
		zap.String("cadence", name),
		zap.String("schedule", c.Schedule),
		zap.Time("next_run", sched.Next(time.Now().UTC())),
	)
	return nil
}

// Start runs the cron loop until Stop. ctx is the parent of every run.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Next returns the next trigger time of a cadence.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Scheduler) trigger(name string) {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	s.logger.Info("cron triggered publication", zap.String("cadence", name))
	if err := s.publisher.Publish(ctx, name); err != nil {
		s.logger.Error("scheduled publication failed",
			zap.String("cadence", name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("scheduled publication completed",
		zap.String("cadence", name),
		zap.Duration("duration", time.Since(start)),
	)
}
