package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bytesize-travel/service-curation/internal/contracts"
	"github.com/bytesize-travel/service-curation/internal/domain/run"
	"github.com/bytesize-travel/service-curation/internal/kafka"
	"github.com/bytesize-travel/service-curation/internal/selection"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UsageRecorder marks items as used.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, ids []uuid.UUID) (time.Time, error)
}

// PublicationSagaService turns a selected bundle into a published run.
type PublicationSagaService struct {
	runs      run.RunRepository
	recorder  UsageRecorder
	publisher kafka.Publisher
	logger    *zap.Logger
}

// NewPublicationSagaService creates a new PublicationSagaService.
func NewPublicationSagaService(
	runs run.RunRepository,
	recorder UsageRecorder,
	publisher kafka.Publisher,
	logger *zap.Logger,
) *PublicationSagaService {
	return &PublicationSagaService{
		runs:      runs,
		recorder:  recorder,
		publisher: publisher,
		logger:    logger,
	}
}

// PublishSaga saves the run, records usage of every selected item, announces
// the bundle and finally marks the run published. A failed step leaves the
// run failed; recorded usage is kept.
func (s *PublicationSagaService) PublishSaga(ctx context.Context, cadence string, result *selection.Result) (*run.SelectionRun, error) {
	b := result.Bundle
	meta := b.Metadata()
	focus := ""
	if meta.DestinationFocus != nil {
		focus = *meta.DestinationFocus
	}

	r, err := run.NewSelectionRun(cadence, meta.GeneratedAt, meta.SelectedIDs, focus, meta.IncludeSeasonal)
	if err != nil {
		return nil, err
	}
	runID := r.ID()
	var usedAt time.Time

	saga := NewSaga("publish_bundle", s.logger)

	// Step 1: Save run to database
	saga.AddStep(SagaStep{
		Name: "save_run",
		Execute: func(ctx context.Context) error {
			return s.runs.Save(ctx, r)
		},
		Compensate: func(ctx context.Context) error {
			if err := r.Fail("saga compensation: publication failed"); err != nil {
				return err
			}
			return s.runs.Update(ctx, r)
		},
	})

	// Step 2: Record usage. Not compensated.
	saga.AddStep(SagaStep{
		Name: "record_usage",
		Execute: func(ctx context.Context) error {
			var err error
			usedAt, err = s.recorder.RecordUsage(ctx, r.SelectedIDs())
			return err
		},
	})

	// Step 3: Publish BundleSelectedEvent
	saga.AddStep(SagaStep{
		Name: "publish_bundle_selected_event",
		Execute: func(ctx context.Context) error {
			raw, err := json.Marshal(b)
			if err != nil {
				return fmt.Errorf("failed to encode bundle: %w", err)
			}
			event := contracts.BundleSelectedEvent{
				RunID:            runID,
				Cadence:          cadence,
				Bundle:           raw,
				DestinationFocus: focus,
				OccurredAt:       time.Now().UTC(),
			}
			return s.publish(ctx, contracts.BundleSelected, runID, event)
		},
	})

	// Step 4: Publish UsageRecordedEvent
	saga.AddStep(SagaStep{
		Name: "publish_usage_recorded_event",
		Execute: func(ctx context.Context) error {
			event := contracts.UsageRecordedEvent{
				RunID:      &runID,
				ContentIDs: r.SelectedIDs(),
				UsedAt:     usedAt,
				OccurredAt: time.Now().UTC(),
			}
			return s.publish(ctx, contracts.UsageRecorded, runID, event)
		},
	})

	// Step 5: Mark run published
	saga.AddStep(SagaStep{
		Name: "mark_published",
		Execute: func(ctx context.Context) error {
			if err := r.MarkPublished(); err != nil {
				return err
			}
			return s.runs.Update(ctx, r)
		},
	})

	if err := saga.Execute(ctx); err != nil {
		s.publishFailedEvent(ctx, &runID, cadence, err.Error())
		return nil, err
	}

	return r, nil
}

func (s *PublicationSagaService) publish(ctx context.Context, eventType string, subject uuid.UUID, data any) error {
	ce, err := kafka.NewCloudEvent(contracts.ServiceName, eventType, data)
	if err != nil {
		return fmt.Errorf("failed to create cloud event: %w", err)
	}
	ce.SetSubject(subject.String())
	return s.publisher.PublishEvent(ctx, contracts.TopicCurationEvents, ce)
}

// publishFailedEvent publishes a PublicationFailedEvent to Kafka.
func (s *PublicationSagaService) publishFailedEvent(ctx context.Context, runID *uuid.UUID, cadence, reason string) {
	event := contracts.PublicationFailedEvent{
		RunID:      runID,
		Cadence:    cadence,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}

	ce, err := kafka.NewCloudEvent(contracts.ServiceName, contracts.PublicationFailed, event)
	if err != nil {
		s.logger.Error("failed to create publication failed cloud event", zap.Error(err))
		return
	}

	if err := s.publisher.PublishEvent(ctx, contracts.TopicCurationEvents, ce); err != nil {
		s.logger.Error("failed to publish publication failed event", zap.Error(err))
	}
}
