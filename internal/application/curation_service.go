package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytesize-travel/service-curation/internal/contracts"
	"github.com/bytesize-travel/service-curation/internal/domain/bundle"
	"github.com/bytesize-travel/service-curation/internal/domain/content"
	"github.com/bytesize-travel/service-curation/internal/domain/policy"
	"github.com/bytesize-travel/service-curation/internal/domain/run"
	"github.com/bytesize-travel/service-curation/internal/kafka"
	"github.com/bytesize-travel/service-curation/internal/lock"
	"github.com/bytesize-travel/service-curation/internal/metrics"
	"github.com/bytesize-travel/service-curation/internal/saga"
	"github.com/bytesize-travel/service-curation/internal/schedule"
	"github.com/bytesize-travel/service-curation/internal/selection"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUnknownCadence indicates a run was requested for an unconfigured cadence.
var ErrUnknownCadence = errors.New("unknown cadence")

// Run modes.
const (
	ModePreview = "preview"
	ModePublish = "publish"
)

// SelectRequest is the DTO for a selection run.
type SelectRequest struct {
	Cadence string `json:"cadence" binding:"required"`
	// Preview selects without recording usage or saving a run.
	Preview bool `json:"preview"`
	// Now overrides the selection instant; defaults to the current time.
	Now *time.Time `json:"now,omitempty"`
}

// SelectionDTO is the API response DTO for a selection run.
type SelectionDTO struct {
	Mode        string                `json:"mode"`
	Cadence     string                `json:"cadence"`
	RunID       *uuid.UUID            `json:"run_id,omitempty"`
	Bundle      *bundle.Bundle        `json:"bundle"`
	Diagnostics selection.Diagnostics `json:"diagnostics"`
}

// UsageDTO is the API response DTO for recorded usage.
type UsageDTO struct {
	ContentIDs []uuid.UUID `json:"content_ids"`
	UsedAt     time.Time   `json:"used_at"`
}

// RunDTO is the API response DTO for a recorded run with hydrated items.
type RunDTO struct {
	ID               uuid.UUID         `json:"id"`
	Cadence          string            `json:"cadence"`
	Status           string            `json:"status"`
	GeneratedAt      time.Time         `json:"generated_at"`
	DestinationFocus string            `json:"destination_focus,omitempty"`
	IncludeSeasonal  bool              `json:"include_seasonal"`
	FailureReason    string            `json:"failure_reason,omitempty"`
	SelectedIDs      []uuid.UUID       `json:"selected_ids"`
	Items            []bundle.ItemView `json:"items"`
	CreatedAt        time.Time         `json:"created_at"`
}

// CategoryStats is the pool health of one category.
type CategoryStats struct {
	Category content.Category `json:"category"`
	Total    int64            `json:"total"`
	Eligible int              `json:"eligible"`
	Policy   policy.Policy    `json:"policy"`
}

// PoolStatsDTO is the API response DTO for content-pool health.
type PoolStatsDTO struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Categories  []CategoryStats `json:"categories"`
}

// CurationConfig holds the static inputs of the curation service.
type CurationConfig struct {
	Selection selection.Config
	Cadences  []schedule.Cadence
}

// CurationService is the application service that orchestrates selection,
// publication and usage recording.
type CurationService struct {
	engine      *selection.Engine
	recorder    *selection.UsageRecorder
	sagaSvc     *saga.PublicationSagaService
	contentRepo content.ContentRepository
	runRepo     run.RunRepository
	policies    *policy.Table
	locker      lock.Locker
	publisher   kafka.Publisher
	metrics     *metrics.Metrics
	cfg         CurationConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewCurationService creates a new CurationService.
func NewCurationService(
	engine *selection.Engine,
	recorder *selection.UsageRecorder,
	sagaSvc *saga.PublicationSagaService,
	contentRepo content.ContentRepository,
	runRepo run.RunRepository,
	policies *policy.Table,
	locker lock.Locker,
	publisher kafka.Publisher,
	m *metrics.Metrics,
	cfg CurationConfig,
	logger *zap.Logger,
) *CurationService {
	return &CurationService{
		engine:      engine,
		recorder:    recorder,
		sagaSvc:     sagaSvc,
		contentRepo: contentRepo,
		runRepo:     runRepo,
		policies:    policies,
		locker:      locker,
		publisher:   publisher,
		metrics:     m,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// SelectBundle runs a selection. A publish run holds the cadence lock and
// goes through the publication saga; a preview run never writes.
func (s *CurationService) SelectBundle(ctx context.Context, req SelectRequest) (*SelectionDTO, error) {
	cadence, ok := s.cadence(req.Cadence)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCadence, req.Cadence)
	}

	mode := ModePublish
	if req.Preview {
		mode = ModePreview
	}
	now := s.now()
	if req.Now != nil {
		now = *req.Now
	}

	if !req.Preview {
		release, err := s.locker.TryAcquire(ctx, cadence.Name)
		if err != nil {
			s.observeRun(cadence.Name, mode, outcomeOf(err))
			return nil, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release cadence lock", zap.String("cadence", cadence.Name), zap.Error(err))
			}
		}()
	}

	cfg := s.cfg.Selection
	cfg.Gate = s.gateFor(cadence)

	start := time.Now()
	result, err := s.engine.Select(ctx, now, cfg)
	s.metrics.RunDurationSeconds.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	if err != nil {
		s.observeRun(cadence.Name, mode, outcomeOf(err))
		return nil, err
	}
	s.metrics.ItemsSelected.WithLabelValues(cadence.Name).Observe(float64(len(result.Bundle.SelectedIDs())))

	dto := &SelectionDTO{
		Mode:        mode,
		Cadence:     cadence.Name,
		Bundle:      result.Bundle,
		Diagnostics: result.Diagnostics,
	}
	if req.Preview {
		s.observeRun(cadence.Name, mode, metrics.OutcomeSelected)
		return dto, nil
	}

	r, err := s.sagaSvc.PublishSaga(ctx, cadence.Name, result)
	if err != nil {
		s.observeRun(cadence.Name, mode, metrics.OutcomeError)
		return nil, err
	}
	s.metrics.UsageRecordedTotal.Add(float64(len(r.SelectedIDs())))
	s.observeRun(cadence.Name, mode, metrics.OutcomePublished)

	id := r.ID()
	dto.RunID = &id
	s.logger.Info("bundle published",
		zap.String("cadence", cadence.Name),
		zap.String("run_id", id.String()),
		zap.Int("items", len(r.SelectedIDs())),
	)
	return dto, nil
}

// Publish runs a scheduled publication. An empty pool or a concurrent
// publisher is logged and skipped rather than reported as a failure.
func (s *CurationService) Publish(ctx context.Context, cadence string) error {
	_, err := s.SelectBundle(ctx, SelectRequest{Cadence: cadence})
	switch {
	case errors.Is(err, selection.ErrNoEligibleContent):
		s.logger.Warn("nothing to publish this cycle", zap.String("cadence", cadence), zap.Error(err))
		return nil
	case errors.Is(err, lock.ErrLockHeld):
		s.logger.Info("cadence already being published elsewhere", zap.String("cadence", cadence))
		return nil
	}
	return err
}

// RecordUsage marks ids as used outside of a publication run.
func (s *CurationService) RecordUsage(ctx context.Context, ids []uuid.UUID) (*UsageDTO, error) {
	unique := selection.UniqueIDs(ids)
	usedAt, err := s.recorder.RecordUsage(ctx, unique)
	if err != nil {
		return nil, err
	}
	if len(unique) == 0 {
		return &UsageDTO{ContentIDs: unique, UsedAt: usedAt}, nil
	}
	s.metrics.UsageRecordedTotal.Add(float64(len(unique)))

	event := contracts.UsageRecordedEvent{
		ContentIDs: unique,
		UsedAt:     usedAt,
		OccurredAt: time.Now().UTC(),
	}
	if ce, err := kafka.NewCloudEvent(contracts.ServiceName, contracts.UsageRecorded, event); err != nil {
		s.logger.Error("failed to create usage recorded cloud event", zap.Error(err))
	} else if err := s.publisher.PublishEvent(ctx, contracts.TopicCurationEvents, ce); err != nil {
		s.logger.Error("failed to publish usage recorded event", zap.Error(err))
	}

	return &UsageDTO{ContentIDs: unique, UsedAt: usedAt}, nil
}

// GetRun returns a recorded run with its items hydrated.
func (s *CurationService) GetRun(ctx context.Context, id uuid.UUID) (*RunDTO, error) {
	r, err := s.runRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	items, err := s.contentRepo.FindByIDs(ctx, r.SelectedIDs())
	if err != nil {
		return nil, err
	}
	views := make([]bundle.ItemView, len(items))
	for i, it := range items {
		views[i] = bundle.NewItemView(it)
	}

	return &RunDTO{
		ID:               r.ID(),
		Cadence:          r.Cadence(),
		Status:           string(r.Status()),
		GeneratedAt:      r.GeneratedAt(),
		DestinationFocus: r.DestinationFocus(),
		IncludeSeasonal:  r.IncludeSeasonal(),
		FailureReason:    r.FailureReason(),
		SelectedIDs:      r.SelectedIDs(),
		Items:            views,
		CreatedAt:        r.CreatedAt(),
	}, nil
}

// PoolStats reports stored and currently eligible items per category.
func (s *CurationService) PoolStats(ctx context.Context) (*PoolStatsDTO, error) {
	counts, err := s.contentRepo.CountByCategory(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	out := &PoolStatsDTO{GeneratedAt: now}
	for _, c := range content.Categories() {
		q := content.Query{
			Categories: []content.Category{c},
			Usage:      map[content.Category]content.UsageFilter{c: s.policies.Eligibility(c, now)},
		}
		if c == content.CategoryDeal {
			q.Match = func(it *content.ContentItem) bool {
				return it.IsSelectableDeal() && it.Deal().HasFutureDeadline(now)
			}
		}
		eligible, err := s.contentRepo.Query(ctx, q)
		if err != nil {
			return nil, err
		}

		out.Categories = append(out.Categories, CategoryStats{
			Category: c,
			Total:    counts[c],
			Eligible: len(eligible),
			Policy:   s.policies.For(c),
		})
		s.metrics.PoolItems.WithLabelValues(string(c)).Set(float64(counts[c]))
		s.metrics.PoolEligibleItems.WithLabelValues(string(c)).Set(float64(len(eligible)))
	}
	return out, nil
}

// Ping checks the content repository.
func (s *CurationService) Ping(ctx context.Context) error {
	return s.contentRepo.Ping(ctx)
}

func (s *CurationService) cadence(name string) (schedule.Cadence, bool) {
	for _, c := range s.cfg.Cadences {
		if c.Name == name {
			return c, true
		}
	}
	return schedule.Cadence{}, false
}

func (s *CurationService) gateFor(c schedule.Cadence) selection.SeasonalGate {
	if c.SeasonalEvery < 0 {
		return selection.Never
	}
	return selection.EveryNthRun{Counter: s.runRepo, Cadence: c.Name, N: c.SeasonalEvery}
}

func (s *CurationService) observeRun(cadence, mode, outcome string) {
	s.metrics.RunsTotal.WithLabelValues(cadence, mode, outcome).Inc()
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, selection.ErrNoEligibleContent):
		return metrics.OutcomeNoContent
	case errors.Is(err, lock.ErrLockHeld):
		return metrics.OutcomeLocked
	default:
		return metrics.OutcomeError
	}
}
