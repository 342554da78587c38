package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/bytesize-travel/service-curation/internal/domain/run"
	"github.com/google/uuid"
)

// RunRepository is an in-memory implementation of run.RunRepository
type RunRepository struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*run.SelectionRun
}

// NewRunRepository creates a new in-memory run repository
func NewRunRepository() *RunRepository {
	return &RunRepository{runs: make(map[uuid.UUID]*run.SelectionRun)}
}

// Save stores a new run
func (r *RunRepository) Save(ctx context.Context, sr *run.SelectionRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[sr.ID()]; exists {
		return errors.New("run already exists")
	}
	r.runs[sr.ID()] = copyRun(sr)
	return nil
}

// Update replaces a stored run
func (r *RunRepository) Update(ctx context.Context, sr *run.SelectionRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[sr.ID()]; !exists {
		return run.ErrRunNotFound
	}
	r.runs[sr.ID()] = copyRun(sr)
	return nil
}

// FindByID retrieves a run
func (r *RunRepository) FindByID(ctx context.Context, id uuid.UUID) (*run.SelectionRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sr, ok := r.runs[id]
	if !ok {
		return nil, run.ErrRunNotFound
	}
	return copyRun(sr), nil
}

// CountPublished counts published runs of a cadence
func (r *RunRepository) CountPublished(ctx context.Context, cadence string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, sr := range r.runs {
		if sr.Cadence() == cadence && sr.Status() == run.StatusPublished {
			n++
		}
	}
	return n, nil
}

func copyRun(sr *run.SelectionRun) *run.SelectionRun {
	return run.Reconstruct(sr.ID(), sr.Cadence(), sr.GeneratedAt(), sr.SelectedIDs(),
		sr.DestinationFocus(), sr.IncludeSeasonal(), sr.Status(), sr.FailureReason(),
		sr.CreatedAt(), sr.UpdatedAt())
}
