// Package run records selection runs for history, hydration and cadence gating.
package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle of a selection run.
type Status string

const (
	StatusSelected  Status = "selected"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// ErrRunNotFound indicates a run was not found.
var ErrRunNotFound = errors.New("selection run not found")

// SelectionRun is the aggregate root for one recorded selection.
type SelectionRun struct {
	id               uuid.UUID
	cadence          string
	generatedAt      time.Time
	selectedIDs      []uuid.UUID
	destinationFocus string
	includeSeasonal  bool
	status           Status
	failureReason    string
	createdAt        time.Time
	updatedAt        time.Time
}

// NewSelectionRun creates a run in the selected state.
func NewSelectionRun(cadence string, generatedAt time.Time, selectedIDs []uuid.UUID, destinationFocus string, includeSeasonal bool) (*SelectionRun, error) {
	if cadence == "" {
		return nil, fmt.Errorf("cadence is required")
	}
	if len(selectedIDs) == 0 {
		return nil, fmt.Errorf("a run must select at least one item")
	}
	now := time.Now().UTC()
	return &SelectionRun{
		id:               uuid.New(),
		cadence:          cadence,
		generatedAt:      generatedAt.UTC(),
		selectedIDs:      append([]uuid.UUID(nil), selectedIDs...),
		destinationFocus: destinationFocus,
		includeSeasonal:  includeSeasonal,
		status:           StatusSelected,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

// Reconstruct rebuilds a SelectionRun from persistence.
func Reconstruct(id uuid.UUID, cadence string, generatedAt time.Time, selectedIDs []uuid.UUID, destinationFocus string, includeSeasonal bool, status Status, failureReason string, createdAt, updatedAt time.Time) *SelectionRun {
	return &SelectionRun{
		id: id, cadence: cadence, generatedAt: generatedAt, selectedIDs: selectedIDs,
		destinationFocus: destinationFocus, includeSeasonal: includeSeasonal,
		status: status, failureReason: failureReason,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// MarkPublished transitions a selected run to published.
func (r *SelectionRun) MarkPublished() error {
	if r.status != StatusSelected {
		return fmt.Errorf("cannot publish run in status %s", r.status)
	}
	r.status = StatusPublished
	r.updatedAt = time.Now().UTC()
	return nil
}

// Fail marks the run failed unless it already completed.
func (r *SelectionRun) Fail(reason string) error {
	if r.status == StatusPublished {
		return fmt.Errorf("cannot fail run in status %s", r.status)
	}
	r.status = StatusFailed
	r.failureReason = reason
	r.updatedAt = time.Now().UTC()
	return nil
}

// Getters.
func (r *SelectionRun) ID() uuid.UUID            { return r.id }
func (r *SelectionRun) Cadence() string          { return r.cadence }
func (r *SelectionRun) GeneratedAt() time.Time   { return r.generatedAt }
func (r *SelectionRun) SelectedIDs() []uuid.UUID { return append([]uuid.UUID(nil), r.selectedIDs...) }
func (r *SelectionRun) DestinationFocus() string { return r.destinationFocus }
func (r *SelectionRun) IncludeSeasonal() bool    { return r.includeSeasonal }
func (r *SelectionRun) Status() Status           { return r.status }
func (r *SelectionRun) FailureReason() string    { return r.failureReason }
func (r *SelectionRun) CreatedAt() time.Time     { return r.createdAt }
func (r *SelectionRun) UpdatedAt() time.Time     { return r.updatedAt }

// RunRepository defines persistence operations for selection runs.
type RunRepository interface {
	Save(ctx context.Context, r *SelectionRun) error
	Update(ctx context.Context, r *SelectionRun) error
	FindByID(ctx context.Context, id uuid.UUID) (*SelectionRun, error)
	// CountPublished returns how many runs of cadence reached published.
	CountPublished(ctx context.Context, cadence string) (int64, error)
}
