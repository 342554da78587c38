package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bytesize-travel/service-curation/internal/domain/run"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RunModel is the GORM persistence model for the selection_runs table.
type RunModel struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Cadence          string         `gorm:"type:varchar(50);not null;index:idx_runs_cadence_status"`
	Status           string         `gorm:"type:varchar(20);not null;default:'selected';index:idx_runs_cadence_status"`
	GeneratedAt      time.Time      `gorm:"not null"`
	SelectedIDs      datatypes.JSON `gorm:"column:selected_ids;not null"`
	DestinationFocus string         `gorm:"type:varchar(100)"`
	IncludeSeasonal  bool           `gorm:"not null;default:false"`
	FailureReason    string         `gorm:"type:text"`
	CreatedAt        time.Time      `gorm:"not null"`
	UpdatedAt        time.Time      `gorm:"not null"`
}

// TableName specifies the table name for GORM.
func (RunModel) TableName() string {
	return "selection_runs"
}

// GormRunRepository is the GORM-based implementation of RunRepository.
type GormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository creates a new GORM-based run repository.
func NewGormRunRepository(db *gorm.DB) *GormRunRepository {
	return &GormRunRepository{db: db}
}

// Save persists a new selection run.
func (r *GormRunRepository) Save(ctx context.Context, sr *run.SelectionRun) error {
	model, err := toRunModel(sr)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return unavailable(err)
	}
	return nil
}

// Update persists the status of an existing run.
func (r *GormRunRepository) Update(ctx context.Context, sr *run.SelectionRun) error {
	result := r.db.WithContext(ctx).
		Model(&RunModel{}).
		Where("id = ?", sr.ID()).
		Updates(map[string]any{
			"status":         string(sr.Status()),
			"failure_reason": sr.FailureReason(),
			"updated_at":     sr.UpdatedAt(),
		})
	if result.Error != nil {
		return unavailable(result.Error)
	}
	if result.RowsAffected == 0 {
		return run.ErrRunNotFound
	}
	return nil
}

// FindByID retrieves a run by its unique ID.
func (r *GormRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*run.SelectionRun, error) {
	var model RunModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, run.ErrRunNotFound
		}
		return nil, unavailable(err)
	}
	return toRunDomain(&model)
}

// CountPublished returns how many runs of cadence reached published.
func (r *GormRunRepository) CountPublished(ctx context.Context, cadence string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&RunModel{}).
		Where("cadence = ? AND status = ?", cadence, string(run.StatusPublished)).
		Count(&count).Error; err != nil {
		return 0, unavailable(err)
	}
	return count, nil
}

func toRunDomain(model *RunModel) (*run.SelectionRun, error) {
	var ids []uuid.UUID
	if err := json.Unmarshal(model.SelectedIDs, &ids); err != nil {
		return nil, fmt.Errorf("decode selected ids of run %s: %w", model.ID, err)
	}
	return run.Reconstruct(
		model.ID,
		model.Cadence,
		model.GeneratedAt.UTC(),
		ids,
		model.DestinationFocus,
		model.IncludeSeasonal,
		run.Status(model.Status),
		model.FailureReason,
		model.CreatedAt.UTC(),
		model.UpdatedAt.UTC(),
	), nil
}

func toRunModel(sr *run.SelectionRun) (*RunModel, error) {
	ids, err := json.Marshal(sr.SelectedIDs())
	if err != nil {
		return nil, fmt.Errorf("encode selected ids of run %s: %w", sr.ID(), err)
	}
	return &RunModel{
		ID:               sr.ID(),
		Cadence:          sr.Cadence(),
		Status:           string(sr.Status()),
		GeneratedAt:      sr.GeneratedAt(),
		SelectedIDs:      ids,
		DestinationFocus: sr.DestinationFocus(),
		IncludeSeasonal:  sr.IncludeSeasonal(),
		FailureReason:    sr.FailureReason(),
		CreatedAt:        sr.CreatedAt(),
		UpdatedAt:        sr.UpdatedAt(),
	}, nil
}

// Models lists every persistence model for AutoMigrate.
func Models() []any {
	return []any{&ContentModel{}, &RunModel{}}
}
