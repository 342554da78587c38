package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytesize-travel/service-curation/internal/domain/content"
	"github.com/bytesize-travel/service-curation/internal/domain/location"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContentModel is the GORM persistence model for the content_items table.
type ContentModel struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Category           string         `gorm:"type:varchar(20);not null;index"`
	Title              string         `gorm:"type:text"`
	SourceURL          string         `gorm:"type:text"`
	Body               string         `gorm:"type:text"`
	Deal               datatypes.JSON `gorm:"column:deal"`
	PrimaryLocation    string         `gorm:"type:varchar(100);not null;default:'worldwide';index"`
	SecondaryLocations datatypes.JSON `gorm:"column:secondary_locations"`
	Audience           datatypes.JSON `gorm:"column:audience"`
	KeyThemes          datatypes.JSON `gorm:"column:key_themes"`
	Seasonality        datatypes.JSON `gorm:"column:seasonality"`
	ProcessedAt        time.Time      `gorm:"not null;index"`
	UsageCount         int            `gorm:"not null;default:0"`
	LastUsedAt         *time.Time     `gorm:"index"`
	CreatedAt          time.Time      `gorm:"not null"`
	UpdatedAt          time.Time      `gorm:"not null"`
}

// TableName specifies the table name for GORM.
func (ContentModel) TableName() string {
	return "content_items"
}

// GormContentRepository is the GORM-based implementation of ContentRepository.
type GormContentRepository struct {
	db *gorm.DB
}

// NewGormContentRepository creates a new GORM-based content repository.
func NewGormContentRepository(db *gorm.DB) *GormContentRepository {
	return &GormContentRepository{db: db}
}

// Query pushes categories, per-category usage eligibility and exclusions
// down to SQL, then finishes matching and ordering in Go.
func (r *GormContentRepository) Query(ctx context.Context, q content.Query) ([]*content.ContentItem, error) {
	tx := r.db.WithContext(ctx).Model(&ContentModel{})

	if len(q.Categories) > 0 {
		clauses := make([]string, 0, len(q.Categories))
		args := make([]any, 0, len(q.Categories)*3)
		for _, c := range q.Categories {
			f := q.Usage[c]
			switch {
			case f.NeverUsedOnly || f.MaxUsageCount <= 0:
				clauses = append(clauses, "(category = ? AND last_used_at IS NULL)")
				args = append(args, string(c))
			default:
				clauses = append(clauses, "(category = ? AND (last_used_at IS NULL OR (last_used_at <= ? AND usage_count < ?)))")
				args = append(args, string(c), f.CooledBefore.UTC(), f.MaxUsageCount)
			}
		}
		tx = tx.Where(strings.Join(clauses, " OR "), args...)
	}
	if len(q.ExcludeIDs) > 0 {
		tx = tx.Where("id NOT IN ?", q.ExcludeIDs)
	}

	var models []ContentModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, unavailable(err)
	}

	items, err := toContentDomainList(models)
	if err != nil {
		return nil, err
	}
	return content.ApplyQuery(items, q), nil
}

// FindByIDs returns the items for ids in the order given, skipping unknown ids.
func (r *GormContentRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*content.ContentItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var models []ContentModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, unavailable(err)
	}

	byID := make(map[uuid.UUID]*content.ContentItem, len(models))
	for i := range models {
		item, err := toContentDomain(&models[i])
		if err != nil {
			return nil, err
		}
		byID[item.ID()] = item
	}

	items := make([]*content.ContentItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}

// UpdateUsage increments usage_count and stamps last_used_at in one
// statement, so concurrent recorders never lose an increment. If any id is
// unknown nothing is written and ErrContentNotFound is returned.
func (r *GormContentRepository) UpdateUsage(ctx context.Context, ids []uuid.UUID, usedAt time.Time) error {
	unique := uniqueIDs(ids)
	if len(unique) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var known int64
		if err := tx.Model(&ContentModel{}).Where("id IN ?", unique).Count(&known).Error; err != nil {
			return unavailable(err)
		}
		if known != int64(len(unique)) {
			return fmt.Errorf("%w: %d of %d ids unknown", content.ErrContentNotFound, int64(len(unique))-known, len(unique))
		}

		result := tx.Model(&ContentModel{}).
			Where("id IN ?", unique).
			Updates(map[string]any{
				"usage_count":  gorm.Expr("usage_count + ?", 1),
				"last_used_at": usedAt.UTC(),
			})
		if result.Error != nil {
			return unavailable(result.Error)
		}
		return nil
	})
	if err != nil && !errors.Is(err, content.ErrContentNotFound) {
		return unavailable(err)
	}
	return err
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Save inserts the item or overwrites its content fields. Usage statistics
// of an existing row are left untouched.
func (r *GormContentRepository) Save(ctx context.Context, item *content.ContentItem) error {
	model, err := toContentModel(item)
	if err != nil {
		return err
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"category", "title", "source_url", "body", "deal",
			"primary_location", "secondary_locations", "audience",
			"key_themes", "seasonality", "processed_at", "updated_at",
		}),
	}).Create(model).Error
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// ListAll retrieves all content items with pagination (admin).
func (r *GormContentRepository) ListAll(ctx context.Context, page, limit int) ([]*content.ContentItem, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&ContentModel{}).Count(&total).Error; err != nil {
		return nil, 0, unavailable(err)
	}

	var models []ContentModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).Order("processed_at DESC").Order("id ASC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, unavailable(err)
	}

	items, err := toContentDomainList(models)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CountByCategory returns the number of stored items per category.
func (r *GormContentRepository) CountByCategory(ctx context.Context) (map[content.Category]int64, error) {
	type categoryCount struct {
		Category string
		Count    int64
	}
	var results []categoryCount
	if err := r.db.WithContext(ctx).Model(&ContentModel{}).
		Select("category, count(*) as count").
		Group("category").
		Find(&results).Error; err != nil {
		return nil, unavailable(err)
	}

	counts := make(map[content.Category]int64, len(results))
	for _, cc := range results {
		counts[content.Category(cc.Category)] = cc.Count
	}
	return counts, nil
}

// Ping checks the underlying database connection.
func (r *GormContentRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return unavailable(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func unavailable(err error) error {
	if errors.Is(err, content.ErrRepositoryUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", content.ErrRepositoryUnavailable, err)
}

func toContentDomainList(models []ContentModel) ([]*content.ContentItem, error) {
	items := make([]*content.ContentItem, len(models))
	for i := range models {
		item, err := toContentDomain(&models[i])
		if err != nil {
			return nil, err
		}
		items[i] = item
	}
	return items, nil
}

// toContentDomain maps a ContentModel to the domain ContentItem aggregate.
func toContentDomain(model *ContentModel) (*content.ContentItem, error) {
	var deal *content.DealAttributes
	if len(model.Deal) > 0 && string(model.Deal) != "null" {
		deal = &content.DealAttributes{}
		if err := json.Unmarshal(model.Deal, deal); err != nil {
			return nil, fmt.Errorf("decode deal of %s: %w", model.ID, err)
		}
	}

	var secondary, audience, themes, seasonality []string
	for _, col := range []struct {
		raw datatypes.JSON
		dst *[]string
	}{
		{model.SecondaryLocations, &secondary},
		{model.Audience, &audience},
		{model.KeyThemes, &themes},
		{model.Seasonality, &seasonality},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return nil, fmt.Errorf("decode content %s: %w", model.ID, err)
		}
	}

	var lastUsed *time.Time
	if model.LastUsedAt != nil {
		t := model.LastUsedAt.UTC()
		lastUsed = &t
	}

	return content.Reconstruct(content.Snapshot{
		ID:          model.ID,
		Category:    content.Category(model.Category),
		Title:       model.Title,
		SourceURL:   model.SourceURL,
		Body:        model.Body,
		Deal:        deal,
		Locations:   location.Set{Primary: model.PrimaryLocation, Secondary: secondary},
		Audience:    audience,
		KeyThemes:   themes,
		Seasonality: seasonality,
		ProcessedAt: model.ProcessedAt.UTC(),
		UsageCount:  model.UsageCount,
		LastUsedAt:  lastUsed,
	}), nil
}

// toContentModel maps a domain ContentItem to a ContentModel for persistence.
func toContentModel(item *content.ContentItem) (*ContentModel, error) {
	s := item.Snapshot()

	var deal datatypes.JSON
	if s.Deal != nil {
		raw, err := json.Marshal(s.Deal)
		if err != nil {
			return nil, fmt.Errorf("encode deal of %s: %w", s.ID, err)
		}
		deal = raw
	}

	encode := func(v []string) datatypes.JSON {
		if v == nil {
			v = []string{}
		}
		raw, _ := json.Marshal(v)
		return raw
	}

	return &ContentModel{
		ID:                 s.ID,
		Category:           string(s.Category),
		Title:              s.Title,
		SourceURL:          s.SourceURL,
		Body:               s.Body,
		Deal:               deal,
		PrimaryLocation:    s.Locations.Primary,
		SecondaryLocations: encode(s.Locations.Secondary),
		Audience:           encode(s.Audience),
		KeyThemes:          encode(s.KeyThemes),
		Seasonality:        encode(s.Seasonality),
		ProcessedAt:        s.ProcessedAt,
		UsageCount:         s.UsageCount,
		LastUsedAt:         s.LastUsedAt,
	}, nil
}
