package content

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrContentNotFound indicates a content item was not found.
	ErrContentNotFound = errors.New("content not found")

	// ErrInvalidContent indicates an enrichment record failed validation.
	ErrInvalidContent = errors.New("invalid content")

	// ErrRepositoryUnavailable wraps storage failures surfaced by a repository.
	ErrRepositoryUnavailable = errors.New("content repository unavailable")
)

// UsageFilter is an eligibility predicate over (lastUsedAt, usageCount).
// Never-used items always pass. The zero value admits only never-used items.
type UsageFilter struct {
	// NeverUsedOnly rejects every item that has been used at least once.
	NeverUsedOnly bool
	// CooledBefore is the latest last-use instant that counts as cooled down.
	CooledBefore time.Time
	// MaxUsageCount is the exclusive cap on usageCount for a used item.
	MaxUsageCount int
}

// Allows evaluates the predicate.
func (f UsageFilter) Allows(lastUsedAt *time.Time, usageCount int) bool {
	if lastUsedAt == nil {
		return true
	}
	if f.NeverUsedOnly {
		return false
	}
	return !lastUsedAt.After(f.CooledBefore) && usageCount < f.MaxUsageCount
}

// Query is a backend-independent selection request. Storage backends may
// push Categories, ExcludeIDs and Usage down into their query language but
// must finish with ApplyQuery so matching and ordering are identical
// everywhere.
type Query struct {
	Categories []Category
	// Usage holds the eligibility predicate per category. A category without
	// an entry admits only never-used items.
	Usage      map[Category]UsageFilter
	ExcludeIDs []uuid.UUID
	// Match is an optional semantic filter (deal deadline, location, ...).
	Match func(*ContentItem) bool
	// Order compares two items; negative sorts a first. Ties fall back to
	// ID ascending.
	Order func(a, b *ContentItem) int
	// Limit caps the result; zero or negative means unlimited.
	Limit int
}

// ApplyQuery filters, orders and limits items according to q.
func ApplyQuery(items []*ContentItem, q Query) []*ContentItem {
	excluded := make(map[uuid.UUID]struct{}, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		excluded[id] = struct{}{}
	}

	out := make([]*ContentItem, 0, len(items))
	for _, it := range items {
		if len(q.Categories) > 0 && !containsCategory(q.Categories, it.category) {
			continue
		}
		if _, skip := excluded[it.id]; skip {
			continue
		}
		if !q.Usage[it.category].Allows(it.lastUsedAt, it.usageCount) {
			continue
		}
		if q.Match != nil && !q.Match(it) {
			continue
		}
		out = append(out, it)
	}

	SortItems(out, q.Order)

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// SortItems orders items by order, then by ID ascending.
func SortItems(items []*ContentItem, order func(a, b *ContentItem) int) {
	sort.SliceStable(items, func(i, j int) bool {
		if order != nil {
			if c := order(items[i], items[j]); c != 0 {
				return c < 0
			}
		}
		return items[i].id.String() < items[j].id.String()
	})
}

func containsCategory(set []Category, c Category) bool {
	for _, s := range set {
		if s == c {
			return true
		}
	}
	return false
}

// ContentRepository defines persistence operations for content items.
type ContentRepository interface {
	// Query returns the items selected by q.
	Query(ctx context.Context, q Query) ([]*ContentItem, error)
	// FindByIDs hydrates items in the order of ids, skipping unknown ids.
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*ContentItem, error)
	// UpdateUsage increments usageCount and sets lastUsedAt for every id.
	// If any id is unknown it returns ErrContentNotFound and writes nothing.
	UpdateUsage(ctx context.Context, ids []uuid.UUID, usedAt time.Time) error
	// Save inserts or replaces an item.
	Save(ctx context.Context, item *ContentItem) error
	ListAll(ctx context.Context, page, limit int) ([]*ContentItem, int64, error)
	CountByCategory(ctx context.Context) (map[Category]int64, error)
	Ping(ctx context.Context) error
}
