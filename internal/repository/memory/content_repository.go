package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytesize-travel/service-curation/internal/domain/content"
	"github.com/google/uuid"
)

// ContentRepository is an in-memory implementation of content.ContentRepository.
// Items are cloned on the way in and out so callers never share state with
// the store.
type ContentRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*content.ContentItem
}

// NewContentRepository creates a new in-memory content repository
func NewContentRepository(items ...*content.ContentItem) *ContentRepository {
	r := &ContentRepository{items: make(map[uuid.UUID]*content.ContentItem, len(items))}
	for _, it := range items {
		r.items[it.ID()] = it.Clone()
	}
	return r
}

// Query returns the items selected by q
func (r *ContentRepository) Query(ctx context.Context, q content.Query) ([]*content.ContentItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return content.ApplyQuery(r.snapshot(), q), nil
}

// FindByIDs returns the items for ids in the order given, skipping unknown ids
func (r *ContentRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*content.ContentItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*content.ContentItem, 0, len(ids))
	for _, id := range ids {
		if it, ok := r.items[id]; ok {
			out = append(out, it.Clone())
		}
	}
	return out, nil
}

// UpdateUsage records one use of every id at usedAt. Unknown ids fail the
// whole call before anything is written.
func (r *ContentRepository) UpdateUsage(ctx context.Context, ids []uuid.UUID, usedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	targets := make(map[uuid.UUID]*content.ContentItem, len(ids))
	for _, id := range ids {
		it, ok := r.items[id]
		if !ok {
			return fmt.Errorf("%w: %s", content.ErrContentNotFound, id)
		}
		targets[id] = it
	}
	for _, it := range targets {
		it.RecordUse(usedAt)
	}
	return nil
}

// Save inserts the item or replaces its content fields, keeping usage stats
func (r *ContentRepository) Save(ctx context.Context, item *content.ContentItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := item.Snapshot()
	if existing, ok := r.items[s.ID]; ok {
		s.UsageCount = existing.UsageCount()
		s.LastUsedAt = existing.LastUsedAt()
	}
	r.items[s.ID] = content.Reconstruct(s).Clone()
	return nil
}

// ListAll returns a page of items, most recently processed first
func (r *ContentRepository) ListAll(ctx context.Context, page, limit int) ([]*content.ContentItem, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.snapshot()
	content.SortItems(all, func(a, b *content.ContentItem) int {
		return b.ProcessedAt().Compare(a.ProcessedAt())
	})

	total := int64(len(all))
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if limit <= 0 || start >= len(all) {
		return []*content.ContentItem{}, total, nil
	}
	end := min(start+limit, len(all))
	return all[start:end], total, nil
}

// CountByCategory returns the number of stored items per category
func (r *ContentRepository) CountByCategory(ctx context.Context) (map[content.Category]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[content.Category]int64)
	for _, it := range r.items {
		counts[it.Category()]++
	}
	return counts, nil
}

// Ping always succeeds
func (r *ContentRepository) Ping(ctx context.Context) error {
	return nil
}

// snapshot clones every item. Callers must hold the lock.
func (r *ContentRepository) snapshot() []*content.ContentItem {
	out := make([]*content.ContentItem, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it.Clone())
	}
	return out
}
