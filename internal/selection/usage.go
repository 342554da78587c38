package selection

import (
	"context"
	"time"

	"github.com/bytesize-travel/service-curation/internal/domain/content"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UsageRecorder marks selected items as used. It is the only write path of
// the selection core and is called separately from Engine.Select, so a
// preview run leaves the repository untouched.
type UsageRecorder struct {
	repo   content.ContentRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewUsageRecorder creates a new UsageRecorder.
func NewUsageRecorder(repo content.ContentRepository, logger *zap.Logger) *UsageRecorder {
	return &UsageRecorder{repo: repo, logger: logger, now: time.Now}
}

// RecordUsage increments the usage count of every id once and stamps the
// same invocation time on all of them. It returns the timestamp used.
func (r *UsageRecorder) RecordUsage(ctx context.Context, ids []uuid.UUID) (time.Time, error) {
	at := r.now().UTC()
	unique := UniqueIDs(ids)
	if len(unique) == 0 {
		return at, nil
	}

	if err := r.repo.UpdateUsage(ctx, unique, at); err != nil {
		r.logger.Error("failed to record usage", zap.Int("items", len(unique)), zap.Error(err))
		return at, err
	}

	r.logger.Info("usage recorded", zap.Int("items", len(unique)), zap.Time("used_at", at))
	return at, nil
}

// UniqueIDs drops uuid.Nil and repeated ids, keeping first-seen order.
func UniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
