package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/bytesize-travel/service-curation/internal/app"
	"github.com/bytesize-travel/service-curation/internal/application"
	"github.com/bytesize-travel/service-curation/internal/contracts"
	"github.com/bytesize-travel/service-curation/internal/domain/bundle"
	"github.com/bytesize-travel/service-curation/internal/domain/content"
	"github.com/bytesize-travel/service-curation/internal/domain/run"
	"github.com/bytesize-travel/service-curation/internal/lock"
	"github.com/bytesize-travel/service-curation/internal/metrics"
	"github.com/bytesize-travel/service-curation/internal/repository/memory"
	"github.com/bytesize-travel/service-curation/internal/schedule"
	"github.com/bytesize-travel/service-curation/internal/selection"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	services *app.Services
	content  *memory.ContentRepository
	runs     *memory.RunRepository
	locker   *lock.LocalLocker
}

func newHarness(t *testing.T, seasonalEvery int) *harness {
	t.Helper()
	h := &harness{
		content: memory.NewContentRepository(),
		runs:    memory.NewRunRepository(),
		locker:  lock.NewLocalLocker(),
	}
	h.services = app.Wire(app.Deps{
		Content:   h.content,
		Runs:      h.runs,
		Locker:    h.locker,
		Logger:    zap.NewNop(),
		Selection: selection.DefaultConfig(),
		Cadences:  []schedule.Cadence{{Name: "weekly", Schedule: "0 8 * * 1", SeasonalEvery: seasonalEvery}},
	})
	return h
}

func intPtr(v int) *int { return &v }

func dealRecord(title, destination string, score int, deadline time.Time) contracts.EnrichedContent {
	return contracts.EnrichedContent{
		Categories: []string{"deal"},
		Title:      title,
		Deal: &contracts.EnrichedDeal{
			ValueScore:      intPtr(score),
			BookingDeadline: deadline.Format(time.DateOnly),
			Destination:     destination,
		},
		Locations: contracts.EnrichedLocation{Primary: destination},
	}
}

func (h *harness) ingest(t *testing.T, recs ...contracts.EnrichedContent) []uuid.UUID {
	t.Helper()
	report, err := h.services.Content.IngestBatch(context.Background(), recs)
	require.NoError(t, err)
	require.Empty(t, report.Failed)
	return report.Imported
}

var july = time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC)

func TestSelectBundle_PreviewDoesNotWrite(t *testing.T) {
	h := newHarness(t, 4)
	ids := h.ingest(t,
		dealRecord("Tokyo", "japan", 9, july.AddDate(0, 0, 10)),
		contracts.EnrichedContent{Categories: []string{"guide"}, Title: "Japan guide", Locations: contracts.EnrichedLocation{Primary: "Japan"}},
	)

	dto, err := h.services.Curation.SelectBundle(context.Background(), application.SelectRequest{Cadence: "weekly", Preview: true, Now: &july})
	require.NoError(t, err)

	assert.Equal(t, application.ModePreview, dto.Mode)
	assert.Nil(t, dto.RunID)
	assert.Equal(t, ids, dto.Bundle.SelectedIDs())

	items, err := h.content.FindByIDs(context.Background(), ids)
	require.NoError(t, err)
	for _, it := range items {
		assert.Zero(t, it.UsageCount())
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(h.services.Metrics.RunsTotal.WithLabelValues("weekly", application.ModePreview, metrics.OutcomeSelected)))
}

func TestSelectBundle_PublishRecordsUsageAndRun(t *testing.T) {
	h := newHarness(t, 4)
	ids := h.ingest(t, dealRecord("Tokyo", "japan", 9, july.AddDate(0, 0, 10)))
	ctx := context.Background()

	dto, err := h.services.Curation.SelectBundle(ctx, application.SelectRequest{Cadence: "weekly", Now: &july})
	require.NoError(t, err)
	require.NotNil(t, dto.RunID)
	assert.Equal(t, application.ModePublish, dto.Mode)

	stored, err := h.runs.FindByID(ctx, *dto.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.StatusPublished, stored.Status())

	items, err := h.content.FindByIDs(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, 1, items[0].UsageCount())

	_, err = h.services.Curation.SelectBundle(ctx, application.SelectRequest{Cadence: "weekly", Now: &july})
	assert.ErrorIs(t, err, selection.ErrNoEligibleContent)
	assert.NoError(t, h.services.Curation.Publish(ctx, "weekly"), "an empty pool is skipped")
}

func TestSelectBundle_UnknownCadence(t *testing.T) {
	h := newHarness(t, 4)
	_, err := h.services.Curation.SelectBundle(context.Background(), application.SelectRequest{Cadence: "hourly", Preview: true})
	assert.ErrorIs(t, err, application.ErrUnknownCadence)
}

func TestSelectBundle_LockHeld(t *testing.T) {
	h := newHarness(t, 4)
	h.ingest(t, dealRecord("Tokyo", "japan", 9, july.AddDate(0, 0, 10)))
	ctx := context.Background()

	release, err := h.locker.TryAcquire(ctx, "weekly")
	require.NoError(t, err)

	_, err = h.services.Curation.SelectBundle(ctx, application.SelectRequest{Cadence: "weekly", Now: &july})
	assert.ErrorIs(t, err, lock.ErrLockHeld)
	assert.NoError(t, h.services.Curation.Publish(ctx, "weekly"))

	_, err = h.services.Curation.SelectBundle(ctx, application.SelectRequest{Cadence: "weekly", Preview: true, Now: &july})
	assert.NoError(t, err, "previews do not take the lock")

	require.NoError(t, release(ctx))
	_, err = h.services.Curation.SelectBundle(ctx, application.SelectRequest{Cadence: "weekly", Now: &july})
	assert.NoError(t, err)
}

func TestSelectBundle_SeasonalSlotEveryNthRun(t *testing.T) {
	h := newHarness(t, 2)
	h.ingest(t,
		dealRecord("one", "japan", 9, july.AddDate(0, 0, 10)),
		dealRecord("two", "japan", 9, july.AddDate(0, 0, 10)),
		contracts.EnrichedContent{Categories: []string{"experience"}, Title: "Festival", Locations: contracts.EnrichedLocation{Primary: "Korea"}},
	)
	ctx := context.Background()

	cfgReq := application.SelectRequest{Cadence: "weekly", Now: &july}
	first, err := h.services.Curation.SelectBundle(ctx, cfgReq)
	require.NoError(t, err)
	assert.False(t, first.Bundle.Metadata().IncludeSeasonal)

	second, err := h.services.Curation.SelectBundle(ctx, cfgReq)
	require.NoError(t, err)
	assert.True(t, second.Bundle.Metadata().IncludeSeasonal)
	assert.Len(t, second.Bundle.Slot(bundle.SlotSeasonalExperience), 1)
}

func TestGetRun_HydratesItems(t *testing.T) {
	h := newHarness(t, 4)
	h.ingest(t, dealRecord("Tokyo", "japan", 9, july.AddDate(0, 0, 10)))
	ctx := context.Background()

	dto, err := h.services.Curation.SelectBundle(ctx, application.SelectRequest{Cadence: "weekly", Now: &july})
	require.NoError(t, err)

	got, err := h.services.Curation.GetRun(ctx, *dto.RunID)
	require.NoError(t, err)
	assert.Equal(t, "weekly", got.Cadence)
	assert.Equal(t, string(run.StatusPublished), got.Status)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Tokyo", got.Items[0].Title)
	assert.Equal(t, "japan", got.DestinationFocus)

	_, err = h.services.Curation.GetRun(ctx, uuid.New())
	assert.ErrorIs(t, err, run.ErrRunNotFound)
}

func TestRecordUsage(t *testing.T) {
	h := newHarness(t, 4)
	ids := h.ingest(t, contracts.EnrichedContent{Categories: []string{"tip"}, Title: "Pack light"})
	ctx := context.Background()

	dto, err := h.services.Curation.RecordUsage(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, ids, dto.ContentIDs)
	assert.False(t, dto.UsedAt.IsZero())

	_, err = h.services.Curation.RecordUsage(ctx, []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

func TestRecordUsage_DuplicatesCountedOnce(t *testing.T) {
	h := newHarness(t, 4)
	ids := h.ingest(t, contracts.EnrichedContent{Categories: []string{"tip"}, Title: "Pack light"})
	ctx := context.Background()

	dto, err := h.services.Curation.RecordUsage(ctx, []uuid.UUID{ids[0], ids[0], uuid.Nil})
	require.NoError(t, err)
	assert.Equal(t, ids, dto.ContentIDs)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.services.Metrics.UsageRecordedTotal))

	items, err := h.content.FindByIDs(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, 1, items[0].UsageCount())
}

func TestRecordUsage_UnknownIDWritesNothing(t *testing.T) {
	h := newHarness(t, 4)
	ids := h.ingest(t, contracts.EnrichedContent{Categories: []string{"tip"}, Title: "Pack light"})
	ctx := context.Background()

	_, err := h.services.Curation.RecordUsage(ctx, []uuid.UUID{ids[0], uuid.New()})
	assert.ErrorIs(t, err, content.ErrContentNotFound)
	assert.Zero(t, testutil.ToFloat64(h.services.Metrics.UsageRecordedTotal))

	items, err := h.content.FindByIDs(ctx, ids)
	require.NoError(t, err)
	assert.Zero(t, items[0].UsageCount())
}

func TestPoolStats(t *testing.T) {
	h := newHarness(t, 4)
	now := time.Now().UTC()
	h.ingest(t,
		dealRecord("live", "japan", 9, now.AddDate(0, 0, 10)),
		dealRecord("expired", "peru", 9, now.AddDate(0, 0, -1)),
		contracts.EnrichedContent{Categories: []string{"news"}, Title: "News"},
	)

	stats, err := h.services.Curation.PoolStats(context.Background())
	require.NoError(t, err)

	byCategory := map[content.Category]application.CategoryStats{}
	for _, c := range stats.Categories {
		byCategory[c.Category] = c
	}
	assert.Len(t, byCategory, len(content.Categories()))
	assert.Equal(t, int64(2), byCategory[content.CategoryDeal].Total)
	assert.Equal(t, 1, byCategory[content.CategoryDeal].Eligible)
	assert.Equal(t, 1, byCategory[content.CategoryNews].Eligible)
	assert.False(t, byCategory[content.CategoryDeal].Policy.Reusable)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.services.Metrics.PoolEligibleItems.WithLabelValues("deal")))
}
