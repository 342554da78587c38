package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bytesize-travel/service-curation/internal/application"
	"github.com/bytesize-travel/service-curation/internal/contracts"
	"github.com/bytesize-travel/service-curation/internal/domain/content"
	"github.com/bytesize-travel/service-curation/internal/metrics"
	"github.com/bytesize-travel/service-curation/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newContentService(repo content.ContentRepository) *application.ContentService {
	return application.NewContentService(repo, metrics.NewMetrics(nil), zap.NewNop())
}

func TestIngest_Deal(t *testing.T) {
	repo := memory.NewContentRepository()
	svc := newContentService(repo)

	id := uuid.New()
	processed := time.Date(2025, 6, 30, 8, 0, 0, 0, time.UTC)
	rec := dealRecord("Lisbon", "Lisbon", 8, time.Date(2025, 7, 20, 0, 0, 0, 0, time.UTC))
	rec.ID = &id
	rec.ProcessedAt = &processed
	rec.Deal.TravelStart = "2025-09-01"
	rec.Deal.TravelEnd = "2025-09-10T00:00:00Z"
	rec.Deal.Type = " Flight "

	dto, err := svc.Ingest(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, id, dto.ID)
	assert.Equal(t, content.CategoryDeal, dto.Category)
	require.NotNil(t, dto.Deal)
	assert.Equal(t, "flight", dto.Deal.Type)
	assert.Equal(t, "lisbon", dto.Deal.Destination)
	require.NotNil(t, dto.Deal.TravelWindow)
	assert.Equal(t, 9, dto.Deal.TravelWindow.End.Day()-dto.Deal.TravelWindow.Start.Day())

	stored, err := repo.FindByIDs(context.Background(), []uuid.UUID{id})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].ProcessedAt().Equal(processed))
}

func TestIngest_Rejections(t *testing.T) {
	deadline := time.Date(2025, 7, 20, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		rec  func() contracts.EnrichedContent
	}{
		{"missing title", func() contracts.EnrichedContent {
			return contracts.EnrichedContent{Categories: []string{"tip"}}
		}},
		{"unknown category", func() contracts.EnrichedContent {
			return contracts.EnrichedContent{Categories: []string{"podcast"}, Title: "x"}
		}},
		{"deal without score", func() contracts.EnrichedContent {
			r := dealRecord("x", "japan", 5, deadline)
			r.Deal.ValueScore = nil
			return r
		}},
		{"deal with bad deadline", func() contracts.EnrichedContent {
			r := dealRecord("x", "japan", 5, deadline)
			r.Deal.BookingDeadline = "next week"
			return r
		}},
		{"inverted travel window", func() contracts.EnrichedContent {
			r := dealRecord("x", "japan", 5, deadline)
			r.Deal.TravelStart = "2025-09-10"
			r.Deal.TravelEnd = "2025-09-01"
			return r
		}},
		{"deal category without deal payload", func() contracts.EnrichedContent {
			return contracts.EnrichedContent{Categories: []string{"deal"}, Title: "x"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newContentService(memory.NewContentRepository()).Ingest(context.Background(), tt.rec())
			assert.ErrorIs(t, err, content.ErrInvalidContent)
		})
	}
}

func TestIngestBatch_CollectsFailures(t *testing.T) {
	svc := newContentService(memory.NewContentRepository())

	report, err := svc.IngestBatch(context.Background(), []contracts.EnrichedContent{
		{Categories: []string{"tip"}, Title: "good"},
		{Categories: []string{"tip"}},
		{Categories: []string{"news"}, Title: "also good"},
	})
	require.NoError(t, err)
	assert.Len(t, report.Imported, 2)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 1, report.Failed[0].Index)
}

type unavailableRepo struct {
	content.ContentRepository
}

func (unavailableRepo) Save(context.Context, *content.ContentItem) error {
	return errors.Join(content.ErrRepositoryUnavailable, errors.New("connection reset"))
}

func TestIngestBatch_AbortsWhenStorageIsDown(t *testing.T) {
	svc := newContentService(unavailableRepo{})

	report, err := svc.IngestBatch(context.Background(), []contracts.EnrichedContent{
		{Categories: []string{"tip"}, Title: "a"},
		{Categories: []string{"tip"}, Title: "b"},
	})
	assert.ErrorIs(t, err, content.ErrRepositoryUnavailable)
	assert.Empty(t, report.Imported)
	assert.Empty(t, report.Failed)
}

func TestListContent(t *testing.T) {
	repo := memory.NewContentRepository()
	svc := newContentService(repo)
	for _, title := range []string{"a", "b", "c"} {
		_, err := svc.Ingest(context.Background(), contracts.EnrichedContent{Categories: []string{"news"}, Title: title})
		require.NoError(t, err)
	}

	page, total, err := svc.ListContent(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 2)
}
