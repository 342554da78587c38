package selection

import (
	"testing"
	"time"

	"github.com/bytesize-travel/service-curation/internal/domain/bundle"
	"github.com/bytesize-travel/service-curation/internal/domain/content"
	"github.com/bytesize-travel/service-curation/internal/domain/location"
	"github.com/bytesize-travel/service-curation/internal/domain/policy"
	"github.com/bytesize-travel/service-curation/internal/repository/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// july is a summer instant; the upcoming season is autumn.
var july = time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC)

type dealFixture struct {
	title       string
	destination string
	score       int
	days        int
	seasonality []string
}

func newDeal(t *testing.T, d dealFixture) *content.ContentItem {
	t.Helper()
	days := d.days
	if days == 0 {
		days = 10
	}
	it, err := content.NewContentItem(content.Draft{
		Categories:  []string{"deal"},
		Title:       d.title,
		Deal:        &content.DealAttributes{ValueScore: d.score, BookingDeadline: july.AddDate(0, 0, days), Destination: d.destination},
		Locations:   location.Set{Primary: d.destination},
		Seasonality: d.seasonality,
		ProcessedAt: july.Add(-time.Hour),
	})
	require.NoError(t, err)
	return it
}

func newItem(t *testing.T, cat content.Category, title, primary string, secondary ...string) *content.ContentItem {
	t.Helper()
	it, err := content.NewContentItem(content.Draft{
		Categories:  []string{string(cat)},
		Title:       title,
		Locations:   location.Set{Primary: primary, Secondary: secondary},
		ProcessedAt: july.Add(-time.Hour),
	})
	require.NoError(t, err)
	return it
}

// withUsage returns a copy of it that was last used at and count times.
func withUsage(it *content.ContentItem, at time.Time, count int) *content.ContentItem {
	s := it.Snapshot()
	s.LastUsedAt = &at
	s.UsageCount = count
	return content.Reconstruct(s)
}

// withProcessed returns a copy of it processed at.
func withProcessed(it *content.ContentItem, at time.Time) *content.ContentItem {
	s := it.Snapshot()
	s.ProcessedAt = at
	return content.Reconstruct(s)
}

func newTestEngine(items ...*content.ContentItem) (*Engine, *memory.ContentRepository, *countingObserver) {
	repo := memory.NewContentRepository(items...)
	obs := &countingObserver{}
	return NewEngine(repo, policy.NewTable(nil), zap.NewNop(), WithObserver(obs)), repo, obs
}

type countingObserver struct {
	fallbacks int
	degraded  []string
}

func (o *countingObserver) AnchorFallbackUsed() { o.fallbacks++ }

func (o *countingObserver) SlotDegraded(slot bundle.SlotName, category content.Category) {
	o.degraded = append(o.degraded, string(slot)+"/"+string(category))
}
