package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytesize-travel/service-curation/internal/contracts"
	"github.com/bytesize-travel/service-curation/internal/domain/bundle"
	"github.com/bytesize-travel/service-curation/internal/domain/content"
	"github.com/bytesize-travel/service-curation/internal/domain/location"
	"github.com/bytesize-travel/service-curation/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContentDTO is the API response DTO for a stored content item.
type ContentDTO struct {
	bundle.ItemView
	UsageCount int        `json:"usage_count"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// IngestFailure describes one rejected record of a batch.
type IngestFailure struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Error string `json:"error"`
}

// IngestReport summarizes a batch import.
type IngestReport struct {
	Imported []uuid.UUID     `json:"imported"`
	Failed   []IngestFailure `json:"failed,omitempty"`
}

// ContentService validates enrichment output and stores it.
type ContentService struct {
	repo    content.ContentRepository
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewContentService creates a new ContentService.
func NewContentService(repo content.ContentRepository, m *metrics.Metrics, logger *zap.Logger) *ContentService {
	return &ContentService{repo: repo, metrics: m, logger: logger}
}

// Ingest validates one enriched record and upserts it. Re-ingesting a known
// id replaces its content but keeps its usage history.
func (s *ContentService) Ingest(ctx context.Context, rec contracts.EnrichedContent) (*ContentDTO, error) {
	item, err := s.build(rec)
	if err != nil {
		s.metrics.ContentIngested.WithLabelValues(categoryLabel(rec.Categories), "rejected").Inc()
		s.logger.Warn("content rejected", zap.String("title", rec.Title), zap.Error(err))
		return nil, err
	}

	if err := s.repo.Save(ctx, item); err != nil {
		s.logger.Error("failed to save content", zap.String("content_id", item.ID().String()), zap.Error(err))
		return nil, err
	}

	s.metrics.ContentIngested.WithLabelValues(string(item.Category()), "accepted").Inc()
	s.logger.Debug("content ingested",
		zap.String("content_id", item.ID().String()),
		zap.String("category", string(item.Category())),
	)
	dto := toContentDTO(item)
	return &dto, nil
}

func (s *ContentService) build(rec contracts.EnrichedContent) (*content.ContentItem, error) {
	draft, err := toDraft(rec)
	if err != nil {
		return nil, err
	}
	return content.NewContentItem(draft)
}

// IngestBatch ingests every record, collecting failures instead of stopping.
// Storage failures abort the batch.
func (s *ContentService) IngestBatch(ctx context.Context, recs []contracts.EnrichedContent) (*IngestReport, error) {
	report := &IngestReport{Imported: make([]uuid.UUID, 0, len(recs))}
	for i, rec := range recs {
		dto, err := s.Ingest(ctx, rec)
		if err != nil {
			if isUnavailable(err) {
				return report, err
			}
			report.Failed = append(report.Failed, IngestFailure{Index: i, Title: rec.Title, Error: err.Error()})
			continue
		}
		report.Imported = append(report.Imported, dto.ID)
	}
	s.logger.Info("batch ingested",
		zap.Int("imported", len(report.Imported)),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}

// ListContent returns a page of stored items (admin).
func (s *ContentService) ListContent(ctx context.Context, page, limit int) ([]ContentDTO, int64, error) {
	items, total, err := s.repo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	dtos := make([]ContentDTO, len(items))
	for i, it := range items {
		dtos[i] = toContentDTO(it)
	}
	return dtos, total, nil
}

func toDraft(rec contracts.EnrichedContent) (content.Draft, error) {
	d := content.Draft{
		Categories:  rec.Categories,
		Title:       rec.Title,
		SourceURL:   rec.SourceURL,
		Body:        rec.Body,
		Locations:   location.Set{Primary: rec.Locations.Primary, Secondary: rec.Locations.Secondary},
		Audience:    rec.Audience,
		KeyThemes:   rec.KeyThemes,
		Seasonality: rec.Seasonality,
	}
	if rec.ID != nil {
		d.ID = *rec.ID
	}
	if rec.ProcessedAt != nil {
		d.ProcessedAt = *rec.ProcessedAt
	}
	if strings.TrimSpace(rec.Title) == "" {
		return d, fmt.Errorf("%w: title is required", content.ErrInvalidContent)
	}

	if rec.Deal != nil {
		deal, err := toDealAttributes(*rec.Deal)
		if err != nil {
			return d, err
		}
		d.Deal = deal
	}
	return d, nil
}

func toDealAttributes(in contracts.EnrichedDeal) (*content.DealAttributes, error) {
	if in.ValueScore == nil {
		return nil, fmt.Errorf("%w: deal value score is required", content.ErrInvalidContent)
	}
	deadline, err := parseDate(in.BookingDeadline)
	if err != nil {
		return nil, fmt.Errorf("%w: booking deadline: %v", content.ErrInvalidContent, err)
	}

	out := &content.DealAttributes{
		Type:            strings.ToLower(strings.TrimSpace(in.Type)),
		PriceTier:       strings.ToLower(strings.TrimSpace(in.PriceTier)),
		ValueScore:      *in.ValueScore,
		BookingDeadline: deadline,
		Origin:          in.Origin,
		Destination:     in.Destination,
	}
	if in.TravelStart != "" || in.TravelEnd != "" {
		start, err := parseDate(in.TravelStart)
		if err != nil {
			return nil, fmt.Errorf("%w: travel start: %v", content.ErrInvalidContent, err)
		}
		end, err := parseDate(in.TravelEnd)
		if err != nil {
			return nil, fmt.Errorf("%w: travel end: %v", content.ErrInvalidContent, err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("%w: travel window ends before it starts", content.ErrInvalidContent)
		}
		out.TravelWindow = &content.TravelWindow{Start: start, End: end}
	}
	return out, nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339 and returns UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("date is required")
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}
	return t.UTC(), nil
}

func toContentDTO(it *content.ContentItem) ContentDTO {
	return ContentDTO{
		ItemView:   bundle.NewItemView(it),
		UsageCount: it.UsageCount(),
		LastUsedAt: it.LastUsedAt(),
	}
}

func categoryLabel(values []string) string {
	if c, err := content.PrimaryCategory(values); err == nil {
		return string(c)
	}
	return "unknown"
}

func isUnavailable(err error) bool {
	return errors.Is(err, content.ErrRepositoryUnavailable)
}
