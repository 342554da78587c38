// Package contracts defines the topics, event types and payloads exchanged
// with the enrichment and rendering services.
package contracts

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicContentEvents  = "content.events"
	TopicCurationEvents = "curation.events"
)

// Event types.
const (
	ContentEnriched   = "content.enriched"
	BundleSelected    = "curation.bundle.selected"
	UsageRecorded     = "curation.usage.recorded"
	PublicationFailed = "curation.publication.failed"
)

// ServiceName is the CloudEvent source of everything this service emits.
const ServiceName = "service-curation"

// EnrichedContent is one record produced by the enrichment step. It is the
// payload of ContentEnriched events, the body of the ingest endpoint and the
// element type of import fixtures.
type EnrichedContent struct {
	ID          *uuid.UUID       `json:"id,omitempty" yaml:"id,omitempty"`
	Categories  []string         `json:"categories" yaml:"categories"`
	Title       string           `json:"title" yaml:"title"`
	SourceURL   string           `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	Body        string           `json:"body,omitempty" yaml:"body,omitempty"`
	Deal        *EnrichedDeal    `json:"deal,omitempty" yaml:"deal,omitempty"`
	Locations   EnrichedLocation `json:"locations" yaml:"locations"`
	Audience    []string         `json:"audience,omitempty" yaml:"audience,omitempty"`
	KeyThemes   []string         `json:"key_themes,omitempty" yaml:"key_themes,omitempty"`
	Seasonality []string         `json:"seasonality,omitempty" yaml:"seasonality,omitempty"`
	ProcessedAt *time.Time       `json:"processed_at,omitempty" yaml:"processed_at,omitempty"`
}

// EnrichedDeal carries deal attributes. Dates are YYYY-MM-DD or RFC 3339.
type EnrichedDeal struct {
	Type            string `json:"type,omitempty" yaml:"type,omitempty"`
	PriceTier       string `json:"price_tier,omitempty" yaml:"price_tier,omitempty"`
	ValueScore      *int   `json:"value_score" yaml:"value_score"`
	BookingDeadline string `json:"booking_deadline" yaml:"booking_deadline"`
	TravelStart     string `json:"travel_start,omitempty" yaml:"travel_start,omitempty"`
	TravelEnd       string `json:"travel_end,omitempty" yaml:"travel_end,omitempty"`
	Origin          string `json:"origin,omitempty" yaml:"origin,omitempty"`
	Destination     string `json:"destination,omitempty" yaml:"destination,omitempty"`
}

// EnrichedLocation is the primary/secondary location pair.
type EnrichedLocation struct {
	Primary   string   `json:"primary" yaml:"primary"`
	Secondary []string `json:"secondary,omitempty" yaml:"secondary,omitempty"`
}

// BundleSelectedEvent announces a published bundle to the rendering service.
type BundleSelectedEvent struct {
	RunID            uuid.UUID       `json:"run_id"`
	Cadence          string          `json:"cadence"`
	Bundle           json.RawMessage `json:"bundle"`
	DestinationFocus string          `json:"destination_focus,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
}

// UsageRecordedEvent reports items marked as used.
type UsageRecordedEvent struct {
	RunID      *uuid.UUID  `json:"run_id,omitempty"`
	ContentIDs []uuid.UUID `json:"content_ids"`
	UsedAt     time.Time   `json:"used_at"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// PublicationFailedEvent reports a publication that did not complete.
type PublicationFailedEvent struct {
	RunID      *uuid.UUID `json:"run_id,omitempty"`
	Cadence    string     `json:"cadence"`
	Reason     string     `json:"reason"`
	OccurredAt time.Time  `json:"occurred_at"`
}
