package content

import (
	"fmt"
	"strings"
	"time"

	"github.com/bytesize-travel/service-curation/internal/domain/location"
	"github.com/bytesize-travel/service-curation/internal/domain/season"
	"github.com/google/uuid"
)

// Category is the fixed classification of a content item.
type Category string

const (
	CategoryDeal       Category = "deal"
	CategoryGuide      Category = "guide"
	CategoryTip        Category = "tip"
	CategoryNews       Category = "news"
	CategoryExperience Category = "experience"
)

// Categories lists every known category in a stable order.
func Categories() []Category {
	return []Category{CategoryDeal, CategoryGuide, CategoryTip, CategoryNews, CategoryExperience}
}

// IsKnown reports whether c is one of the fixed categories.
func (c Category) IsKnown() bool {
	for _, k := range Categories() {
		if c == k {
			return true
		}
	}
	return false
}

// PrimaryCategory returns the first non-empty classification. Enrichment may
// tag several categories; only the first one is ever used.
func PrimaryCategory(values []string) (Category, error) {
	for _, v := range values {
		c := Category(strings.ToLower(strings.TrimSpace(v)))
		if c == "" {
			continue
		}
		if !c.IsKnown() {
			return "", fmt.Errorf("%w: unknown category %q", ErrInvalidContent, v)
		}
		return c, nil
	}
	return "", fmt.Errorf("%w: category is required", ErrInvalidContent)
}

// TravelWindow is the period a deal can be travelled in.
type TravelWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DealAttributes is the structured payload carried only by deals.
type DealAttributes struct {
	Type            string        `json:"type,omitempty"`
	PriceTier       string        `json:"price_tier,omitempty"`
	ValueScore      int           `json:"value_score"`
	BookingDeadline time.Time     `json:"booking_deadline"`
	TravelWindow    *TravelWindow `json:"travel_window,omitempty"`
	Origin          string        `json:"origin,omitempty"`
	Destination     string        `json:"destination,omitempty"`
}

// HasFutureDeadline reports whether the booking deadline falls on a calendar
// day (UTC) strictly after now's.
func (d DealAttributes) HasFutureDeadline(now time.Time) bool {
	return dayOf(d.BookingDeadline).After(dayOf(now))
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ContentItem is the aggregate root for an enriched, selectable unit of content.
type ContentItem struct {
	id          uuid.UUID
	category    Category
	title       string
	sourceURL   string
	body        string
	deal        *DealAttributes
	locations   location.Set
	audience    []string
	keyThemes   []string
	seasonality []string
	processedAt time.Time
	usageCount  int
	lastUsedAt  *time.Time
}

// Draft carries the enrichment output for a new content item.
type Draft struct {
	ID          uuid.UUID
	Categories  []string
	Title       string
	SourceURL   string
	Body        string
	Deal        *DealAttributes
	Locations   location.Set
	Audience    []string
	KeyThemes   []string
	Seasonality []string
	ProcessedAt time.Time
}

// NewContentItem validates an enrichment draft and builds a never-used item.
// Locations and seasonality labels are normalized here so the selection
// engine can rely on well-formed records.
func NewContentItem(d Draft) (*ContentItem, error) {
	category, err := PrimaryCategory(d.Categories)
	if err != nil {
		return nil, err
	}

	var deal *DealAttributes
	if category == CategoryDeal {
		if d.Deal == nil {
			return nil, fmt.Errorf("%w: deal attributes are required for deals", ErrInvalidContent)
		}
		if d.Deal.ValueScore < 0 || d.Deal.ValueScore > 10 {
			return nil, fmt.Errorf("%w: value score %d outside 0-10", ErrInvalidContent, d.Deal.ValueScore)
		}
		if d.Deal.BookingDeadline.IsZero() {
			return nil, fmt.Errorf("%w: booking deadline is required for deals", ErrInvalidContent)
		}
		cp := *d.Deal
		cp.Destination = location.Normalize(cp.Destination)
		cp.Origin = location.Normalize(cp.Origin)
		deal = &cp
	}

	id := d.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	processedAt := d.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}

	return &ContentItem{
		id:          id,
		category:    category,
		title:       strings.TrimSpace(d.Title),
		sourceURL:   strings.TrimSpace(d.SourceURL),
		body:        d.Body,
		deal:        deal,
		locations:   location.NormalizeSet(d.Locations),
		audience:    lowerAll(d.Audience),
		keyThemes:   lowerAll(d.KeyThemes),
		seasonality: season.NormalizeLabels(d.Seasonality),
		processedAt: processedAt.UTC(),
	}, nil
}

// Snapshot is the flat persistence view of a ContentItem.
type Snapshot struct {
	ID          uuid.UUID
	Category    Category
	Title       string
	SourceURL   string
	Body        string
	Deal        *DealAttributes
	Locations   location.Set
	Audience    []string
	KeyThemes   []string
	Seasonality []string
	ProcessedAt time.Time
	UsageCount  int
	LastUsedAt  *time.Time
}

// Reconstruct rebuilds a ContentItem from persistence without re-validating.
// The item does not share memory with s.
func Reconstruct(s Snapshot) *ContentItem {
	return (&ContentItem{
		id: s.ID, category: s.Category, title: s.Title, sourceURL: s.SourceURL,
		body: s.Body, deal: s.Deal, locations: s.Locations,
		audience: s.Audience, keyThemes: s.KeyThemes, seasonality: s.Seasonality,
		processedAt: s.ProcessedAt, usageCount: s.UsageCount, lastUsedAt: s.LastUsedAt,
	}).Clone()
}

// Snapshot returns a detached, flat persistence view of the item.
func (c *ContentItem) Snapshot() Snapshot {
	c = c.Clone()
	return Snapshot{
		ID: c.id, Category: c.category, Title: c.title, SourceURL: c.sourceURL,
		Body: c.body, Deal: c.deal, Locations: c.locations,
		Audience: c.audience, KeyThemes: c.keyThemes, Seasonality: c.seasonality,
		ProcessedAt: c.processedAt, UsageCount: c.usageCount, LastUsedAt: c.lastUsedAt,
	}
}

// Clone returns a deep copy.
func (c *ContentItem) Clone() *ContentItem {
	cp := *c
	cp.deal = c.deal.clone()
	if c.lastUsedAt != nil {
		t := *c.lastUsedAt
		cp.lastUsedAt = &t
	}
	cp.locations.Secondary = append([]string(nil), c.locations.Secondary...)
	cp.audience = append([]string(nil), c.audience...)
	cp.keyThemes = append([]string(nil), c.keyThemes...)
	cp.seasonality = append([]string(nil), c.seasonality...)
	return &cp
}

// clone copies d, including its travel window. A nil d stays nil.
func (d *DealAttributes) clone() *DealAttributes {
	if d == nil {
		return nil
	}
	cp := *d
	if d.TravelWindow != nil {
		w := *d.TravelWindow
		cp.TravelWindow = &w
	}
	return &cp
}

// RecordUse increments the usage counter and stamps the last-used time.
func (c *ContentItem) RecordUse(at time.Time) {
	t := at.UTC()
	c.usageCount++
	c.lastUsedAt = &t
}

// IsSelectableDeal reports whether the item is a deal carrying the attributes
// a deal slot needs.
func (c *ContentItem) IsSelectableDeal() bool {
	return c.category == CategoryDeal && c.deal != nil
}

// Destination is the location a deal points at: the explicit deal
// destination when present, otherwise the primary location.
func (c *ContentItem) Destination() string {
	if c.deal != nil && c.deal.Destination != "" {
		return c.deal.Destination
	}
	return c.locations.Primary
}

// Getters.
func (c *ContentItem) ID() uuid.UUID           { return c.id }
func (c *ContentItem) Category() Category      { return c.category }
func (c *ContentItem) Title() string           { return c.title }
func (c *ContentItem) SourceURL() string       { return c.sourceURL }
func (c *ContentItem) Body() string            { return c.body }
func (c *ContentItem) Deal() *DealAttributes   { return c.deal.clone() }
func (c *ContentItem) Locations() location.Set { return c.locations }
func (c *ContentItem) Audience() []string      { return c.audience }
func (c *ContentItem) KeyThemes() []string     { return c.keyThemes }
func (c *ContentItem) Seasonality() []string   { return c.seasonality }
func (c *ContentItem) ProcessedAt() time.Time  { return c.processedAt }
func (c *ContentItem) UsageCount() int         { return c.usageCount }
func (c *ContentItem) LastUsedAt() *time.Time  { return c.lastUsedAt }

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
