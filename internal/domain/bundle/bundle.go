// Package bundle defines the output of one selection run, which is the whole
// contract handed to the rendering collaborator.
package bundle

import (
	"encoding/json"
	"time"

	"github.com/bytesize-travel/service-curation/internal/domain/content"
	"github.com/bytesize-travel/service-curation/internal/domain/location"
	"github.com/bytesize-travel/service-curation/internal/domain/season"
	"github.com/google/uuid"
)

// SlotName identifies a named section of a bundle.
type SlotName string

const (
	SlotFeaturedDeals      SlotName = "featured_deals"
	SlotDestinationGuides  SlotName = "destination_guides"
	SlotRelatedDeals       SlotName = "related_deals"
	SlotRelatedGuides      SlotName = "related_guides"
	SlotTravelNews         SlotName = "travel_news"
	SlotPracticalTips      SlotName = "practical_tips"
	SlotSeasonalExperience SlotName = "seasonal_experience"
)

// Slot is a named, ordered list of selected items.
type Slot struct {
	name  SlotName
	items []*content.ContentItem
}

func (s Slot) Name() SlotName                { return s.name }
func (s Slot) Items() []*content.ContentItem { return append([]*content.ContentItem(nil), s.items...) }

// Metadata describes a selection run.
type Metadata struct {
	GeneratedAt      time.Time
	CurrentSeason    season.Label
	UpcomingSeason   season.Label
	DestinationFocus *string
	SelectedIDs      []uuid.UUID
	IncludeSeasonal  bool
}

// Bundle is the immutable, slot-organized result of a selection run.
type Bundle struct {
	slots    []Slot
	metadata Metadata
}

// Slots returns the slots in insertion order.
func (b *Bundle) Slots() []Slot { return append([]Slot(nil), b.slots...) }

// Slot returns the items of the named slot, or nil when absent.
func (b *Bundle) Slot(name SlotName) []*content.ContentItem {
	for _, s := range b.slots {
		if s.name == name {
			return s.Items()
		}
	}
	return nil
}

// Metadata returns a copy of the run metadata.
func (b *Bundle) Metadata() Metadata {
	m := b.metadata
	m.SelectedIDs = append([]uuid.UUID(nil), b.metadata.SelectedIDs...)
	if b.metadata.DestinationFocus != nil {
		f := *b.metadata.DestinationFocus
		m.DestinationFocus = &f
	}
	return m
}

// SelectedIDs returns every chosen item id in selection order.
func (b *Bundle) SelectedIDs() []uuid.UUID {
	return append([]uuid.UUID(nil), b.metadata.SelectedIDs...)
}

// Builder accumulates slots during a run. It is not safe for concurrent use.
type Builder struct {
	slots    []Slot
	selected []uuid.UUID
	seen     map[uuid.UUID]struct{}
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{seen: make(map[uuid.UUID]struct{})}
}

// Add appends items to the named slot, creating it on first use, and records
// their ids. Items already present in the bundle are skipped. It returns the
// items actually added.
func (b *Builder) Add(name SlotName, items ...*content.ContentItem) []*content.ContentItem {
	idx := -1
	for i, s := range b.slots {
		if s.name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.slots = append(b.slots, Slot{name: name})
		idx = len(b.slots) - 1
	}

	added := make([]*content.ContentItem, 0, len(items))
	for _, it := range items {
		if _, dup := b.seen[it.ID()]; dup {
			continue
		}
		b.seen[it.ID()] = struct{}{}
		b.selected = append(b.selected, it.ID())
		b.slots[idx].items = append(b.slots[idx].items, it)
		added = append(added, it)
	}
	return added
}

// Selected returns the ids chosen so far, in selection order.
func (b *Builder) Selected() []uuid.UUID {
	return append([]uuid.UUID(nil), b.selected...)
}

// Count returns how many items the named slot holds.
func (b *Builder) Count(name SlotName) int {
	for _, s := range b.slots {
		if s.name == name {
			return len(s.items)
		}
	}
	return 0
}

// Build freezes the builder into a Bundle. SelectedIDs in meta is replaced
// by the builder's own selection order.
func (b *Builder) Build(meta Metadata) *Bundle {
	slots := make([]Slot, len(b.slots))
	for i, s := range b.slots {
		slots[i] = Slot{name: s.name, items: append([]*content.ContentItem(nil), s.items...)}
	}
	meta.SelectedIDs = b.Selected()
	return &Bundle{slots: slots, metadata: meta}
}

// ItemView is the wire form of a selected item.
type ItemView struct {
	ID          uuid.UUID               `json:"id"`
	Category    content.Category        `json:"category"`
	Title       string                  `json:"title"`
	SourceURL   string                  `json:"source_url,omitempty"`
	Body        string                  `json:"body,omitempty"`
	Deal        *content.DealAttributes `json:"deal,omitempty"`
	Locations   location.Set            `json:"locations"`
	Audience    []string                `json:"audience,omitempty"`
	KeyThemes   []string                `json:"key_themes,omitempty"`
	Seasonality []string                `json:"seasonality"`
	ProcessedAt time.Time               `json:"processed_at"`
}

// NewItemView converts an item to its wire form.
func NewItemView(c *content.ContentItem) ItemView {
	return ItemView{
		ID: c.ID(), Category: c.Category(), Title: c.Title(), SourceURL: c.SourceURL(),
		Body: c.Body(), Deal: c.Deal(), Locations: c.Locations(),
		Audience: c.Audience(), KeyThemes: c.KeyThemes(), Seasonality: c.Seasonality(),
		ProcessedAt: c.ProcessedAt(),
	}
}

type slotJSON struct {
	Name  SlotName   `json:"name"`
	Items []ItemView `json:"items"`
}

type metadataJSON struct {
	GeneratedAt      time.Time    `json:"generated_at"`
	CurrentSeason    season.Label `json:"current_season"`
	UpcomingSeason   season.Label `json:"upcoming_season"`
	DestinationFocus *string      `json:"destination_focus"`
	SelectedIDs      []uuid.UUID  `json:"selected_ids"`
	IncludeSeasonal  bool         `json:"include_seasonal"`
}

// MarshalJSON renders slots in order followed by the metadata.
func (b *Bundle) MarshalJSON() ([]byte, error) {
	out := struct {
		Slots    []slotJSON   `json:"slots"`
		Metadata metadataJSON `json:"metadata"`
	}{
		Slots: make([]slotJSON, 0, len(b.slots)),
		Metadata: metadataJSON{
			GeneratedAt:      b.metadata.GeneratedAt,
			CurrentSeason:    b.metadata.CurrentSeason,
			UpcomingSeason:   b.metadata.UpcomingSeason,
			DestinationFocus: b.metadata.DestinationFocus,
			SelectedIDs:      b.SelectedIDs(),
			IncludeSeasonal:  b.metadata.IncludeSeasonal,
		},
	}
	for _, s := range b.slots {
		views := make([]ItemView, 0, len(s.items))
		for _, it := range s.items {
			views = append(views, NewItemView(it))
		}
		out.Slots = append(out.Slots, slotJSON{Name: s.name, Items: views})
	}
	return json.Marshal(out)
}
