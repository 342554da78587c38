// Package selection curates a themed bundle of enriched content items.
//
// A run is a linear fold over ordered stages. Every stage receives the
// running state (the bundle under construction and the ids already chosen)
// and returns it updated, so later stages see the choices of earlier ones.
// Selection never writes to the repository; recording usage is a separate
// call on UsageRecorder.
package selection

import (
	"context"
	"fmt"
	"time"

	"github.com/bytesize-travel/service-curation/internal/domain/bundle"
	"github.com/bytesize-travel/service-curation/internal/domain/content"
	"github.com/bytesize-travel/service-curation/internal/domain/location"
	"github.com/bytesize-travel/service-curation/internal/domain/policy"
	"github.com/bytesize-travel/service-curation/internal/domain/season"
	"go.uber.org/zap"
)

// Observer receives run events worth counting.
type Observer interface {
	AnchorFallbackUsed()
	SlotDegraded(slot bundle.SlotName, category content.Category)
}

type nopObserver struct{}

func (nopObserver) AnchorFallbackUsed()                            {}
func (nopObserver) SlotDegraded(bundle.SlotName, content.Category) {}

// Result is a selected bundle together with the diagnostics of its run.
type Result struct {
	Bundle      *bundle.Bundle
	Diagnostics Diagnostics
}

// Engine runs the selection pipeline against a content repository.
type Engine struct {
	repo     content.ContentRepository
	policies *policy.Table
	observer Observer
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver reports fallbacks and degraded slots to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// NewEngine creates a new Engine.
func NewEngine(repo content.ContentRepository, policies *policy.Table, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		repo:     repo,
		policies: policies,
		observer: nopObserver{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// runState is the accumulator threaded through the stages.
type runState struct {
	now      time.Time
	current  season.Label
	upcoming season.Label
	cfg      Config

	builder         *bundle.Builder
	anchorLocation  string
	dealLocations   []string
	focus           string
	includeSeasonal bool
	diagnostics     Diagnostics
}

// stage is one step of the pipeline. Anchor stages abort the run when they
// select nothing; the others leave their slot empty and continue.
type stage struct {
	name   string
	slot   bundle.SlotName
	anchor bool
	run    func(ctx context.Context, st runState) (runState, error)
}

// Select produces one bundle for now. Given the same repository snapshot,
// now and cfg, the result is identical across calls.
//
// Errors: *NoEligibleContentError when the anchor deal stage finds nothing;
// repository errors are returned unmodified.
func (e *Engine) Select(ctx context.Context, now time.Time, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid selection config: %w", err)
	}
	gate := cfg.Gate
	if gate == nil {
		gate = Never
	}

	now = now.UTC()
	current := season.Current(now)
	st := runState{
		now:      now,
		current:  current,
		upcoming: season.Upcoming(current),
		cfg:      cfg,
		builder:  bundle.NewBuilder(),
	}

	include, err := gate.IncludeSeasonal(ctx, now)
	if err != nil {
		return nil, err
	}
	st.includeSeasonal = include

	e.logger.Info("selection started",
		zap.Time("now", now),
		zap.String("season", string(st.current)),
		zap.String("upcoming_season", string(st.upcoming)),
		zap.Bool("include_seasonal", include),
	)

	for _, s := range e.stages() {
		e.logger.Debug("executing selection stage", zap.String("stage", s.name))
		st, err = s.run(ctx, st)
		if err != nil {
			e.logger.Error("selection stage failed",
				zap.String("stage", s.name),
				zap.Bool("anchor", s.anchor),
				zap.Error(err),
			)
			return nil, err
		}
	}

	var focus *string
	if st.focus != "" {
		f := st.focus
		focus = &f
	}
	b := st.builder.Build(bundle.Metadata{
		GeneratedAt:      now,
		CurrentSeason:    st.current,
		UpcomingSeason:   st.upcoming,
		DestinationFocus: focus,
		IncludeSeasonal:  include,
	})

	e.logger.Info("selection completed",
		zap.Int("selected", len(b.SelectedIDs())),
		zap.String("destination_focus", st.focus),
		zap.Int("degraded_slots", len(st.diagnostics.DegradedSlots)),
		zap.Bool("anchor_fallback", st.diagnostics.AnchorFallback),
	)

	return &Result{Bundle: b, Diagnostics: st.diagnostics}, nil
}

func (e *Engine) stages() []stage {
	return []stage{
		{name: "featured_deals", slot: bundle.SlotFeaturedDeals, anchor: true, run: e.selectFeaturedDeals},
		{name: "destination_guides", slot: bundle.SlotDestinationGuides, run: e.selectDestinationGuides},
		{name: "related_deals", slot: bundle.SlotRelatedDeals, run: e.selectRelatedDeals},
		{name: "related_guides", slot: bundle.SlotRelatedGuides, run: e.selectRelatedGuides},
		{name: "travel_news", slot: bundle.SlotTravelNews, run: e.selectNews},
		{name: "practical_tips", slot: bundle.SlotPracticalTips, run: e.selectTips},
		{name: "seasonal_experience", slot: bundle.SlotSeasonalExperience, run: e.selectSeasonalExperience},
	}
}

// query runs q with the eligibility predicate of every requested category
// and the ids chosen so far excluded.
func (e *Engine) query(ctx context.Context, st runState, q content.Query) ([]*content.ContentItem, error) {
	q.Usage = make(map[content.Category]content.UsageFilter, len(q.Categories))
	for _, c := range q.Categories {
		q.Usage[c] = e.policies.Eligibility(c, st.now)
	}
	q.ExcludeIDs = st.builder.Selected()
	return e.repo.Query(ctx, q)
}

func (e *Engine) selectFeaturedDeals(ctx context.Context, st runState) (runState, error) {
	now := st.now
	minScore := st.cfg.MinValueScore

	items, err := e.query(ctx, st, content.Query{
		Categories: []content.Category{content.CategoryDeal},
		Match: func(c *content.ContentItem) bool {
			return c.IsSelectableDeal() && c.Deal().HasFutureDeadline(now) && c.Deal().ValueScore >= minScore
		},
		Order: dealOrder(st.current, st.upcoming),
		Limit: st.cfg.FeaturedDeals,
	})
	if err != nil {
		return st, err
	}

	if len(items) == 0 && st.cfg.AnchorFallback == FallbackNearestDeadline {
		e.logger.Warn("no deal met the value score floor, relaxing to nearest deadline",
			zap.Int("min_value_score", minScore),
		)
		st.diagnostics.AnchorFallback = true
		e.observer.AnchorFallbackUsed()

		items, err = e.query(ctx, st, content.Query{
			Categories: []content.Category{content.CategoryDeal},
			Match: func(c *content.ContentItem) bool {
				return c.IsSelectableDeal() && c.Deal().HasFutureDeadline(now)
			},
			Order: byDeadlineAsc,
			Limit: st.cfg.FeaturedDeals,
		})
		if err != nil {
			return st, err
		}
	}

	if len(items) == 0 {
		return st, &NoEligibleContentError{Category: content.CategoryDeal}
	}

	st.builder.Add(bundle.SlotFeaturedDeals, items...)
	st.anchorLocation = location.Normalize(items[0].Destination())
	if !location.IsWorldwide(st.anchorLocation) {
		st.focus = st.anchorLocation
	}
	return st, nil
}

func (e *Engine) selectDestinationGuides(ctx context.Context, st runState) (runState, error) {
	slot := bundle.SlotDestinationGuides
	limit := min(st.cfg.DestinationGuides, st.cfg.GuideCap)
	if limit <= 0 {
		return e.skip(st, slot, "disabled"), nil
	}
	if location.IsWorldwide(st.anchorLocation) {
		return e.skip(st, slot, "featured deal has no specific destination"), nil
	}

	target := st.anchorLocation
	items, err := e.query(ctx, st, content.Query{
		Categories: []content.Category{content.CategoryGuide, content.CategoryExperience},
		Match:      func(c *content.ContentItem) bool { return location.Matches(c.Locations(), target) },
		Order:      guideOrder(st.current, st.upcoming),
		Limit:      limit,
	})
	if err != nil {
		return st, err
	}

	added := st.builder.Add(slot, items...)
	if len(added) == 0 {
		return e.degrade(st, slot, content.CategoryGuide, "no guide matches "+target), nil
	}
	return st, nil
}

func (e *Engine) selectRelatedDeals(ctx context.Context, st runState) (runState, error) {
	slot := bundle.SlotRelatedDeals
	if st.cfg.RelatedDeals <= 0 {
		return e.skip(st, slot, "disabled"), nil
	}

	now := st.now
	anchor := st.anchorLocation
	minScore := st.cfg.RelatedMinValueScore
	candidates, err := e.query(ctx, st, content.Query{
		Categories: []content.Category{content.CategoryDeal},
		Match: func(c *content.ContentItem) bool {
			return c.IsSelectableDeal() &&
				c.Deal().HasFutureDeadline(now) &&
				c.Deal().ValueScore >= minScore &&
				location.Normalize(c.Destination()) != anchor
		},
		Order: dealOrder(st.current, st.upcoming),
	})
	if err != nil {
		return st, err
	}

	// One deal per destination, in rank order.
	picked := make([]*content.ContentItem, 0, st.cfg.RelatedDeals)
	taken := map[string]struct{}{}
	for _, c := range candidates {
		if len(picked) == st.cfg.RelatedDeals {
			break
		}
		dest := location.Normalize(c.Destination())
		if _, dup := taken[dest]; dup {
			continue
		}
		taken[dest] = struct{}{}
		picked = append(picked, c)
	}

	added := st.builder.Add(slot, picked...)
	if len(added) == 0 {
		return e.degrade(st, slot, content.CategoryDeal, "no deal for another destination"), nil
	}

	for _, c := range added {
		dest := location.Normalize(c.Destination())
		if location.IsWorldwide(dest) {
			continue
		}
		if st.focus == "" {
			st.focus = dest
		}
		if dest != st.anchorLocation {
			st.dealLocations = append(st.dealLocations, dest)
		}
	}
	return st, nil
}

func (e *Engine) selectRelatedGuides(ctx context.Context, st runState) (runState, error) {
	slot := bundle.SlotRelatedGuides
	if st.cfg.RelatedGuidesPerLocation <= 0 || st.cfg.GuideCap <= 0 {
		return e.skip(st, slot, "disabled"), nil
	}
	if len(st.dealLocations) == 0 {
		return e.skip(st, slot, "no related deal destinations"), nil
	}
	if guidesSelected(st) >= st.cfg.GuideCap {
		return e.skip(st, slot, "guide cap reached"), nil
	}

	st.builder.Add(slot)
	found := 0
	for _, loc := range st.dealLocations {
		remaining := st.cfg.GuideCap - guidesSelected(st)
		if remaining <= 0 {
			break
		}

		target := loc
		items, err := e.query(ctx, st, content.Query{
			Categories: []content.Category{content.CategoryGuide, content.CategoryExperience},
			Match:      func(c *content.ContentItem) bool { return location.Matches(c.Locations(), target) },
			Order:      guideOrder(st.current, st.upcoming),
			Limit:      min(st.cfg.RelatedGuidesPerLocation, remaining),
		})
		if err != nil {
			return st, err
		}

		found += len(st.builder.Add(slot, items...))
	}

	if found == 0 {
		return e.degrade(st, slot, content.CategoryGuide, "no guide matches related deal destinations"), nil
	}
	return st, nil
}

// guidesSelected counts guides and experiences in both guide slots.
func guidesSelected(st runState) int {
	return st.builder.Count(bundle.SlotDestinationGuides) + st.builder.Count(bundle.SlotRelatedGuides)
}

func (e *Engine) selectNews(ctx context.Context, st runState) (runState, error) {
	return e.selectSimple(ctx, st, bundle.SlotTravelNews, content.CategoryNews, st.cfg.News, newsOrder())
}

func (e *Engine) selectTips(ctx context.Context, st runState) (runState, error) {
	return e.selectSimple(ctx, st, bundle.SlotPracticalTips, content.CategoryTip, st.cfg.Tips, tipOrder(st.current, st.upcoming))
}

func (e *Engine) selectSeasonalExperience(ctx context.Context, st runState) (runState, error) {
	if !st.includeSeasonal {
		return e.skip(st, bundle.SlotSeasonalExperience, "seasonal gate closed"), nil
	}
	return e.selectSimple(ctx, st, bundle.SlotSeasonalExperience, content.CategoryExperience,
		st.cfg.SeasonalExperiences, experienceOrder(st.current, st.upcoming))
}

// selectSimple fills a slot from a single category with no location logic.
func (e *Engine) selectSimple(ctx context.Context, st runState, slot bundle.SlotName, category content.Category, limit int, ord order) (runState, error) {
	if limit <= 0 {
		return e.skip(st, slot, "disabled"), nil
	}

	items, err := e.query(ctx, st, content.Query{
		Categories: []content.Category{category},
		Order:      ord,
		Limit:      limit,
	})
	if err != nil {
		return st, err
	}

	if added := st.builder.Add(slot, items...); len(added) == 0 {
		return e.degrade(st, slot, category, "no eligible "+string(category)), nil
	}
	return st, nil
}

func (e *Engine) degrade(st runState, slot bundle.SlotName, category content.Category, reason string) runState {
	e.logger.Warn("slot degraded",
		zap.String("slot", string(slot)),
		zap.String("category", string(category)),
		zap.String("reason", reason),
	)
	e.observer.SlotDegraded(slot, category)
	st.builder.Add(slot)
	st.diagnostics.DegradedSlots = append(st.diagnostics.DegradedSlots, DegradedSlot{
		Slot: slot, Category: category, Reason: reason,
	})
	return st
}

func (e *Engine) skip(st runState, slot bundle.SlotName, reason string) runState {
	e.logger.Debug("slot skipped", zap.String("slot", string(slot)), zap.String("reason", reason))
	st.builder.Add(slot)
	st.diagnostics.SkippedSlots = append(st.diagnostics.SkippedSlots, SkippedSlot{Slot: slot, Reason: reason})
	return st
}
