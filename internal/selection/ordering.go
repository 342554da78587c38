package selection

import (
	"cmp"

	"github.com/bytesize-travel/service-curation/internal/domain/content"
	"github.com/bytesize-travel/service-curation/internal/domain/location"
	"github.com/bytesize-travel/service-curation/internal/domain/season"
)

// order is a comparator over content items; negative sorts a first.
type order func(a, b *content.ContentItem) int

// then chains comparators, consulting the next one only on ties.
func then(keys ...order) order {
	return func(a, b *content.ContentItem) int {
		for _, k := range keys {
			if c := k(a, b); c != 0 {
				return c
			}
		}
		return 0
	}
}

func bySeasonalRankDesc(current, upcoming season.Label) order {
	return func(a, b *content.ContentItem) int {
		return cmp.Compare(
			season.Rank(b.Seasonality(), current, upcoming),
			season.Rank(a.Seasonality(), current, upcoming),
		)
	}
}

func byValueScoreDesc(a, b *content.ContentItem) int {
	return cmp.Compare(b.Deal().ValueScore, a.Deal().ValueScore)
}

// byDeadlineAsc puts the most urgent deal first.
func byDeadlineAsc(a, b *content.ContentItem) int {
	return a.Deal().BookingDeadline.Compare(b.Deal().BookingDeadline)
}

func byProcessedDesc(a, b *content.ContentItem) int {
	return b.ProcessedAt().Compare(a.ProcessedAt())
}

// byLeastRecentlyUsed puts never-used items first, then the oldest last use.
func byLeastRecentlyUsed(a, b *content.ContentItem) int {
	la, lb := a.LastUsedAt(), b.LastUsedAt()
	switch {
	case la == nil && lb == nil:
		return 0
	case la == nil:
		return -1
	case lb == nil:
		return 1
	}
	return la.Compare(*lb)
}

func byGuideBeforeExperience(a, b *content.ContentItem) int {
	return cmp.Compare(guideWeight(a), guideWeight(b))
}

func guideWeight(c *content.ContentItem) int {
	if c.Category() == content.CategoryGuide {
		return 0
	}
	return 1
}

func byWorldwideFirst(a, b *content.ContentItem) int {
	return cmp.Compare(worldwideWeight(a), worldwideWeight(b))
}

func worldwideWeight(c *content.ContentItem) int {
	if location.IsWorldwide(c.Locations().Primary) {
		return 0
	}
	return 1
}

// dealOrder ranks deals by seasonal fit, value and urgency.
func dealOrder(current, upcoming season.Label) order {
	return then(bySeasonalRankDesc(current, upcoming), byValueScoreDesc, byDeadlineAsc, byProcessedDesc)
}

// guideOrder ranks guides and experiences for a destination.
func guideOrder(current, upcoming season.Label) order {
	return then(bySeasonalRankDesc(current, upcoming), byGuideBeforeExperience, byLeastRecentlyUsed, byProcessedDesc)
}

func newsOrder() order {
	return byProcessedDesc
}

// tipOrder prefers universally applicable tips.
func tipOrder(current, upcoming season.Label) order {
	return then(byWorldwideFirst, bySeasonalRankDesc(current, upcoming), byLeastRecentlyUsed, byProcessedDesc)
}

func experienceOrder(current, upcoming season.Label) order {
	return then(bySeasonalRankDesc(current, upcoming), byLeastRecentlyUsed, byProcessedDesc)
}
