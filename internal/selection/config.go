package selection

import (
	"fmt"
)

// FallbackMode selects how the anchor deal query is relaxed when the primary
// filter yields nothing.
type FallbackMode string

const (
	// FallbackNearestDeadline drops the value-score floor and orders by the
	// nearest booking deadline only.
	FallbackNearestDeadline FallbackMode = "nearest_deadline"
	// FallbackNone disables relaxation.
	FallbackNone FallbackMode = "none"
)

// Config holds the capacities and policies of one selection run. A capacity
// of zero disables its stage.
type Config struct {
	FeaturedDeals            int          `mapstructure:"featured_deals"`
	MinValueScore            int          `mapstructure:"min_value_score"`
	AnchorFallback           FallbackMode `mapstructure:"anchor_fallback"`
	DestinationGuides        int          `mapstructure:"destination_guides"`
	RelatedDeals             int          `mapstructure:"related_deals"`
	RelatedMinValueScore     int          `mapstructure:"related_min_value_score"`
	RelatedGuidesPerLocation int          `mapstructure:"related_guides_per_location"`
	GuideCap                 int          `mapstructure:"guide_cap"`
	News                     int          `mapstructure:"news"`
	Tips                     int          `mapstructure:"tips"`
	SeasonalExperiences      int          `mapstructure:"seasonal_experiences"`

	// Gate decides whether the seasonal experience slot is included.
	// Nil means never.
	Gate SeasonalGate `mapstructure:"-"`
}

// DefaultConfig mirrors the weekly newsletter layout.
func DefaultConfig() Config {
	return Config{
		FeaturedDeals:            1,
		MinValueScore:            8,
		AnchorFallback:           FallbackNearestDeadline,
		DestinationGuides:        2,
		RelatedDeals:             2,
		RelatedMinValueScore:     0,
		RelatedGuidesPerLocation: 1,
		GuideCap:                 3,
		News:                     3,
		Tips:                     2,
		SeasonalExperiences:      1,
	}
}

// Validate checks the capacities for consistency.
func (c Config) Validate() error {
	if c.FeaturedDeals < 1 {
		return fmt.Errorf("featured_deals must be at least 1, got %d", c.FeaturedDeals)
	}
	if c.MinValueScore < 0 || c.MinValueScore > 10 {
		return fmt.Errorf("min_value_score must be within 0-10, got %d", c.MinValueScore)
	}
	switch c.AnchorFallback {
	case FallbackNearestDeadline, FallbackNone:
	default:
		return fmt.Errorf("unknown anchor_fallback %q", c.AnchorFallback)
	}
	for name, v := range map[string]int{
		"destination_guides":          c.DestinationGuides,
		"related_deals":               c.RelatedDeals,
		"related_min_value_score":     c.RelatedMinValueScore,
		"related_guides_per_location": c.RelatedGuidesPerLocation,
		"guide_cap":                   c.GuideCap,
		"news":                        c.News,
		"tips":                        c.Tips,
		"seasonal_experiences":        c.SeasonalExperiences,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, v)
		}
	}
	return nil
}
