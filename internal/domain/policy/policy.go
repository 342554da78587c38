// Package policy holds the per-category reuse rules.
package policy

import (
	"time"

	"github.com/bytesize-travel/service-curation/internal/domain/content"
)

// Policy governs whether and when an item of a category may be reused.
type Policy struct {
	Reusable      bool `json:"reusable" mapstructure:"reusable"`
	CooldownDays  int  `json:"cooldown_days" mapstructure:"cooldown_days"`
	MaxUsageCount int  `json:"max_usage_count" mapstructure:"max_usage_count"`
}

// Default applies to categories without an explicit policy.
var Default = Policy{Reusable: true, CooldownDays: 30, MaxUsageCount: 3}

// Defaults returns the built-in policy for every known category. Deals are
// never reused.
func Defaults() map[content.Category]Policy {
	return map[content.Category]Policy{
		content.CategoryDeal:       {Reusable: false},
		content.CategoryGuide:      {Reusable: true, CooldownDays: 60, MaxUsageCount: 3},
		content.CategoryExperience: {Reusable: true, CooldownDays: 90, MaxUsageCount: 2},
		content.CategoryTip:        {Reusable: true, CooldownDays: 30, MaxUsageCount: 5},
		content.CategoryNews:       {Reusable: true, CooldownDays: 14, MaxUsageCount: 2},
	}
}

// Table is an immutable lookup of policies by category.
type Table struct {
	policies map[content.Category]Policy
}

// NewTable builds a table from the defaults with overrides applied on top.
func NewTable(overrides map[content.Category]Policy) *Table {
	policies := Defaults()
	for c, p := range overrides {
		policies[c] = p
	}
	return &Table{policies: policies}
}

// For returns the policy of c, or Default for an unrecognized category.
func (t *Table) For(c content.Category) Policy {
	if p, ok := t.policies[c]; ok {
		return p
	}
	return Default
}

// Eligibility returns the usage predicate for c evaluated at now:
// never used, or (cooled down for CooldownDays and under MaxUsageCount) when
// the category is reusable.
func (t *Table) Eligibility(c content.Category, now time.Time) content.UsageFilter {
	p := t.For(c)
	if !p.Reusable {
		return content.UsageFilter{NeverUsedOnly: true}
	}
	return content.UsageFilter{
		CooledBefore:  now.UTC().Add(-time.Duration(p.CooldownDays) * 24 * time.Hour),
		MaxUsageCount: p.MaxUsageCount,
	}
}
