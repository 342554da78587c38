// Package season maps dates to seasons and ranks content by seasonal fit.
package season

import (
	"strings"
	"time"
)

// Label names a season bucket.
type Label string

const (
	Winter Label = "winter"
	Spring Label = "spring"
	Summer Label = "summer"
	Autumn Label = "autumn"

	// Any marks content that is relevant all year round.
	Any Label = "any"
	// Shoulder is the enrichment label for the in-between seasons; it
	// matches both spring and autumn.
	Shoulder Label = "shoulder"
)

// Rank values returned by Rank, highest first.
const (
	RankCurrent  = 3
	RankUpcoming = 2
	RankAny      = 1
	RankNone     = 0
)

var cycle = [...]Label{Winter, Spring, Summer, Autumn}

// Current returns the northern-hemisphere season for date: Dec-Feb winter,
// Mar-May spring, Jun-Aug summer, Sep-Nov autumn.
func Current(date time.Time) Label {
	switch date.Month() {
	case time.December, time.January, time.February:
		return Winter
	case time.March, time.April, time.May:
		return Spring
	case time.June, time.July, time.August:
		return Summer
	default:
		return Autumn
	}
}

// Upcoming returns the season that follows current in cyclic order.
// Labels outside the four buckets yield an empty label.
func Upcoming(current Label) Label {
	for i, l := range cycle {
		if l == current {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return ""
}

// ParseLabel normalizes an enrichment label. "fall" is accepted for autumn.
func ParseLabel(raw string) Label {
	l := Label(strings.ToLower(strings.TrimSpace(raw)))
	if l == "fall" {
		return Autumn
	}
	return l
}

// NormalizeLabels lowercases and de-duplicates labels. An empty input, or
// one containing Any, collapses to [Any].
func NormalizeLabels(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[Label]struct{}, len(raw))
	for _, r := range raw {
		l := ParseLabel(r)
		if l == "" {
			continue
		}
		if l == Any {
			return []string{string(Any)}
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, string(l))
	}
	if len(out) == 0 {
		return []string{string(Any)}
	}
	return out
}

// Rank scores declared seasonality against the current and upcoming season:
// 3 for the current season, 2 for the upcoming one, 1 for "any", else 0.
// It is a sort key only; an off-season item stays eligible.
func Rank(declared []string, current, upcoming Label) int {
	best := RankNone
	for _, raw := range declared {
		l := ParseLabel(raw)
		var r int
		switch {
		case covers(l, current):
			r = RankCurrent
		case covers(l, upcoming):
			r = RankUpcoming
		case l == Any:
			r = RankAny
		}
		if r > best {
			best = r
		}
	}
	return best
}

func covers(declared, target Label) bool {
	if target == "" {
		return false
	}
	if declared == target {
		return true
	}
	return declared == Shoulder && (target == Spring || target == Autumn)
}
