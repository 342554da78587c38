// Package location normalizes destination names and matches them against the
// primary and secondary locations declared on a content item.
package location

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Worldwide is the sentinel for content that has no specific destination.
const Worldwide = "worldwide"

// Set is the primary/secondary location pair declared on a content item.
type Set struct {
	Primary   string   `json:"primary"`
	Secondary []string `json:"secondary"`
}

// Normalize lowercases raw, strips accents and removes whitespace and
// separator punctuation, so "New York", "new-york" and "newyork" compare equal.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = removeAccents(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		switch r {
		case '-', '_', '.', ',', '\'', '’':
			return -1
		}
		return r
	}, s)
}

// NormalizeSet normalizes every entry of s, dropping empty and duplicate
// secondary entries. An empty primary becomes Worldwide.
func NormalizeSet(s Set) Set {
	out := Set{Primary: Normalize(s.Primary)}
	if out.Primary == "" {
		out.Primary = Worldwide
	}
	seen := make(map[string]struct{}, len(s.Secondary))
	for _, raw := range s.Secondary {
		n := Normalize(raw)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out.Secondary = append(out.Secondary, n)
	}
	return out
}

// IsWorldwide reports whether loc is empty or the worldwide sentinel.
func IsWorldwide(loc string) bool {
	n := Normalize(loc)
	return n == "" || n == Worldwide
}

// Matches reports whether target names the set's primary location exactly, or
// one of its secondary locations exactly or as a substring in either
// direction. Worldwide never matches and is never a valid target.
func Matches(s Set, target string) bool {
	t := Normalize(target)
	if t == "" || t == Worldwide {
		return false
	}

	if p := Normalize(s.Primary); p != Worldwide && p == t {
		return true
	}

	for _, raw := range s.Secondary {
		sec := Normalize(raw)
		if sec == "" || sec == Worldwide {
			continue
		}
		if sec == t || strings.Contains(sec, t) || strings.Contains(t, sec) {
			return true
		}
	}
	return false
}

func removeAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}
