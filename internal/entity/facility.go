package entity

import (
	"fmt"
	"strings"
)

// Facility is one monitored venue, identified on pages by substring match.
type Facility struct {
	Key          string
	NamePatterns []string
}

// NewFacility builds a Facility. Blank patterns are dropped; a facility left
// without any pattern is a configuration error.
func NewFacility(key string, patterns ...string) (Facility, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Facility{}, fmt.Errorf("%w: facility key is empty", ErrInvalidConfig)
	}
	var kept []string
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return Facility{}, fmt.Errorf("%w: facility %q has no name patterns", ErrInvalidConfig, key)
	}
	return Facility{Key: key, NamePatterns: kept}, nil
}

// Matches reports whether text contains any of the facility's name patterns.
// Matching is case-sensitive.
func (f Facility) Matches(text string) bool {
	for _, p := range f.NamePatterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// MatchFacility returns the first facility whose patterns occur in text.
func MatchFacility(facilities []Facility, text string) (Facility, bool) {
	for _, f := range facilities {
		if f.Matches(text) {
			return f, true
		}
	}
	return Facility{}, false
}

// DefaultFacilities is the watch list used when none is configured.
func DefaultFacilities() []Facility {
	return []Facility{
		{Key: "駒場", NamePatterns: []string{"駒場"}},
		{Key: "区民センター", NamePatterns: []string{"区民センター"}},
		{Key: "碑文谷", NamePatterns: []string{"碑文谷"}},
	}
}
