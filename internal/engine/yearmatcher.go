package engine

import (
	"strconv"

	"github.com/example/mpsim/internal/engineerr"
)

// YearMatcher is a `[min?, max?]` inclusive year range guard. Either bound
// may be absent (nil), meaning unbounded in that direction. A reversed
// range is auto-normalized to ascending order at construction time, per
// spec §4.4.
type YearMatcher struct {
	Min *int
	Max *int
}

// Always matches every year.
var Always = YearMatcher{}

// NewYearMatcher builds a YearMatcher from optional bounds, normalizing a
// reversed range.
func NewYearMatcher(min, max *int) YearMatcher {
	if min != nil && max != nil && *min > *max {
		min, max = max, min
	}
	return YearMatcher{Min: min, Max: max}
}

// Matches reports whether year falls within the range, inclusive.
func (m YearMatcher) Matches(year int) bool {
	if m.Min != nil && year < *m.Min {
		return false
	}
	if m.Max != nil && year > *m.Max {
		return false
	}
	return true
}

func intPtr(v int) *int { return &v }

// ParseYearMatcher parses optional year bound strings as a front end would
// receive them (e.g. from the line-oriented command reader). Empty strings
// denote an unbounded side. Non-integer bounds fail with InvalidYearRange;
// a reversed range is auto-normalized, never an error.
func ParseYearMatcher(minStr, maxStr string) (YearMatcher, error) {
	var min, max *int
	if minStr != "" {
		v, err := strconv.Atoi(minStr)
		if err != nil {
			return YearMatcher{}, engineerr.Wrap(engineerr.InvalidYearRange, err, "non-integer minimum year %q", minStr)
		}
		min = intPtr(v)
	}
	if maxStr != "" {
		v, err := strconv.Atoi(maxStr)
		if err != nil {
			return YearMatcher{}, engineerr.Wrap(engineerr.InvalidYearRange, err, "non-integer maximum year %q", maxStr)
		}
		max = intPtr(v)
	}
	return NewYearMatcher(min, max), nil
}
