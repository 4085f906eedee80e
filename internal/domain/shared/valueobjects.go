// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// Identifiers
// ═══════════════════════════════════════════════════════════════════════════

// NewID returns a fresh random identifier (UUID v4).
func NewID() string {
	return uuid.NewString()
}

// RequireID checks that id is not blank. Catalog identifiers are opaque, so
// no format is imposed.
func RequireID(domain, op, field, id string) error {
	if strings.TrimSpace(id) == "" {
		return NewDomainError(domain, op, ErrInvalidID, field+" is required")
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Percentages
// ═══════════════════════════════════════════════════════════════════════════

// Percentage computes part/whole*100 rounded half-up to two decimals.
// A zero or negative whole yields 0. The arithmetic is done on integers in
// hundredths of a percent, so 1/3 is 33.33 and 2/3 is 66.67 exactly.
func Percentage(part, whole int64) float64 {
	if whole <= 0 || part <= 0 {
		return 0
	}
	// hundredths = round(part * 10000 / whole), half-up.
	hundredths := (part*20000 + whole) / (2 * whole)
	return float64(hundredths) / 100
}

// ClampPercent limits v to [0, 100].
func ClampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Durations
// ═══════════════════════════════════════════════════════════════════════════

// AddSeconds adds two non-negative second counts, saturating at
// math.MaxInt64 so a cumulative time never wraps negative.
func AddSeconds(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
