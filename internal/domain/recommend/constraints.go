// Package recommend defines the request-scoped value types of the
// recommendation pipeline: extracted query constraints, scored candidates
// and the final ordered result.
package recommend

import (
	"github.com/kailas-cloud/skillsift/internal/domain/assessment"
)

// Result size limits.
const (
	DefaultMaxResults = 10
	MaxResultsCap     = 50
	MaxQueryLength    = 4096
)

// Constraints is the structured interpretation of one query.
// Zero value means fully unconstrained. Fields distinguish "absent" from
// "zero": no duration mention must not become a zero-duration bound.
type Constraints struct {
	maxDurationMinutes int
	durationSet        bool
	categories         []assessment.Category
	maxResults         int // 0 = not requested; resolved by the engine before ranking
}

// MaxDuration returns the duration ceiling in minutes and whether one was set.
func (c Constraints) MaxDuration() (int, bool) {
	return c.maxDurationMinutes, c.durationSet
}

// Categories returns the requested category codes (possibly empty).
func (c Constraints) Categories() []assessment.Category { return c.categories }

// MaxResults returns the requested result count, 0 if not requested.
func (c Constraints) MaxResults() int { return c.maxResults }

// WithMaxDuration returns a copy with the duration ceiling set.
// Non-positive values are ignored: a zero bound would reject every record
// with a known duration, which never matches user intent.
func (c Constraints) WithMaxDuration(minutes int) Constraints {
	if minutes <= 0 {
		return c
	}
	c.maxDurationMinutes = minutes
	c.durationSet = true
	return c
}

// WithCategories returns a copy with the requested categories set (normalized).
func (c Constraints) WithCategories(cats []assessment.Category) Constraints {
	c.categories = assessment.NormalizeCategories(cats)
	return c
}

// WithMaxResults returns a copy with the requested result count, clamped to
// [1, MaxResultsCap]. Non-positive values are ignored (stays unrequested).
func (c Constraints) WithMaxResults(n int) Constraints {
	if n <= 0 {
		return c
	}
	if n > MaxResultsCap {
		n = MaxResultsCap
	}
	c.maxResults = n
	return c
}

// Merge overlays other on top of c: fields other has set win, the rest keep
// c's values. Used to apply LLM-extracted constraints over the rule pass.
func (c Constraints) Merge(other Constraints) Constraints {
	out := c
	if other.durationSet {
		out.maxDurationMinutes = other.maxDurationMinutes
		out.durationSet = true
	}
	if len(other.categories) > 0 {
		out.categories = other.categories
	}
	if other.maxResults > 0 {
		out.maxResults = other.maxResults
	}
	return out
}

// ResolveMaxResults produces a concrete positive result count:
// caller override first, then the extracted value, then defaultN; the result
// is clamped to [1, cap]. cap <= 0 falls back to MaxResultsCap.
func (c Constraints) ResolveMaxResults(override, defaultN, cap int) int {
	if cap <= 0 {
		cap = MaxResultsCap
	}
	n := c.maxResults
	if override > 0 {
		n = override
	}
	if n <= 0 {
		n = defaultN
	}
	if n <= 0 {
		n = DefaultMaxResults
	}
	if n > cap {
		n = cap
	}
	return n
}
