// Package assessment defines the catalog record aggregate and its taxonomy.
package assessment

import (
	"fmt"
	"regexp"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxNameLength bounds the assessment display name.
const MaxNameLength = 512

// Assessment is one catalog entry (immutable value object).
// Records are created by the out-of-band data pipeline, loaded read-only at
// startup and never mutated during a recommendation request.
type Assessment struct {
	id              string
	name            string
	description     string
	url             string
	durationMinutes int
	durationKnown   bool
	categories      []Category
	remoteTesting   bool
	adaptiveSupport bool
	kind            Kind
	embedding       []float32
}

// Params carries the raw fields for constructing an Assessment.
// DurationMinutes nil means the catalog does not know the duration;
// that is distinct from a zero-minute assessment.
type Params struct {
	ID              string
	Name            string
	Description     string
	URL             string
	DurationMinutes *int
	Categories      []Category
	RemoteTesting   bool
	AdaptiveSupport bool
	Kind            Kind
	Embedding       []float32
}

// New validates and creates an Assessment.
// ID: ^[a-zA-Z0-9_-]+$, 1-256 chars. Name: non-empty, max 512 chars.
// Embedding validation (dimensionality) happens at catalog load, where the
// configured dimension is known.
func New(p Params) (Assessment, error) {
	if p.ID == "" {
		return Assessment{}, fmt.Errorf("assessment ID is required")
	}
	if len(p.ID) > 256 {
		return Assessment{}, fmt.Errorf("assessment ID too long (max 256)")
	}
	if !idRegex.MatchString(p.ID) {
		return Assessment{}, fmt.Errorf("assessment ID must be alphanumeric with underscores and hyphens")
	}
	if p.Name == "" {
		return Assessment{}, fmt.Errorf("name is required")
	}
	if len(p.Name) > MaxNameLength {
		return Assessment{}, fmt.Errorf("name too long (max %d chars)", MaxNameLength)
	}
	if p.DurationMinutes != nil && *p.DurationMinutes < 0 {
		return Assessment{}, fmt.Errorf("duration_minutes must not be negative, got %d", *p.DurationMinutes)
	}
	for _, c := range p.Categories {
		if !c.Valid() {
			return Assessment{}, fmt.Errorf("unknown category code %q", string(c))
		}
	}

	a := Assessment{
		id:              p.ID,
		name:            p.Name,
		description:     p.Description,
		url:             p.URL,
		categories:      NormalizeCategories(p.Categories),
		remoteTesting:   p.RemoteTesting,
		adaptiveSupport: p.AdaptiveSupport,
		kind:            p.Kind,
		embedding:       p.Embedding,
	}
	if a.kind == "" {
		a.kind = KindIndividual
	}
	if p.DurationMinutes != nil {
		a.durationMinutes = *p.DurationMinutes
		a.durationKnown = true
	}
	return a, nil
}

// Reconstruct creates an Assessment without validation (snapshot hydration).
func Reconstruct(p Params) Assessment {
	a := Assessment{
		id:              p.ID,
		name:            p.Name,
		description:     p.Description,
		url:             p.URL,
		categories:      NormalizeCategories(p.Categories),
		remoteTesting:   p.RemoteTesting,
		adaptiveSupport: p.AdaptiveSupport,
		kind:            p.Kind,
		embedding:       p.Embedding,
	}
	if p.DurationMinutes != nil {
		a.durationMinutes = *p.DurationMinutes
		a.durationKnown = true
	}
	return a
}

// ID returns the stable record identifier.
func (a *Assessment) ID() string { return a.id }

// Name returns the display name.
func (a *Assessment) Name() string { return a.name }

// Description returns the display description.
func (a *Assessment) Description() string { return a.description }

// URL returns the product page link.
func (a *Assessment) URL() string { return a.url }

// Duration returns the assessment length in minutes and whether it is known.
func (a *Assessment) Duration() (int, bool) { return a.durationMinutes, a.durationKnown }

// Categories returns the sorted category codes.
func (a *Assessment) Categories() []Category { return a.categories }

// RemoteTesting reports remote administration support.
func (a *Assessment) RemoteTesting() bool { return a.remoteTesting }

// AdaptiveSupport reports adaptive (IRT) testing support.
func (a *Assessment) AdaptiveSupport() bool { return a.adaptiveSupport }

// Kind returns the product kind.
func (a *Assessment) Kind() Kind { return a.kind }

// Embedding returns the precomputed vector.
func (a *Assessment) Embedding() []float32 { return a.embedding }

// WithEmbedding returns a copy with the given vector attached.
// Used by the snapshot precompute path; loaded records never change vectors.
func (a Assessment) WithEmbedding(v []float32) Assessment {
	a.embedding = v
	return a
}

// HasAnyCategory reports whether the record's categories intersect cats.
func (a *Assessment) HasAnyCategory(cats []Category) bool {
	for _, want := range cats {
		for _, have := range a.categories {
			if want == have {
				return true
			}
		}
	}
	return false
}

// SearchText returns the text that represents this record for embedding.
func (a *Assessment) SearchText() string {
	if a.description == "" {
		return a.name
	}
	return a.name + ". " + a.description
}
