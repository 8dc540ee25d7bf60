package assessment

import (
	"sort"
	"strings"
)

// Category is a single-letter assessment category code from the catalog taxonomy.
type Category string

// Catalog category codes.
const (
	CategoryAbility      Category = "A" // Ability & Aptitude
	CategoryBiodata      Category = "B" // Biodata & Situational Judgement
	CategoryCompetencies Category = "C" // Competencies
	CategoryDevelopment  Category = "D" // Development & 360
	CategoryExercises    Category = "E" // Assessment Exercises
	CategoryKnowledge    Category = "K" // Knowledge & Skills
	CategoryPersonality  Category = "P" // Personality & Behavior
	CategorySimulations  Category = "S" // Simulations
)

var categoryNames = map[Category]string{
	CategoryAbility:      "Ability & Aptitude",
	CategoryBiodata:      "Biodata & Situational Judgement",
	CategoryCompetencies: "Competencies",
	CategoryDevelopment:  "Development & 360",
	CategoryExercises:    "Assessment Exercises",
	CategoryKnowledge:    "Knowledge & Skills",
	CategoryPersonality:  "Personality & Behavior",
	CategorySimulations:  "Simulations",
}

// Valid reports whether c is a known category code.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// DisplayName returns the human-readable category name, or the raw code if unknown.
func (c Category) DisplayName() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return string(c)
}

// ParseCategory resolves a code or display name to a Category, case-insensitively.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	if c := Category(strings.ToUpper(s)); len(s) == 1 && c.Valid() {
		return c, true
	}
	for c, name := range categoryNames {
		if strings.EqualFold(s, name) {
			return c, true
		}
	}
	return "", false
}

// NormalizeCategories sorts, deduplicates and drops unknown codes.
func NormalizeCategories(cats []Category) []Category {
	if len(cats) == 0 {
		return nil
	}
	seen := make(map[Category]struct{}, len(cats))
	out := make([]Category, 0, len(cats))
	for _, c := range cats {
		if !c.Valid() {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Kind distinguishes prepackaged solutions from individual test products.
type Kind string

// Assessment kinds.
const (
	KindPrepackaged Kind = "prepackaged"
	KindIndividual  Kind = "individual"
)

// ParseKind resolves a kind string leniently; unknown values map to individual.
func ParseKind(s string) Kind {
	if strings.EqualFold(strings.TrimSpace(s), string(KindPrepackaged)) {
		return KindPrepackaged
	}
	return KindIndividual
}
