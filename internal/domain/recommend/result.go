package recommend

import (
	"github.com/kailas-cloud/skillsift/internal/domain/assessment"
)

// Candidate is a retrieval hit before ranking.
type Candidate struct {
	record     assessment.Assessment
	similarity float64
	boost      float64
}

// NewCandidate creates a candidate with its retriever similarity score.
func NewCandidate(record assessment.Assessment, similarity float64) Candidate {
	return Candidate{record: record, similarity: similarity}
}

// Record returns the underlying catalog record.
func (c *Candidate) Record() assessment.Assessment { return c.record }

// Similarity returns the raw semantic similarity from the retriever.
func (c *Candidate) Similarity() float64 { return c.similarity }

// Boost returns the ranking adjustment applied on top of similarity.
func (c *Candidate) Boost() float64 { return c.boost }

// WithBoost returns a copy with the ranking boost set.
func (c Candidate) WithBoost(boost float64) Candidate {
	c.boost = boost
	return c
}

// FinalScore is the adjusted ranking score.
func (c *Candidate) FinalScore() float64 { return c.similarity + c.boost }

// Item is one entry of the final recommendation list.
type Item struct {
	record assessment.Assessment
	score  float64
}

// NewItem creates a result item.
func NewItem(record assessment.Assessment, score float64) Item {
	return Item{record: record, score: score}
}

// Record returns the recommended catalog record.
func (i *Item) Record() assessment.Assessment { return i.record }

// Score returns the final ranking score.
func (i *Item) Score() float64 { return i.score }

// Result is the ordered recommendation list: descending score, ties broken
// by record id ascending, length bounded by the resolved max results.
type Result struct {
	items []Item
}

// NewResult wraps an already-ordered item list.
func NewResult(items []Item) Result {
	return Result{items: items}
}

// Items returns the ordered entries.
func (r *Result) Items() []Item { return r.items }

// Len returns the number of entries.
func (r *Result) Len() int { return len(r.items) }

// IsEmpty reports whether no catalog entry satisfied the constraints.
// An empty result is an answer, not a failure.
func (r *Result) IsEmpty() bool { return len(r.items) == 0 }

// IDs returns the record ids in rank order.
func (r *Result) IDs() []string {
	ids := make([]string, len(r.items))
	for i := range r.items {
		ids[i] = r.items[i].record.ID()
	}
	return ids
}
