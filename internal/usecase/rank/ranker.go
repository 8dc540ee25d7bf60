package rank

import (
	"sort"

	"github.com/kailas-cloud/skillsift/internal/domain/recommend"
)

// DefaultCategoryBoost is the additive score boost for category matches.
const DefaultCategoryBoost = 0.15

// Ranker orders retrieval candidates under query constraints: a hard
// duration filter, a soft category boost, score-descending order, then
// truncation to the resolved result count.
type Ranker struct {
	boost float64
}

// New creates a ranker. boost <= 0 falls back to DefaultCategoryBoost.
func New(boost float64) *Ranker {
	if boost <= 0 {
		boost = DefaultCategoryBoost
	}
	return &Ranker{boost: boost}
}

// Rank produces the final recommendation list. maxResults must already be
// resolved to a positive count. An empty result is a valid answer: the
// duration filter may discard every candidate.
func (r *Ranker) Rank(
	candidates []recommend.Candidate, cons recommend.Constraints, maxResults int,
) recommend.Result {
	kept := r.applyConstraints(candidates, cons)

	// Equal scores order by record id so reruns return identical lists.
	sort.Slice(kept, func(i, j int) bool {
		si, sj := kept[i].FinalScore(), kept[j].FinalScore()
		if si != sj {
			return si > sj
		}
		ri, rj := kept[i].Record(), kept[j].Record()
		return ri.ID() < rj.ID()
	})

	if len(kept) > maxResults {
		kept = kept[:maxResults]
	}

	items := make([]recommend.Item, len(kept))
	for i := range kept {
		items[i] = recommend.NewItem(kept[i].Record(), kept[i].FinalScore())
	}
	return recommend.NewResult(items)
}

// applyConstraints drops candidates over the duration ceiling and boosts
// category matches. Records with unknown duration pass the filter; the
// category signal never excludes anything.
func (r *Ranker) applyConstraints(
	candidates []recommend.Candidate, cons recommend.Constraints,
) []recommend.Candidate {
	maxDur, durSet := cons.MaxDuration()
	cats := cons.Categories()

	kept := candidates[:0]
	for _, c := range candidates {
		rec := c.Record()
		if durSet {
			if d, known := rec.Duration(); known && d > maxDur {
				continue
			}
		}
		if len(cats) > 0 && rec.HasAnyCategory(cats) {
			c = c.WithBoost(r.boost)
		}
		kept = append(kept, c)
	}
	return kept
}
