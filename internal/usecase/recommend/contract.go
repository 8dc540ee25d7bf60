package recommend

import (
	"context"

	domrec "github.com/kailas-cloud/skillsift/internal/domain/recommend"
)

// Extractor derives structured constraints from free-text query text. The
// degraded flag reports an LLM pass that fell back to rule extraction.
type Extractor interface {
	Extract(ctx context.Context, queryText string) (domrec.Constraints, bool)
}

// Retriever produces the similarity-ordered candidate pool.
type Retriever interface {
	TopNFor(maxResults int) int
	Retrieve(ctx context.Context, queryText string, topN int) ([]domrec.Candidate, error)
}

// Ranker filters, boosts, orders, and truncates candidates.
type Ranker interface {
	Rank(candidates []domrec.Candidate, cons domrec.Constraints, maxResults int) domrec.Result
}
