package retrieve

import (
	"context"

	"github.com/kailas-cloud/skillsift/internal/domain"
	"github.com/kailas-cloud/skillsift/internal/domain/recommend"
)

// Embedder vectorizes query text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Searcher runs nearest-neighbour search over the serving catalog generation.
type Searcher interface {
	Search(vector []float32, topN int) ([]recommend.Candidate, error)
}

// Expander rewrites terse query text into richer retrieval text.
type Expander interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
