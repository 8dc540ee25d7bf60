package eval

import (
	"context"

	"github.com/kailas-cloud/skillsift/internal/catalog"
	domrec "github.com/kailas-cloud/skillsift/internal/domain/recommend"
)

// Recommender replays labeled queries through the recommendation pipeline.
type Recommender interface {
	Recommend(ctx context.Context, queryText string, maxResultsOverride int) (domrec.Result, error)
}

// CatalogInfo stamps runs with the serving catalog generation.
type CatalogInfo interface {
	Stats() catalog.Stats
}
