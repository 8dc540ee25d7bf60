package skillsift

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/skillsift/internal/catalog"
	"github.com/kailas-cloud/skillsift/internal/metrics"
)

// CatalogStats describes the outcome of one catalog load.
type CatalogStats struct {
	Generation   uint64 // serving generation after the load
	Loaded       int    // records accepted into the generation
	Quarantined  int    // records rejected by validation
	Deduplicated int    // duplicate-name records dropped
}

// LoadCatalog re-reads the snapshot configured with WithCatalogSnapshot and
// atomically swaps the serving generation. In-flight Recommend calls finish
// against the previous generation. On error the current generation keeps
// serving.
func (c *Client) LoadCatalog() (_ CatalogStats, err error) {
	start := time.Now()
	defer func() { c.obs.observe("catalog.load", start, err) }()

	stats, err := c.loader.Load()
	if err != nil {
		return CatalogStats{}, fmt.Errorf("load catalog: %w", err)
	}
	metrics.CatalogGeneration.Set(float64(stats.Generation))

	return CatalogStats{
		Generation:   stats.Generation,
		Loaded:       stats.Loaded,
		Quarantined:  stats.Quarantined,
		Deduplicated: stats.Deduplicated,
	}, nil
}

// catalogLoader is the internal interface for snapshot loading.
type catalogLoader interface {
	Load() (catalog.LoadStats, error)
}
