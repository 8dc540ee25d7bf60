package health

import (
	"context"

	"github.com/kailas-cloud/skillsift/internal/catalog"
)

// CatalogInfo reports the serving catalog generation.
type CatalogInfo interface {
	Stats() catalog.Stats
}

// StorePinger checks cache store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
