package skillsift

import (
	"context"

	healthuc "github.com/kailas-cloud/skillsift/internal/usecase/health"
)

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status            string            // "ok", "degraded", "error"
	Checks            map[string]string // component -> "ok"/"error"
	CatalogGeneration uint64
	CatalogRecords    int
}

// Health checks the catalog, the cache store and the embedding provider.
// Only a missing catalog generation reports "error"; everything else
// degrades while Recommend keeps serving.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status:            string(report.Status),
		Checks:            checks,
		CatalogGeneration: report.Generation,
		CatalogRecords:    report.Records,
	}
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
