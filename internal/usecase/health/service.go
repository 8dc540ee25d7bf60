package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure: requests may still be served.
	Degraded Status = "degraded"
	// Unhealthy indicates the service cannot serve recommendations.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status     Status
	Checks     map[string]CheckResult
	Generation uint64
	Records    int
}

// Service coordinates component health checks. The catalog is the only
// component whose failure is fatal: without a serving generation every
// recommendation fails. Store and embedding failures degrade.
type Service struct {
	catalog   CatalogInfo
	store     StorePinger
	embedding EmbeddingChecker
}

// New creates a Service. store and embedding can be nil.
func New(catalog CatalogInfo, store StorePinger, embedding EmbeddingChecker) *Service {
	return &Service{catalog: catalog, store: store, embedding: embedding}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	stats := s.catalog.Stats()
	catalogOK := stats.Generation > 0 && stats.Records > 0
	if catalogOK {
		checks["catalog"] = CheckOK
	} else {
		checks["catalog"] = CheckError
	}

	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			checks["store"] = CheckError
		} else {
			checks["store"] = CheckOK
		}
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if !catalogOK {
		status = Unhealthy
	}

	return Report{
		Status:     status,
		Checks:     checks,
		Generation: stats.Generation,
		Records:    stats.Records,
	}
}
