package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recommendation pipeline Prometheus metrics.
var (
	RecommendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skillsift",
			Name:      "recommend_requests_total",
			Help:      "Total recommendation requests by outcome",
		},
		[]string{"outcome"}, // "ok" / "degraded" / "error"
	)

	RecommendStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "skillsift",
			Name:      "recommend_stage_duration_seconds",
			Help:      "Recommendation pipeline stage duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage"}, // "extract" / "retrieve" / "rank"
	)

	ExtractionFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skillsift",
			Name:      "extraction_fallbacks_total",
			Help:      "Constraint extraction failures degraded to rule-only results",
		},
		[]string{"reason"}, // "timeout" / "malformed" / "provider_error"
	)

	CatalogRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "skillsift",
			Name:      "catalog_records",
			Help:      "Assessment records in the serving catalog generation",
		},
	)

	CatalogGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "skillsift",
			Name:      "catalog_generation",
			Help:      "Serving catalog generation number",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(RecommendRequestsTotal)
	prometheus.MustRegister(RecommendStageDuration)
	prometheus.MustRegister(ExtractionFallbacksTotal)
	prometheus.MustRegister(CatalogRecords)
	prometheus.MustRegister(CatalogGeneration)
	pipelineMetricsRegistered = true
}
