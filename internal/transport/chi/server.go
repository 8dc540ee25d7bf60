package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/skillsift/internal/domain"
	domrec "github.com/kailas-cloud/skillsift/internal/domain/recommend"
	domusage "github.com/kailas-cloud/skillsift/internal/domain/usage"
	healthuc "github.com/kailas-cloud/skillsift/internal/usecase/health"
)

// Error codes returned in the JSON error body.
const (
	codeBadRequest             = "bad_request"
	codeInvalidQuery           = "invalid_query"
	codeRateLimited            = "rate_limited"
	codeEmbeddingQuotaExceeded = "embedding_quota_exceeded"
	codeEmbeddingUnavailable   = "embedding_unavailable"
	codeCatalogEmpty           = "catalog_empty"
	codeUnauthorized           = "unauthorized"
	codeInternalError          = "internal_error"
)

// Recommender produces ranked assessment recommendations for a query.
type Recommender interface {
	Recommend(ctx context.Context, queryText string, maxResultsOverride int) (domrec.Result, error)
}

// UsageReporter builds embedding token usage reports.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthReporter aggregates component health checks.
type HealthReporter interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the recommendation engine over HTTP.
type Server struct {
	recommender   Recommender
	usage         UsageReporter
	health        HealthReporter
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	recommender Recommender,
	usage UsageReporter,
	health HealthReporter,
	logger *zap.Logger,
) *Server {
	s := &Server{
		recommender: recommender,
		usage:       usage,
		health:      health,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded,
			http.StatusTooManyRequests, codeEmbeddingQuotaExceeded),
		sentinelHandler(domain.ErrEmbeddingUnavailable,
			http.StatusBadGateway, codeEmbeddingUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, codeEmbeddingUnavailable),
		sentinelHandler(domain.ErrEmptyCatalog, http.StatusServiceUnavailable, codeCatalogEmpty),
	}
	return s
}

// RegisterRoutes mounts the API endpoints on the router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/recommend", s.GetRecommendations)
	r.Get("/health", s.HealthCheck)
	r.Get("/usage", s.GetUsage)
	r.Get("/metrics", s.Metrics)
}

type recommendationItem struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	URL             string   `json:"url"`
	Score           float64  `json:"score"`
	DurationMinutes *int     `json:"duration_minutes,omitempty"`
	Categories      []string `json:"categories"`
	RemoteTesting   bool     `json:"remote_testing"`
	AdaptiveSupport bool     `json:"adaptive_support"`
	AssessmentKind  string   `json:"assessment_kind"`
}

type recommendResponse struct {
	Query           string               `json:"query"`
	Count           int                  `json:"count"`
	Recommendations []recommendationItem `json:"recommendations"`
}

// GetRecommendations handles GET /recommend.
func (s *Server) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, "query parameter is required")
		return
	}

	maxResults := 0
	if raw := r.URL.Query().Get("max_results"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, codeBadRequest, "max_results must be a positive integer")
			return
		}
		maxResults = v
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.recommender.Recommend(ctx, query, maxResults)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]recommendationItem, res.Len())
	for i, it := range res.Items() {
		items[i] = itemToResponse(it)
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, recommendResponse{
		Query:           query,
		Count:           len(items),
		Recommendations: items,
	})
}

type healthResponse struct {
	Status            string            `json:"status"`
	Checks            map[string]string `json:"checks"`
	CatalogGeneration uint64            `json:"catalog_generation"`
	CatalogRecords    int               `json:"catalog_records"`
}

// HealthCheck handles GET /health. Degraded still answers 200: the engine
// keeps serving recommendations while only auxiliary components are down.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:            string(report.Status),
		Checks:            checks,
		CatalogGeneration: report.Generation,
		CatalogRecords:    report.Records,
	})
}

type usageMetrics struct {
	Tokens int64 `json:"tokens"`
}

type budgetStatus struct {
	TokensLimit     int        `json:"tokens_limit"`
	TokensRemaining int        `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

type usageResponse struct {
	Period        string       `json:"period"`
	Provider      string       `json:"provider"`
	PeriodStartAt *time.Time   `json:"period_start_at,omitempty"`
	PeriodEndAt   *time.Time   `json:"period_end_at,omitempty"`
	Usage         usageMetrics `json:"usage"`
	Budget        budgetStatus `json:"budget"`
}

// GetUsage handles GET /usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period := domusage.PeriodMonth
	switch raw := r.URL.Query().Get("period"); raw {
	case "", string(domusage.PeriodMonth):
	case string(domusage.PeriodDay):
		period = domusage.PeriodDay
	case string(domusage.PeriodTotal):
		period = domusage.PeriodTotal
	default:
		writeError(w, http.StatusBadRequest, codeBadRequest, "period must be day, month or total")
		return
	}

	report := s.usage.GetReport(r.Context(), period)

	resp := usageResponse{
		Period:   string(report.Period()),
		Provider: report.Provider(),
		Usage:    usageMetrics{Tokens: report.Tokens()},
		Budget: budgetStatus{
			TokensLimit:     report.Budget().TokensLimit(),
			TokensRemaining: report.Budget().TokensRemaining(),
			IsExhausted:     report.Budget().IsExhausted(),
		},
	}

	if report.PeriodStart() > 0 {
		start := time.UnixMilli(report.PeriodStart()).UTC()
		end := time.UnixMilli(report.PeriodEnd()).UTC()
		resp.PeriodStartAt = &start
		resp.PeriodEndAt = &end
	}

	if report.Budget().ResetsAt() > 0 {
		resetsAt := time.UnixMilli(report.Budget().ResetsAt()).UTC()
		resp.Budget.ResetsAt = &resetsAt
	}

	writeJSON(w, http.StatusOK, resp)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func itemToResponse(it domrec.Item) recommendationItem {
	rec := it.Record()
	item := recommendationItem{
		ID:              rec.ID(),
		Name:            rec.Name(),
		URL:             rec.URL(),
		Score:           it.Score(),
		RemoteTesting:   rec.RemoteTesting(),
		AdaptiveSupport: rec.AdaptiveSupport(),
		AssessmentKind:  string(rec.Kind()),
	}
	if d, ok := rec.Duration(); ok {
		item.DurationMinutes = &d
	}
	cats := rec.Categories()
	item.Categories = make([]string, len(cats))
	for i, c := range cats {
		item.Categories[i] = string(c)
	}
	return item
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrRateLimited,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingUnavailable,
		domain.ErrEmbeddingProviderError,
		domain.ErrEmptyCatalog,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
