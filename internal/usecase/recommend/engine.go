package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/skillsift/internal/domain"
	domrec "github.com/kailas-cloud/skillsift/internal/domain/recommend"
	"github.com/kailas-cloud/skillsift/internal/metrics"
)

// Config bounds the result list. Zero values fall back to the domain defaults.
type Config struct {
	DefaultResults int
	MaxResults     int
}

// Engine runs the recommendation pipeline: constraint extraction and
// candidate retrieval fan out concurrently, ranking converges them.
// A request either yields a complete result or an explicit failure,
// never both.
type Engine struct {
	extractor      Extractor
	retriever      Retriever
	ranker         Ranker
	defaultResults int
	maxResults     int
	logger         *zap.Logger
}

// New creates a recommendation engine.
func New(extractor Extractor, retriever Retriever, ranker Ranker, cfg Config, logger *zap.Logger) *Engine {
	if cfg.DefaultResults <= 0 {
		cfg.DefaultResults = domrec.DefaultMaxResults
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = domrec.MaxResultsCap
	}
	return &Engine{
		extractor:      extractor,
		retriever:      retriever,
		ranker:         ranker,
		defaultResults: cfg.DefaultResults,
		maxResults:     cfg.MaxResults,
		logger:         logger,
	}
}

// Recommend turns free-text query text into a ranked assessment list.
// maxResultsOverride > 0 wins over any extracted result count.
// ErrEmptyCatalog and embedding failures propagate unchanged; extraction
// failures degrade to similarity-only ranking.
func (e *Engine) Recommend(
	ctx context.Context, queryText string, maxResultsOverride int,
) (domrec.Result, error) {
	query := strings.TrimSpace(queryText)
	if query == "" {
		metrics.RecommendRequestsTotal.WithLabelValues("error").Inc()
		return domrec.Result{}, fmt.Errorf("%w: query text is blank", domain.ErrInvalidQuery)
	}
	if len(query) > domrec.MaxQueryLength {
		metrics.RecommendRequestsTotal.WithLabelValues("error").Inc()
		return domrec.Result{}, fmt.Errorf("%w: query exceeds %d characters",
			domain.ErrInvalidQuery, domrec.MaxQueryLength)
	}

	// Extraction runs concurrently with retrieval, so the pool is sized for
	// the largest count this request can resolve to.
	poolFor := e.maxResults
	if maxResultsOverride > 0 && maxResultsOverride < poolFor {
		poolFor = maxResultsOverride
	}
	topN := e.retriever.TopNFor(poolFor)

	var (
		cons     domrec.Constraints
		degraded bool
		pool     []domrec.Candidate
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer observeStage("extract", time.Now())
		cons, degraded = e.extractor.Extract(gctx, query)
		return nil
	})
	g.Go(func() error {
		defer observeStage("retrieve", time.Now())
		var err error
		pool, err = e.retriever.Retrieve(gctx, query, topN)
		return err
	})
	if err := g.Wait(); err != nil {
		metrics.RecommendRequestsTotal.WithLabelValues("error").Inc()
		return domrec.Result{}, err
	}

	n := cons.ResolveMaxResults(maxResultsOverride, e.defaultResults, e.maxResults)

	rankStart := time.Now()
	res := e.ranker.Rank(pool, cons, n)
	observeStage("rank", rankStart)

	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	metrics.RecommendRequestsTotal.WithLabelValues(outcome).Inc()

	e.logger.Debug("Recommendation pipeline finished",
		zap.Int("candidates", len(pool)),
		zap.Int("results", res.Len()),
		zap.Int("max_results", n),
		zap.Bool("extraction_degraded", degraded))

	return res, nil
}

func observeStage(stage string, start time.Time) {
	metrics.RecommendStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
