package retrieve

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/skillsift/internal/domain"
	"github.com/kailas-cloud/skillsift/internal/domain/recommend"
)

//go:embed prompt.md
var expandPrompt string

const (
	// DefaultCandidateMultiplier oversizes the candidate pool relative to the
	// requested result count so the duration filter has slack to discard hits.
	DefaultCandidateMultiplier = 4

	// DefaultMinCandidates is the candidate pool floor for small result counts.
	DefaultMinCandidates = 30

	// terseQueryThreshold is the query length in bytes below which expansion
	// applies. Longer queries are embedded as-is.
	terseQueryThreshold = 120

	// expandedQueryMaxLen rejects runaway expander output.
	expandedQueryMaxLen = 512
)

// Config tunes the candidate pool. Zero values fall back to the defaults.
type Config struct {
	CandidateMultiplier int
	MinCandidates       int
}

// Service turns query text into a candidate pool: embed the query, then
// KNN over the serving catalog generation.
type Service struct {
	embed      Embedder
	searcher   Searcher
	expander   Expander
	multiplier int
	floor      int
	logger     *zap.Logger
}

// New creates a retrieval service. A nil expander disables query expansion.
func New(embed Embedder, searcher Searcher, expander Expander, cfg Config, logger *zap.Logger) *Service {
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = DefaultCandidateMultiplier
	}
	if cfg.MinCandidates <= 0 {
		cfg.MinCandidates = DefaultMinCandidates
	}
	return &Service{
		embed:      embed,
		searcher:   searcher,
		expander:   expander,
		multiplier: cfg.CandidateMultiplier,
		floor:      cfg.MinCandidates,
		logger:     logger,
	}
}

// TopNFor sizes the candidate pool for a resolved result count.
func (s *Service) TopNFor(maxResults int) int {
	n := maxResults * s.multiplier
	if n < s.floor {
		n = s.floor
	}
	return n
}

// Retrieve embeds the query text and returns the topN most similar catalog
// records, best first.
func (s *Service) Retrieve(ctx context.Context, queryText string, topN int) ([]recommend.Candidate, error) {
	text := s.expandQuery(ctx, queryText)

	embResult, err := s.embed.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(embResult.TotalTokens)

	candidates, err := s.searcher.Search(embResult.Embedding, topN)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}
	return candidates, nil
}

// expandQuery rewrites terse query text into richer retrieval text. Any
// expander failure degrades to the original text, never to a request failure.
func (s *Service) expandQuery(ctx context.Context, queryText string) string {
	if s.expander == nil || len(queryText) >= terseQueryThreshold {
		return queryText
	}

	out, err := s.expander.Complete(ctx, strings.ReplaceAll(expandPrompt, "{{QUERY}}", queryText))
	if err != nil {
		s.logger.Warn("Query expansion failed, embedding original text",
			zap.Error(domain.NewConstraintExtractionError("expand", err)))
		return queryText
	}

	expanded := strings.TrimSpace(out)
	if expanded == "" || len(expanded) > expandedQueryMaxLen {
		s.logger.Warn("Query expansion returned unusable text, embedding original",
			zap.Int("expanded_len", len(expanded)))
		return queryText
	}

	s.logger.Debug("Query expanded for retrieval",
		zap.Int("original_len", len(queryText)), zap.Int("expanded_len", len(expanded)))
	return expanded
}
