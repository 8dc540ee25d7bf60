package skillsift

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/skillsift/internal/domain"
	domrec "github.com/kailas-cloud/skillsift/internal/domain/recommend"
)

// RecommendOptions tweak a single Recommend call. Nil means defaults.
type RecommendOptions struct {
	// MaxResults overrides the client-wide default result count.
	// Values above the configured cap are clamped to it.
	MaxResults int
}

// Recommendation is a single ranked assessment.
type Recommendation struct {
	ID              string
	Name            string
	URL             string
	Score           float64
	DurationMinutes *int // nil when the catalog does not know the duration
	Categories      []string
	RemoteTesting   bool
	AdaptiveSupport bool
	Kind            string // "individual" or "prepackaged"
}

// Result is a ranked recommendation set for one query.
type Result struct {
	Query           string
	Recommendations []Recommendation
	EmbeddingTokens int // tokens spent embedding the query; 0 on a cache hit
}

// Recommend ranks catalog assessments against free-text query text.
// Constraint extraction runs in rule mode: duration limits and category
// hints are parsed from the query itself, without an LLM pass.
func (c *Client) Recommend(ctx context.Context, query string, opts *RecommendOptions) (_ *Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("recommend", start, err) }()

	maxResults := 0
	if opts != nil {
		maxResults = opts.MaxResults
	}

	ctx, usage := domain.NewContextWithUsage(ctx)

	res, err := c.engine.Recommend(ctx, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}

	items := res.Items()
	out := &Result{
		Query:           query,
		Recommendations: make([]Recommendation, 0, len(items)),
	}
	for _, it := range items {
		out.Recommendations = append(out.Recommendations, toRecommendation(it))
	}
	if usage.Used {
		out.EmbeddingTokens = usage.TotalTokens
	}
	return out, nil
}

func toRecommendation(it domrec.Item) Recommendation {
	rec := it.Record()
	r := Recommendation{
		ID:              rec.ID(),
		Name:            rec.Name(),
		URL:             rec.URL(),
		Score:           it.Score(),
		RemoteTesting:   rec.RemoteTesting(),
		AdaptiveSupport: rec.AdaptiveSupport(),
		Kind:            string(rec.Kind()),
	}
	if d, ok := rec.Duration(); ok {
		r.DurationMinutes = &d
	}
	cats := rec.Categories()
	r.Categories = make([]string, len(cats))
	for i, cat := range cats {
		r.Categories[i] = string(cat)
	}
	return r
}

// recommendUseCase is the internal interface for the recommendation engine.
type recommendUseCase interface {
	Recommend(ctx context.Context, queryText string, maxResultsOverride int) (domrec.Result, error)
}
