package eval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel query replay. Queries share only the
// catalog read path, so the limit mostly protects the embedding provider.
const DefaultConcurrency = 4

// DefaultKs are the cutoffs evaluated when the caller names none.
var DefaultKs = []int{3, 5, 10}

// RunOptions tunes one evaluation run.
type RunOptions struct {
	Ks          []int
	Concurrency int
}

// MetricRow holds both retrieval metrics at one cutoff.
type MetricRow struct {
	K      int     `json:"k"`
	Recall float64 `json:"recall"`
	AP     float64 `json:"ap"`
}

// QueryResult is the per-query detail row of a run.
type QueryResult struct {
	Query    string      `json:"query"`
	Relevant int         `json:"relevant"`
	Returned []string    `json:"returned,omitempty"`
	Metrics  []MetricRow `json:"metrics,omitempty"`
	Excluded bool        `json:"excluded,omitempty"`
	Failed   bool        `json:"failed,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Report is the full outcome of one evaluation run. Metric values are
// deterministic for a fixed catalog generation and deterministic pipeline.
type Report struct {
	RunID             string        `json:"run_id"`
	GeneratedAt       time.Time     `json:"generated_at"`
	CatalogGeneration uint64        `json:"catalog_generation"`
	CatalogRecords    int           `json:"catalog_records"`
	Ks                []int         `json:"ks"`
	Queries           int           `json:"queries"`
	Evaluated         int           `json:"evaluated"`
	Excluded          int           `json:"excluded"`
	Failed            int           `json:"failed"`
	TookMS            int64         `json:"took_ms"`
	Means             []MetricRow   `json:"means"`
	Results           []QueryResult `json:"results"`
}

// WriteJSON writes the report to path with stable formatting.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// Harness replays a labeled query set through the pipeline and aggregates
// retrieval quality metrics.
type Harness struct {
	engine  Recommender
	catalog CatalogInfo
	logger  *zap.Logger
}

// New creates an evaluation harness. catalog may be nil when no generation
// stamp is available.
func New(engine Recommender, catalog CatalogInfo, logger *zap.Logger) *Harness {
	return &Harness{engine: engine, catalog: catalog, logger: logger}
}

// Run replays every labeled query and aggregates Recall@K and AP@K means.
// Engine failures mark their query failed; queries without relevant ids are
// excluded from averaging. Both stay out of the means but are counted.
func (h *Harness) Run(ctx context.Context, labeled []LabeledQuery, opts RunOptions) (*Report, error) {
	if len(labeled) == 0 {
		return nil, errors.New("labeled set is empty")
	}

	ks := normalizeKs(opts.Ks)
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	start := time.Now()
	rows := make([]QueryResult, len(labeled))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range labeled {
		g.Go(func() error {
			rows[i] = h.evalQuery(gctx, labeled[i], ks)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors, failures live in their rows

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluation interrupted: %w", err)
	}

	report := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Ks:          ks,
		Queries:     len(rows),
		Results:     rows,
	}
	if h.catalog != nil {
		st := h.catalog.Stats()
		report.CatalogGeneration = st.Generation
		report.CatalogRecords = st.Records
	}

	recallSum := make([]float64, len(ks))
	apSum := make([]float64, len(ks))
	for i := range rows {
		switch {
		case rows[i].Failed:
			report.Failed++
		case rows[i].Excluded:
			report.Excluded++
		default:
			report.Evaluated++
			for j := range ks {
				recallSum[j] += rows[i].Metrics[j].Recall
				apSum[j] += rows[i].Metrics[j].AP
			}
		}
	}

	report.Means = make([]MetricRow, len(ks))
	for j, k := range ks {
		row := MetricRow{K: k}
		if report.Evaluated > 0 {
			row.Recall = recallSum[j] / float64(report.Evaluated)
			row.AP = apSum[j] / float64(report.Evaluated)
		}
		report.Means[j] = row
	}
	report.TookMS = time.Since(start).Milliseconds()

	h.logger.Info("Evaluation run finished",
		zap.String("run_id", report.RunID),
		zap.Int("queries", report.Queries),
		zap.Int("evaluated", report.Evaluated),
		zap.Int("excluded", report.Excluded),
		zap.Int("failed", report.Failed),
		zap.Duration("took", time.Since(start)))

	return report, nil
}

// evalQuery scores one labeled query. Zero-relevant queries skip the
// pipeline call entirely: they cannot contribute to any metric.
func (h *Harness) evalQuery(ctx context.Context, lq LabeledQuery, ks []int) QueryResult {
	row := QueryResult{Query: lq.Query}

	relevant := make(map[string]struct{}, len(lq.RelevantIDs))
	for _, id := range lq.RelevantIDs {
		relevant[id] = struct{}{}
	}
	row.Relevant = len(relevant)

	if len(relevant) == 0 {
		row.Excluded = true
		h.logger.Warn("Labeled query has no relevant records, excluding from averages",
			zap.String("query", snippet(lq.Query)))
		return row
	}

	maxK := ks[len(ks)-1]
	res, err := h.engine.Recommend(ctx, lq.Query, maxK)
	if err != nil {
		row.Failed = true
		row.Error = err.Error()
		h.logger.Warn("Evaluation query failed",
			zap.String("query", snippet(lq.Query)), zap.Error(err))
		return row
	}
	row.Returned = res.IDs()

	row.Metrics = make([]MetricRow, 0, len(ks))
	for _, k := range ks {
		row.Metrics = append(row.Metrics, MetricRow{
			K:      k,
			Recall: RecallAtK(row.Returned, relevant, k),
			AP:     APAtK(row.Returned, relevant, k),
		})
	}
	return row
}

// normalizeKs sorts cutoffs ascending, drops non-positive values and
// duplicates, and falls back to DefaultKs when nothing survives.
func normalizeKs(ks []int) []int {
	seen := make(map[int]struct{}, len(ks))
	out := make([]int, 0, len(ks))
	for _, k := range ks {
		if k <= 0 {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	if len(out) == 0 {
		return append([]int(nil), DefaultKs...)
	}
	sort.Ints(out)
	return out
}

func snippet(s string) string {
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
