package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/skillsift/internal/catalog"
	"github.com/kailas-cloud/skillsift/internal/domain/assessment"
	domrec "github.com/kailas-cloud/skillsift/internal/domain/recommend"
	"github.com/kailas-cloud/skillsift/internal/usecase/eval"
	skillsift "github.com/kailas-cloud/skillsift/pkg/sdk"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a labeled query set and report retrieval quality",
	Long: `Replay a labeled query set through the recommendation pipeline and
aggregate Recall@K and MAP@K over the cutoffs given with --k.

The labels file is a JSON array of {"query": ..., "relevant_ids": [...]}
entries. The catalog snapshot must already carry embeddings (see the
embed command). The API key is read from OPENAI_API_KEY or
GEMINI_API_KEY depending on --provider.

Examples:
  sifteval run --labels labels.json --catalog snapshot.json --out results.json
  sifteval run --labels labels.json --catalog snapshot.json --k 5,10 --provider gemini`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		labelsPath, _ := cmd.Flags().GetString("labels")
		catalogPath, _ := cmd.Flags().GetString("catalog")
		kStr, _ := cmd.Flags().GetString("k")
		outPath, _ := cmd.Flags().GetString("out")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger, err := cliLogger(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		labeled, err := eval.LoadLabels(labelsPath)
		if err != nil {
			return err
		}

		ks, err := parseKs(kStr)
		if err != nil {
			return err
		}

		opts, err := clientOptions(cmd, catalogPath, ks)
		if err != nil {
			return err
		}

		client, err := skillsift.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("building client: %w", err)
		}
		defer client.Close()

		harness := eval.New(
			&sdkRecommender{client: client},
			&sdkCatalogInfo{client: client},
			logger,
		)
		report, err := harness.Run(ctx, labeled, eval.RunOptions{
			Ks:          ks,
			Concurrency: concurrency,
		})
		if err != nil {
			return err
		}

		if outPath != "" {
			if err := report.WriteJSON(outPath); err != nil {
				return err
			}
		}

		printSummary(os.Stdout, report)
		return nil
	},
}

func init() {
	runCmd.Flags().String("labels", "", "labeled query set JSON file (required)")
	runCmd.Flags().String("catalog", "", "catalog snapshot with embeddings (required)")
	runCmd.Flags().String("k", "3,5,10", "comma-separated cutoffs")
	runCmd.Flags().String("out", "", "write the full report JSON to this path")
	runCmd.Flags().Int("concurrency", eval.DefaultConcurrency, "parallel query replay")
	runCmd.Flags().String("provider", "openai", `embedding provider: "openai", "gemini" or any OpenAI-compatible name`)
	runCmd.Flags().String("model", "", "embedding model (required)")
	runCmd.Flags().String("base-url", "", "override the OpenAI-compatible endpoint")
	runCmd.Flags().Int("dimensions", 0, "embedding dimensionality, 0 for the default")
	runCmd.Flags().String("instruction", "", "query instruction prefix for OpenAI-compatible providers")
	runCmd.Flags().String("cache", "", "valkey address for the embedding cache, speeds up reruns")
	runCmd.Flags().String("cache-password", "", "valkey password")

	_ = runCmd.MarkFlagRequired("labels")
	_ = runCmd.MarkFlagRequired("catalog")
	_ = runCmd.MarkFlagRequired("model")
}

// clientOptions assembles SDK options from command flags. The result cap is
// raised to the largest cutoff so deep-K runs are not clipped.
func clientOptions(cmd *cobra.Command, catalogPath string, ks []int) ([]skillsift.Option, error) {
	provider, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")
	baseURL, _ := cmd.Flags().GetString("base-url")
	dimensions, _ := cmd.Flags().GetInt("dimensions")
	instruction, _ := cmd.Flags().GetString("instruction")
	cacheAddr, _ := cmd.Flags().GetString("cache")
	cachePassword, _ := cmd.Flags().GetString("cache-password")

	apiKey, err := resolveAPIKey(provider)
	if err != nil {
		return nil, err
	}

	opts := []skillsift.Option{
		skillsift.WithCatalogSnapshot(catalogPath),
	}
	if provider == "gemini" {
		opts = append(opts, skillsift.WithGemini(apiKey, model))
	} else {
		opts = append(opts, skillsift.WithOpenAI(apiKey, model))
	}
	if baseURL != "" {
		opts = append(opts, skillsift.WithBaseURL(baseURL))
	}
	if dimensions > 0 {
		opts = append(opts, skillsift.WithVectorDimensions(dimensions))
	}
	if instruction != "" {
		opts = append(opts, skillsift.WithQueryInstruction(instruction))
	}
	if cacheAddr != "" {
		opts = append(opts, skillsift.WithValkeyCache(cacheAddr, cachePassword))
	}
	if maxK := ks[len(ks)-1]; maxK > domrec.MaxResultsCap {
		opts = append(opts, skillsift.WithRecommendDefaults(0, maxK))
	}
	return opts, nil
}

// resolveAPIKey reads the provider key from the environment. Gemini keys and
// OpenAI-compatible keys live in different variables.
func resolveAPIKey(provider string) (string, error) {
	name := "OPENAI_API_KEY"
	if provider == "gemini" {
		name = "GEMINI_API_KEY"
	}
	key := os.Getenv(name)
	if key == "" {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}
	return key, nil
}

// parseKs parses the --k flag. Ordering and deduplication happen in the
// harness; this only validates the numbers.
func parseKs(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	ks := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		k, err := strconv.Atoi(p)
		if err != nil || k <= 0 {
			return nil, fmt.Errorf("invalid cutoff %q in --k", p)
		}
		ks = append(ks, k)
	}
	if len(ks) == 0 {
		return nil, fmt.Errorf("--k names no cutoffs")
	}
	sort.Ints(ks)
	return ks, nil
}

func printSummary(w io.Writer, report *eval.Report) {
	fmt.Fprintf(w, "run %s over catalog generation %d (%d records)\n",
		report.RunID, report.CatalogGeneration, report.CatalogRecords)
	fmt.Fprintf(w, "queries %d: evaluated %d, excluded %d, failed %d, took %dms\n\n",
		report.Queries, report.Evaluated, report.Excluded, report.Failed, report.TookMS)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "K\tRecall@K\tMAP@K")
	for _, row := range report.Means {
		fmt.Fprintf(tw, "%d\t%.4f\t%.4f\n", row.K, row.Recall, row.AP)
	}
	_ = tw.Flush()
}

// --- SDK adapters ---

// sdkRecommender replays queries through the embedded client. The harness
// consumes ranked ids only, so a minimal record carries them back.
type sdkRecommender struct {
	client *skillsift.Client
}

func (r *sdkRecommender) Recommend(
	ctx context.Context, queryText string, maxResultsOverride int,
) (domrec.Result, error) {
	res, err := r.client.Recommend(ctx, queryText, &skillsift.RecommendOptions{
		MaxResults: maxResultsOverride,
	})
	if err != nil {
		return domrec.Result{}, err
	}

	items := make([]domrec.Item, 0, len(res.Recommendations))
	for _, rec := range res.Recommendations {
		a := assessment.Reconstruct(assessment.Params{ID: rec.ID, Name: rec.Name})
		items = append(items, domrec.NewItem(a, rec.Score))
	}
	return domrec.NewResult(items), nil
}

// sdkCatalogInfo stamps eval reports with the serving catalog generation.
type sdkCatalogInfo struct {
	client *skillsift.Client
}

func (c *sdkCatalogInfo) Stats() catalog.Stats {
	h := c.client.Health(context.Background())
	return catalog.Stats{Generation: h.CatalogGeneration, Records: h.CatalogRecords}
}
