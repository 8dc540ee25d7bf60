package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/skillsift/internal/catalog"
	"github.com/kailas-cloud/skillsift/internal/domain"
	"github.com/kailas-cloud/skillsift/internal/retry"
	geminiTransport "github.com/kailas-cloud/skillsift/internal/transport/gemini"
	openaiTransport "github.com/kailas-cloud/skillsift/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/skillsift/internal/usecase/embedding"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Precompute document embeddings for a catalog snapshot",
	Long: `Precompute document embeddings for a catalog snapshot.

Each record is embedded from its name and description and written back
with the vector attached. Gemini embeds with the document task type;
OpenAI-compatible providers can prepend a document instruction with
--instruction. The API key is read from OPENAI_API_KEY or
GEMINI_API_KEY depending on --provider.

Examples:
  sifteval embed --in catalog.json --out snapshot.json --model text-embedding-3-small
  sifteval embed --in catalog.json --out snapshot.json --provider gemini --model gemini-embedding-001 --dimensions 768`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		inPath, _ := cmd.Flags().GetString("in")
		outPath, _ := cmd.Flags().GetString("out")
		dimensions, _ := cmd.Flags().GetInt("dimensions")
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		if batchSize <= 0 {
			return fmt.Errorf("--batch-size must be positive")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger, err := cliLogger(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		records, err := catalog.ReadSnapshot(inPath)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("snapshot %s has no records", inPath)
		}

		// Validate before spending tokens: a malformed record aborts the
		// run with nothing written.
		texts := make([]string, len(records))
		for i, rec := range records {
			a, err := rec.ToAssessment()
			if err != nil {
				return fmt.Errorf("record %d (%q): %w", i, rec.ID, err)
			}
			texts[i] = a.SearchText()
		}

		embedder, err := documentEmbedder(ctx, cmd, logger)
		if err != nil {
			return err
		}

		var totalTokens, wantDim int
		for start := 0; start < len(texts); start += batchSize {
			end := min(start+batchSize, len(texts))

			res, err := embedder.BatchEmbed(ctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding records %d-%d: %w", start, end-1, err)
			}
			if len(res.Embeddings) != end-start {
				return fmt.Errorf("provider returned %d embeddings for %d inputs",
					len(res.Embeddings), end-start)
			}

			for j, vec := range res.Embeddings {
				if wantDim == 0 {
					wantDim = len(vec)
					if dimensions > 0 && wantDim != dimensions {
						return fmt.Errorf("provider returned %d dimensions, want %d", wantDim, dimensions)
					}
				}
				if len(vec) != wantDim {
					return fmt.Errorf("record %q embedding has %d dimensions, others have %d",
						records[start+j].ID, len(vec), wantDim)
				}
				records[start+j].Embedding = vec
			}
			totalTokens += res.TotalTokens

			logger.Debug("Embedded snapshot chunk",
				zap.Int("from", start), zap.Int("to", end-1), zap.Int("tokens", res.TotalTokens))
		}

		if err := catalog.WriteSnapshot(outPath, records); err != nil {
			return err
		}

		fmt.Printf("embedded %d records (%d dimensions, %d tokens) into %s\n",
			len(records), wantDim, totalTokens, outPath)
		return nil
	},
}

func init() {
	embedCmd.Flags().String("in", "", "catalog snapshot to embed (required)")
	embedCmd.Flags().String("out", "", "output snapshot path (required)")
	embedCmd.Flags().String("provider", "openai", `embedding provider: "openai", "gemini" or any OpenAI-compatible name`)
	embedCmd.Flags().String("model", "", "embedding model (required)")
	embedCmd.Flags().String("base-url", "", "override the OpenAI-compatible endpoint")
	embedCmd.Flags().Int("dimensions", 0, "expected embedding dimensionality, 0 to accept the model default")
	embedCmd.Flags().String("instruction", "", "document instruction prefix for OpenAI-compatible providers")
	embedCmd.Flags().Int("batch-size", 64, "records per provider call")

	_ = embedCmd.MarkFlagRequired("in")
	_ = embedCmd.MarkFlagRequired("out")
	_ = embedCmd.MarkFlagRequired("model")
}

// documentEmbedder builds the document-side chain: provider -> Retrying,
// plus the instruction prefix for OpenAI-compatible providers. No cache and
// no budget: snapshot embedding is a one-shot offline pass.
func documentEmbedder(ctx context.Context, cmd *cobra.Command, logger *zap.Logger) (domain.BatchEmbedder, error) {
	provider, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")
	baseURL, _ := cmd.Flags().GetString("base-url")
	dimensions, _ := cmd.Flags().GetInt("dimensions")
	instruction, _ := cmd.Flags().GetString("instruction")

	apiKey, err := resolveAPIKey(provider)
	if err != nil {
		return nil, err
	}

	var base domain.Embedder
	if provider == "gemini" {
		emb, err := geminiTransport.NewEmbedder(ctx, &geminiTransport.EmbedderConfig{
			APIKey:     apiKey,
			Model:      model,
			Dimensions: dimensions,
			TaskType:   geminiTransport.TaskTypeDocument,
			Provider:   provider,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		base = emb
	} else {
		base = openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     apiKey,
			BaseURL:    baseURL,
			Model:      model,
			Dimensions: dimensions,
			Provider:   provider,
			Logger:     logger,
		})
	}

	retrying := embeddinguc.NewRetryingEmbedder(base, retry.DefaultConfig(), 0, logger)
	if provider != "gemini" && instruction != "" {
		return domain.NewInstructionEmbedder(retrying, instruction), nil
	}
	return retrying, nil
}
