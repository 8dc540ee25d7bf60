package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/skillsift/internal/domain"
	"github.com/kailas-cloud/skillsift/internal/metrics"
)

// Task types for the Gemini embedding API. Queries and documents embed into
// the same space from different sides.
const (
	TaskTypeQuery    = "RETRIEVAL_QUERY"
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
)

// embedAPI is the slice of the genai SDK the embedder uses (test seam).
type embedAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
	Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)
}

// Embedder is an embedding provider using the Gemini API.
type Embedder struct {
	api        embedAPI
	model      string
	dimensions int
	taskType   string
	provider   string
	logger     *zap.Logger
}

// EmbedderConfig holds the Gemini embedding settings.
type EmbedderConfig struct {
	APIKey     string
	Model      string
	Dimensions int
	TaskType   string
	Provider   string
	Logger     *zap.Logger
}

// NewEmbedder creates a Gemini embedding provider.
func NewEmbedder(ctx context.Context, cfg *EmbedderConfig) (*Embedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	taskType := cfg.TaskType
	if taskType == "" {
		taskType = TaskTypeQuery
	}

	return &Embedder{
		api:        client.Models,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		taskType:   taskType,
		provider:   cfg.Provider,
		logger:     cfg.Logger,
	}, nil
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.embed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder via a single multi-content request.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	return e.embed(ctx, texts)
}

func (e *Embedder) embed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: t}}}
	}

	config := &genai.EmbedContentConfig{TaskType: e.taskType}
	if e.dimensions > 0 {
		d := int32(e.dimensions)
		config.OutputDimensionality = &d
	}

	start := time.Now()

	resp, err := e.api.EmbedContent(ctx, e.model, contents, config)

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, "api_error").Inc()
		return domain.BatchEmbeddingResult{}, parseAPIError(err)
	}

	if len(resp.Embeddings) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, "count_mismatch").Inc()
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"embedding count mismatch: sent %d texts, got %d vectors: %w",
			len(texts), len(resp.Embeddings), domain.ErrEmbeddingProviderError)
	}

	embeddings := make([][]float32, len(texts))
	var totalTokens int
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
			metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, "empty_response").Inc()
			return domain.BatchEmbeddingResult{}, fmt.Errorf(
				"empty embedding at index %d: %w", i, domain.ErrEmbeddingProviderError)
		}
		embeddings[i] = emb.Values
		// Statistics приходит только с Vertex backend
		if emb.Statistics != nil {
			totalTokens += int(emb.Statistics.TokenCount)
		}
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, e.model).Observe(duration.Seconds())
	if totalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, e.model, "prompt").Add(float64(totalTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(e.provider, e.model, "total").Add(float64(totalTokens))
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: totalTokens,
		TotalTokens:  totalTokens,
	}, nil
}

// HealthCheck verifies API availability via model metadata (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.api.Get(ctx, e.model, nil); err != nil {
		return fmt.Errorf("get model: %w", err)
	}
	return nil
}

// parseAPIError maps Gemini API errors to domain sentinels. Upstream 429s map
// to domain.ErrRateLimited; everything else is wrapped with
// domain.ErrEmbeddingProviderError for correct 502 mapping.
func parseAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return fmt.Errorf("embedding API error %d (%s): %s: %w",
				apiErr.Code, apiErr.Status, apiErr.Message, domain.ErrRateLimited)
		}
		return fmt.Errorf("embedding API error %d (%s): %s: %w",
			apiErr.Code, apiErr.Status, apiErr.Message, domain.ErrEmbeddingProviderError)
	}

	return fmt.Errorf("embedding request failed: %v: %w", err, domain.ErrEmbeddingProviderError)
}
