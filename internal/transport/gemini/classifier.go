package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/skillsift/internal/domain"
)

// generateAPI is the slice of the genai SDK the classifier uses (test seam).
type generateAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Classifier runs structured-output generation against the Gemini API.
// Used for constraint extraction and query expansion.
type Classifier struct {
	api         generateAPI
	model       string
	temperature float32
	logger      *zap.Logger
}

// ClassifierConfig holds the Gemini generation settings.
type ClassifierConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	Logger      *zap.Logger
}

// NewClassifier creates a Gemini generation provider.
func NewClassifier(ctx context.Context, cfg *ClassifierConfig) (*Classifier, error) {
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

	return &Classifier{
		api:         client.Models,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}, nil
}

// Complete sends the prompt and returns the raw generated text. JSON output
// is requested via the response MIME type; callers still strip fences and
// validate.
func (c *Classifier) Complete(ctx context.Context, prompt string) (string, error) {
	temp := c.temperature
	config := &genai.GenerateContentConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
	}

	resp, err := c.api.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", parseGenerateError(err)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

// parseGenerateError maps upstream 429s to domain.ErrRateLimited and keeps
// the rest readable. Generation failures are absorbed by callers, so no
// provider sentinel is attached.
func parseGenerateError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return fmt.Errorf("generation API error %d (%s): %s: %w",
				apiErr.Code, apiErr.Status, apiErr.Message, domain.ErrRateLimited)
		}
		return fmt.Errorf("generation API error %d (%s): %s",
			apiErr.Code, apiErr.Status, apiErr.Message)
	}

	return fmt.Errorf("generation request failed: %w", err)
}
