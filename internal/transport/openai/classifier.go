package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/skillsift/internal/domain"
)

// Classifier runs structured-output chat completions against the
// OpenAI-compatible API. Used for constraint extraction and query expansion.
type Classifier struct {
	client      *openai.Client
	model       string
	temperature float32
	provider    string
	logger      *zap.Logger
}

// ClassifierConfig holds the chat completion settings.
type ClassifierConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Provider    string
	Logger      *zap.Logger
}

// NewClassifier creates an OpenAI-compatible chat completion provider.
func NewClassifier(cfg *ClassifierConfig) *Classifier {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Classifier{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		provider:    cfg.Provider,
		logger:      cfg.Logger,
	}
}

// Complete sends the prompt and returns the raw completion text. JSON mode is
// requested, but callers still strip fences and validate: not every
// OpenAI-compatible backend honors response_format.
func (c *Classifier) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", parseCompletionError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	return resp.Choices[0].Message.Content, nil
}

// parseCompletionError maps upstream 429s to domain.ErrRateLimited and keeps
// the rest readable. Completion failures are absorbed by callers, so no
// provider sentinel is attached.
func parseCompletionError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("completion API error %d: %w", reqErr.HTTPStatusCode, domain.ErrRateLimited)
		}
		return fmt.Errorf("completion API error %d: %s", reqErr.HTTPStatusCode, string(reqErr.Body))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("completion API error %d: %s: %w",
				apiErr.HTTPStatusCode, apiErr.Message, domain.ErrRateLimited)
		}
		return fmt.Errorf("completion API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}

	return fmt.Errorf("completion request failed: %w", err)
}
