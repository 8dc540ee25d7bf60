package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/skillsift/internal/domain"
	"github.com/kailas-cloud/skillsift/internal/retry"
)

// DefaultAttemptTimeout bounds a single provider call. The outer request
// deadline still applies on top.
const DefaultAttemptTimeout = 5 * time.Second

// RetryingEmbedder retries transient provider failures with backoff. After
// attempts are exhausted the error is wrapped with ErrEmbeddingUnavailable so
// the transport maps it to 502. Sits directly above the provider transport:
// cache hits never reach it.
type RetryingEmbedder struct {
	inner          domain.Embedder
	retrier        *retry.Retrier
	attemptTimeout time.Duration
	logger         *zap.Logger
}

// NewRetryingEmbedder creates a retrying decorator. A zero attemptTimeout
// falls back to DefaultAttemptTimeout.
func NewRetryingEmbedder(
	inner domain.Embedder, cfg retry.Config,
	attemptTimeout time.Duration, logger *zap.Logger,
) *RetryingEmbedder {
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}
	return &RetryingEmbedder{
		inner:          inner,
		retrier:        retry.New(cfg, retryableEmbedError),
		attemptTimeout: attemptTimeout,
		logger:         logger,
	}
}

// retryableEmbedError reports whether another attempt can help. Quota
// rejections and caller cancellation are final; provider errors, upstream
// rate limits, and attempt timeouts are transient.
func retryableEmbedError(err error) bool {
	if errors.Is(err, domain.ErrEmbeddingQuotaExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, domain.ErrEmbeddingProviderError) ||
		errors.Is(err, domain.ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Embed delegates with per-attempt timeout and retry.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	result, err := retry.Do(ctx, r.retrier, func(ctx context.Context) (domain.EmbeddingResult, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
		defer cancel()
		return r.inner.Embed(attemptCtx, text)
	})
	if err != nil {
		return domain.EmbeddingResult{}, r.classify(err)
	}
	return result, nil
}

// BatchEmbed delegates with per-attempt timeout and retry. The whole batch is
// retried as a unit.
func (r *RetryingEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	result, err := retry.Do(ctx, r.retrier, func(ctx context.Context) (domain.BatchEmbeddingResult, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
		defer cancel()
		return r.batchInner(attemptCtx, texts)
	})
	if err != nil {
		return domain.BatchEmbeddingResult{}, r.classify(err)
	}
	return result, nil
}

func (r *RetryingEmbedder) batchInner(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := r.inner.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts) //nolint:wrapcheck
	}
	return domain.BatchFallback(ctx, r.inner, texts) //nolint:wrapcheck
}

// classify converts an exhausted transient error into ErrEmbeddingUnavailable.
// Final errors (quota, cancellation) pass through unchanged.
func (r *RetryingEmbedder) classify(err error) error {
	if !retryableEmbedError(err) {
		return err
	}
	r.logger.Error("Embedding provider unavailable after retries", zap.Error(err))
	return fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
}
