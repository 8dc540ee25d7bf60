package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCatalog signals a search against a catalog that was never loaded.
	ErrEmptyCatalog = errors.New("catalog is empty")
	// ErrInvalidQuery signals blank or whitespace-only query text.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidSnapshot signals an unreadable or structurally broken catalog snapshot.
	ErrInvalidSnapshot = errors.New("invalid catalog snapshot")
	// ErrVectorDimMismatch signals a vector of the wrong dimensionality.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrEmbeddingUnavailable signals that the embedding provider stayed
	// unreachable after the retry budget was spent.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrEmbeddingProviderError signals a non-retryable embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrRateLimited signals a provider rate limit hit.
	ErrRateLimited = errors.New("rate limited")

	// ErrCacheUnavailable signals an unreachable embedding cache store.
	// Warn-only: callers treat it as a miss, it never fails a request.
	ErrCacheUnavailable = errors.New("embedding cache unavailable")
)

// ConstraintExtractionError reports a failed stage of query constraint
// extraction. It is recoverable: callers log it and fall back to the
// rule-derived constraints instead of failing the request.
type ConstraintExtractionError struct {
	Stage string // "classify" or "expand"
	Err   error
}

func (e *ConstraintExtractionError) Error() string {
	return fmt.Sprintf("constraint extraction %s: %v", e.Stage, e.Err)
}

func (e *ConstraintExtractionError) Unwrap() error { return e.Err }

// NewConstraintExtractionError wraps err with the extraction stage name.
func NewConstraintExtractionError(stage string, err error) error {
	return &ConstraintExtractionError{Stage: stage, Err: err}
}
