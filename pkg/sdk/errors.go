package skillsift

import "github.com/kailas-cloud/skillsift/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidQuery           = domain.ErrInvalidQuery
	ErrEmptyCatalog           = domain.ErrEmptyCatalog
	ErrInvalidSnapshot        = domain.ErrInvalidSnapshot
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
	ErrEmbeddingUnavailable   = domain.ErrEmbeddingUnavailable
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrEmbeddingQuotaExceeded = domain.ErrEmbeddingQuotaExceeded
	ErrRateLimited            = domain.ErrRateLimited
)
