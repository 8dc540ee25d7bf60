package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "embed"

	"go.uber.org/zap"

	"github.com/kailas-cloud/skillsift/internal/domain"
	"github.com/kailas-cloud/skillsift/internal/domain/assessment"
	"github.com/kailas-cloud/skillsift/internal/domain/recommend"
	"github.com/kailas-cloud/skillsift/internal/metrics"
	"github.com/kailas-cloud/skillsift/internal/retry"
)

//go:embed prompt.md
var promptTemplate string

// DefaultTimeout bounds one classification attempt. The rule pass already
// produced usable constraints by the time this fires.
const DefaultTimeout = 3 * time.Second

// Classifier is the consumer interface for LLM-backed extraction (ISP).
// Implementations return raw model output; parsing stays here.
type Classifier interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds the extraction settings.
type Config struct {
	Timeout time.Duration
	Retry   retry.Config
}

// Service turns free-text queries into structured constraints. The rule pass
// always runs; a configured classifier refines it. Classification failures
// degrade to the rule result and never fail the request.
type Service struct {
	classifier Classifier
	retrier    *retry.Retrier
	timeout    time.Duration
	logger     *zap.Logger
}

// New creates an extraction service. A nil classifier yields a purely
// deterministic rule-based extractor.
func New(classifier Classifier, cfg Config, logger *zap.Logger) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		classifier: classifier,
		retrier:    retry.New(cfg.Retry, retryableClassifyError),
		timeout:    timeout,
		logger:     logger,
	}
}

func retryableClassifyError(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Extract parses the query into constraints. Never returns an error: the
// worst outcome is the rule-derived (possibly empty) constraint set, reported
// by the degraded flag so callers can count it.
func (s *Service) Extract(ctx context.Context, query string) (recommend.Constraints, bool) {
	cons := rulesPass(query)

	if s.classifier == nil {
		return cons, false
	}

	llmCons, err := s.classify(ctx, query)
	if err != nil {
		reason := fallbackReason(err)
		metrics.ExtractionFallbacksTotal.WithLabelValues(reason).Inc()
		s.logger.Warn("Constraint classification failed, using rule extraction",
			zap.String("reason", reason),
			zap.Error(domain.NewConstraintExtractionError("classify", err)),
		)
		return cons, true
	}

	// LLM wins where it produced a value; the rule result fills the gaps.
	return cons.Merge(llmCons), false
}

// classify runs the LLM pass with per-attempt timeout and retry. A fresh
// completion can fix malformed output, so parsing is inside the attempt.
func (s *Service) classify(ctx context.Context, query string) (recommend.Constraints, error) {
	prompt := strings.ReplaceAll(promptTemplate, "{{QUERY}}", query)

	return retry.Do(ctx, s.retrier, func(ctx context.Context) (recommend.Constraints, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		raw, err := s.classifier.Complete(attemptCtx, prompt)
		if err != nil {
			return recommend.Constraints{}, fmt.Errorf("complete: %w", err)
		}
		return parseConstraints(raw)
	})
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, errMalformedResponse):
		return "malformed"
	default:
		return "provider_error"
	}
}

var errMalformedResponse = errors.New("malformed classifier response")

// parseConstraints decodes the model output leniently: fenced JSON is
// unwrapped, surrounding prose is cut at the outermost braces, and numbers
// arriving as strings are coerced.
func parseConstraints(raw string) (recommend.Constraints, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return recommend.Constraints{}, fmt.Errorf("%w: no JSON object in %q", errMalformedResponse, truncate(raw, 120))
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return recommend.Constraints{}, fmt.Errorf("%w: %v", errMalformedResponse, err)
	}

	cons := recommend.Constraints{}
	if minutes, ok := coerceInt(data["max_duration_minutes"]); ok {
		cons = cons.WithMaxDuration(minutes)
	}
	cons = cons.WithCategories(coerceCategories(data["categories"]))
	if n, ok := coerceInt(data["max_results"]); ok {
		cons = cons.WithMaxResults(n)
	}
	return cons, nil
}

// extractJSON strips markdown fences and cuts the text to the outermost
// braces. Returns "" when no object remains.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return ""
	}
	return strings.TrimSpace(raw[start : end+1])
}

func coerceInt(v any) (int, bool) {
	switch val := v.(type) {
	case float64:
		return int(val), true
	case int:
		return val, true
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" || strings.EqualFold(trimmed, "null") {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}

func coerceCategories(v any) []assessment.Category {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var cats []assessment.Category
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if cat, ok := assessment.ParseCategory(s); ok {
			cats = append(cats, cat)
		}
	}
	return cats
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
