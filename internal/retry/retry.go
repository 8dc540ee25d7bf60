package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Config controls the retry schedule.
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the initial one.
	MaxAttempts int
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration
	// Multiplier is the factor by which the delay grows per attempt.
	Multiplier float64
	// Jitter adds randomness to delays (0-1, fraction of the delay).
	Jitter float64
}

// DefaultConfig allows a single retry with a short backoff. Provider calls
// budget their own per-attempt timeouts.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  2,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// Retrier executes functions with backoff between attempts.
type Retrier struct {
	cfg       Config
	retryable func(error) bool
}

// New creates a retrier. retryable decides which errors are worth another
// attempt; nil retries everything.
func New(cfg Config, retryable func(error) bool) *Retrier {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Retrier{cfg: cfg, retryable: retryable}
}

// Do executes fn with the retrier's schedule, returning the first success or
// the last error once attempts are exhausted. Context cancellation during
// backoff returns ctx.Err.
func Do[T any](ctx context.Context, r *Retrier, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(r.delay(attempt)):
			}
		}

		var err error
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if r.retryable != nil && !r.retryable(err) {
			return result, err
		}
	}

	return result, lastErr
}

func (r *Retrier) delay(attempt int) time.Duration {
	delay := float64(r.cfg.InitialDelay) * math.Pow(r.cfg.Multiplier, float64(attempt-1))
	if delay > float64(r.cfg.MaxDelay) {
		delay = float64(r.cfg.MaxDelay)
	}
	if r.cfg.Jitter > 0 {
		delay += delay * r.cfg.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(delay)
}
