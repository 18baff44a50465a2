package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig parametrizes backoff. Grounded on the teacher's
// internal/errors.RetryConfig, generalized with RetryableErrors/ShouldRetry
// predicates per spec.md §4.10.
type RetryConfig struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool

	// RetryableErrors is a set of error codes eligible for retry. An empty
	// set means "retry all".
	RetryableErrors map[string]bool
	// ShouldRetry, if set, is consulted in addition to RetryableErrors; both
	// must agree (or be absent) for a retry to proceed.
	ShouldRetry func(err error) bool
}

// DefaultRetryConfig matches the teacher's defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		BaseDelay:         1 * time.Second,
		MaxDelay:          16 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            false,
	}
}

func (c RetryConfig) delayFor(attempt int) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(c.BackoffMultiplier, float64(attempt))
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.Jitter {
		d *= 0.5 + rand.Float64()*0.5
	}
	return time.Duration(d)
}

func (c RetryConfig) permits(err error) bool {
	if len(c.RetryableErrors) > 0 {
		var rerr *RAGError
		code := ""
		if as, ok := err.(*RAGError); ok {
			rerr = as
			code = rerr.Code
		}
		if !c.RetryableErrors[code] {
			return false
		}
	}
	if c.ShouldRetry != nil && !c.ShouldRetry(err) {
		return false
	}
	return true
}

// Retry runs fn up to cfg.MaxRetries+1 times with exponential backoff.
// Cancellation is checked before each attempt and during sleep.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := RetryWithResult(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// RetryWithResult is the generic form of Retry, returning the successful
// value alongside nil error.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, New(ErrCodeRetryAborted, "retry aborted by cancellation", ctx.Err())
		default:
		}

		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if !cfg.permits(err) {
			return zero, err
		}

		if attempt == cfg.MaxRetries {
			break
		}

		delay := cfg.delayFor(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, New(ErrCodeRetryAborted, "retry aborted during backoff", ctx.Err())
		case <-timer.C:
		}
	}

	return zero, New(ErrCodeRetryExhausted, "retry attempts exhausted", lastErr).
		WithDetail("attempts", cfg.MaxRetries+1)
}
