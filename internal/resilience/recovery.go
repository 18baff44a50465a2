package resilience

import (
	"context"
	"time"
)

// RecoveryConfig composes a retry policy with an optional circuit breaker
// and fallback value (spec.md §4.12).
type RecoveryConfig[T any] struct {
	Retry           RetryConfig
	Breaker         *CircuitBreaker // nil disables breaker protection
	FallbackValue   T
	HasFallback     bool
	OnError         func(err error)
}

// RecoveryResult mirrors spec.md §4.12's `{success, value?, error?, attempts,
// elapsedMs, usedFallback}`.
type RecoveryResult[T any] struct {
	Success     bool
	Value       T
	Err         error
	Attempts    int
	Elapsed     time.Duration
	UsedFallback bool
}

// Run executes fn under the composed retry/breaker/fallback policy.
func Run[T any](ctx context.Context, cfg RecoveryConfig[T], fn func(ctx context.Context) (T, error)) RecoveryResult[T] {
	start := time.Now()
	attempts := 0

	notify := func(err error) {
		if cfg.OnError == nil || err == nil {
			return
		}
		func() {
			defer func() { recover() }()
			cfg.OnError(err)
		}()
	}

	if cfg.Breaker != nil && cfg.Breaker.State() == StateOpen {
		err := New(ErrCodeCircuitOpen, "circuit breaker open", nil).
			WithDetail("remainingMs", cfg.Breaker.remaining().Milliseconds())
		notify(err)
		if cfg.HasFallback {
			return RecoveryResult[T]{Success: true, Value: cfg.FallbackValue, UsedFallback: true, Elapsed: time.Since(start)}
		}
		return RecoveryResult[T]{Success: false, Err: err, Elapsed: time.Since(start)}
	}

	wrapped := func(ctx context.Context) (T, error) {
		attempts++
		if cfg.Breaker == nil {
			return fn(ctx)
		}
		return ExecuteWithResult(cfg.Breaker, func() (T, error) { return fn(ctx) })
	}

	val, err := RetryWithResult(ctx, cfg.Retry, wrapped)
	if err != nil {
		notify(err)
		if cfg.HasFallback {
			return RecoveryResult[T]{Success: true, Value: cfg.FallbackValue, UsedFallback: true, Attempts: attempts, Elapsed: time.Since(start)}
		}
		return RecoveryResult[T]{Success: false, Err: err, Attempts: attempts, Elapsed: time.Since(start)}
	}

	return RecoveryResult[T]{Success: true, Value: val, Attempts: attempts, Elapsed: time.Since(start)}
}
