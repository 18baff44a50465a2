package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario from spec.md §8.5.
func TestRetryWithResult_ExponentialBackoffScenario(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:        3,
		BaseDelay:         20 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2,
		Jitter:            false,
	}

	attempts := 0
	start := time.Now()
	var callTimes []time.Duration

	val, err := RetryWithResult(context.Background(), cfg, func(ctx context.Context) (int, error) {
		callTimes = append(callTimes, time.Since(start))
		attempts++
		if attempts < 4 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 4, attempts)
	require.Len(t, callTimes, 4)
	// cumulative delays ~0, 20, 60, 140ms
	assert.Less(t, callTimes[1], 40*time.Millisecond)
	assert.Less(t, callTimes[2], 100*time.Millisecond)
	assert.Less(t, callTimes[3], 220*time.Millisecond)
}

func TestRetryWithResult_Exhausted(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiplier: 1}
	_, err := RetryWithResult(context.Background(), cfg, func(ctx context.Context) (int, error) {
		return 0, errors.New("always fails")
	})
	var rerr *RAGError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrCodeRetryExhausted, rerr.Code)
	assert.Equal(t, 3, rerr.Details["attempts"])
}

func TestRetryWithResult_CancellationAborts(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, BackoffMultiplier: 1}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := RetryWithResult(ctx, cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("fails")
	})
	var rerr *RAGError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrCodeRetryAborted, rerr.Code)
}

func TestRetry_RetryableErrorsSetBlocksNonMembers(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:      3,
		BaseDelay:       time.Millisecond,
		MaxDelay:        time.Millisecond,
		RetryableErrors: map[string]bool{ErrCodeProviderError: true},
	}
	attempts := 0
	_, err := RetryWithResult(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts++
		return 0, New(ErrCodeValidation, "bad input", nil)
	})
	assert.Equal(t, 1, attempts, "non-retryable code should propagate immediately")
	var rerr *RAGError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrCodeValidation, rerr.Code)
}
