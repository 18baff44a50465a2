package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario from spec.md §8.6.
func TestCircuitBreaker_TransitionsScenario(t *testing.T) {
	cb := NewCircuitBreaker("test",
		WithFailureThreshold(3),
		WithResetTimeout(200*time.Millisecond),
		WithHalfOpenRequests(1),
	)

	for i := 0; i < 3; i++ {
		err := Execute(cb, func() error { return errors.New("boom") })
		require.Error(t, err)
	}
	assert.Equal(t, StateOpen, cb.State())

	start := time.Now()
	err := Execute(cb, func() error {
		t.Fatal("protected function must not run while OPEN")
		return nil
	})
	elapsed := time.Since(start)
	var rerr *RAGError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrCodeCircuitOpen, rerr.Code)
	assert.Less(t, elapsed, 50*time.Millisecond)

	time.Sleep(220 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, Execute(cb, func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.FailureCount())
}

func TestCircuitBreaker_FailsFastFasterThanProtectedCall(t *testing.T) {
	cb := NewCircuitBreaker("slow", WithFailureThreshold(1), WithResetTimeout(time.Minute))
	_ = Execute(cb, func() error { return errors.New("trip it") })
	require.Equal(t, StateOpen, cb.State())

	slowCall := func() error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}
	start := time.Now()
	err := Execute(cb, slowCall)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	require.Error(t, err)
}

func TestCircuitBreaker_HalfOpenReOpensOnFailure(t *testing.T) {
	cb := NewCircuitBreaker("probe", WithFailureThreshold(1), WithResetTimeout(10*time.Millisecond), WithHalfOpenRequests(2))
	_ = Execute(cb, func() error { return errors.New("trip") })
	time.Sleep(15 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	err := Execute(cb, func() error { return errors.New("probe failed") })
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_ConcurrentAccessIsRaceFree(t *testing.T) {
	cb := NewCircuitBreaker("concurrent", WithFailureThreshold(1000), WithResetTimeout(time.Minute))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = Execute(cb, func() error { return nil })
			} else {
				_ = Execute(cb, func() error { return errors.New("x") })
			}
		}(i)
	}
	wg.Wait()
	_ = cb.State()
}
