package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketdata/internal/provider"
)

func testExecutor(maxAttempts int) (*Executor, *[]time.Duration) {
	ex := New(time.Second, maxAttempts)
	var slept []time.Duration
	ex.Sleep = func(d time.Duration) { slept = append(slept, d) }
	return ex, &slept
}

func TestTransientTwiceThenSuccess(t *testing.T) {
	ex, slept := testExecutor(3)

	attempts := 0
	got, err := Do(context.Background(), ex, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", provider.Transient("fake: quote", errors.New("timeout"))
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.Equal(t, 3, attempts)

	// Delays strictly increase: 1s then 2s.
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
}

func TestPermanentFailsImmediately(t *testing.T) {
	ex, slept := testExecutor(3)

	attempts := 0
	_, err := Do(context.Background(), ex, func(ctx context.Context) (int, error) {
		attempts++
		return 0, provider.Permanent("fake: quote", errors.New("bad key"))
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
	require.Empty(t, *slept)
}

func TestExhaustionSurfacesLastError(t *testing.T) {
	ex, _ := testExecutor(3)

	attempts := 0
	_, err := Do(context.Background(), ex, func(ctx context.Context) (int, error) {
		attempts++
		return 0, provider.Transient("fake: quote", errors.New("still down"))
	})
	require.Equal(t, 3, attempts)
	require.True(t, provider.IsTransient(err))
	require.Contains(t, err.Error(), "still down")
}

func TestRetryAfterOverridesBackoff(t *testing.T) {
	ex, slept := testExecutor(3)

	attempts := 0
	_, err := Do(context.Background(), ex, func(ctx context.Context) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, provider.Throttled("fake: quote", 7*time.Second)
		}
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, []time.Duration{7 * time.Second}, *slept)
}

func TestUnclassifiedErrorIsNotRetried(t *testing.T) {
	ex, _ := testExecutor(5)

	attempts := 0
	_, err := Do(context.Background(), ex, func(ctx context.Context) (int, error) {
		attempts++
		return 0, errors.New("plain failure")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestCanceledContextStopsRetries(t *testing.T) {
	ex, _ := testExecutor(5)
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	_, err := Do(ctx, ex, func(ctx context.Context) (int, error) {
		attempts++
		cancel()
		return 0, provider.Transient("fake: quote", errors.New("timeout"))
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempts)
}
