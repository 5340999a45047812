// Package retry wraps single provider calls with bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"marketdata/internal/provider"
)

// Executor retries transient failures with delays doubling from BaseDelay.
// MaxAttempts counts the first call, so 3 means at most two retries. An
// explicit upstream retry-after hint overrides the computed delay for the
// next attempt.
type Executor struct {
	BaseDelay   time.Duration
	MaxAttempts int

	// Sleep is swappable in tests.
	Sleep func(time.Duration)
}

// New constructs an executor with the given base delay and total attempt cap.
func New(baseDelay time.Duration, maxAttempts int) *Executor {
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Executor{BaseDelay: baseDelay, MaxAttempts: maxAttempts, Sleep: time.Sleep}
}

// Do runs op, retrying transient failures until MaxAttempts is exhausted.
// Non-transient failures propagate immediately. After exhaustion the last
// transient failure is returned, never a silently absent result.
//
// Context cancellation is only observed between attempts; an in-flight op is
// not aborted.
func Do[T any](ctx context.Context, ex *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	delay := ex.BaseDelay

	var err error
	for attempt := 1; ; attempt++ {
		var result T
		result, err = op(ctx)
		if err == nil {
			return result, nil
		}
		if !provider.IsTransient(err) || attempt >= ex.MaxAttempts {
			return zero, err
		}

		wait := delay
		if hint, ok := provider.RetryAfterHint(err); ok {
			wait = hint
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}
		ex.Sleep(wait)
		delay *= 2
	}
}
