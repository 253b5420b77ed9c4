package catalog

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// RetryPolicy configures how write transactions are retried after a
// retryable storage conflict.
type RetryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy returns three attempts with a short exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:     3,
		InitialDelay: 25 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay * 20
	}
	return p
}

// withRetry runs op until it succeeds, fails with a non-retryable error or
// the attempts run out. The last error from op is returned unchanged.
func withRetry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	policy = policy.normalized()

	r := retry.New[T](retry.Config{
		MaxAttempts:   policy.Attempts,
		InitialDelay:  policy.InitialDelay,
		MaxDelay:      policy.MaxDelay,
		BackoffPolicy: retry.BackoffExponential,
		Multiplier:    2.0,
		Jitter:        true,
		IsRetryable:   apperrors.IsRetryableConflict,
	})

	var lastErr error
	result, err := r.Do(ctx, func(ctx context.Context) (T, error) {
		v, err := op(ctx)
		lastErr = err
		return v, err
	})
	if err != nil && lastErr != nil {
		var zero T
		return zero, lastErr
	}
	return result, err
}
