package shared

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultAttempts bounds lookups against dependencies that may be briefly unavailable.
const DefaultAttempts = 3

// RetryPolicy configures Retry.
type RetryPolicy struct {
	Attempts        uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns three attempts with a short exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: DefaultAttempts, InitialInterval: 50 * time.Millisecond, MaxInterval: time.Second}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Retry runs fn until it succeeds, returns a Permanent error, the context ends or
// the attempts are used up. The last error is returned unwrapped.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	if policy.Attempts == 0 {
		policy.Attempts = DefaultAttempts
	}
	exp := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		exp.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		exp.MaxInterval = policy.MaxInterval
	}
	exp.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(exp, policy.Attempts-1), ctx)
	return backoff.RetryWithData(func() (T, error) {
		return fn(ctx)
	}, b)
}
