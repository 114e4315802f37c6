// Package retry re-runs idempotent reads after transient store failures.
// Writes are never retried here: a write that reports Unavailable may still
// have committed.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/inhalecare/inhalecare/internal/platform/apperr"
)

// Policy bounds how a read is retried.
type Policy struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Reset runs before every attempt after the first, so the retry does not
	// land on the handle that just failed. db.Reacquire is the usual choice.
	Reset func(ctx context.Context) error
}

func DefaultPolicy() Policy {
	return Policy{Attempts: 3, InitialInterval: 50 * time.Millisecond, MaxInterval: 500 * time.Millisecond}
}

// WithAttempts returns the default policy with a different attempt count.
func WithAttempts(n int) Policy {
	p := DefaultPolicy()
	if n > 0 {
		p.Attempts = n
	}
	return p
}

// Read calls fn until it succeeds, returns a non-Unavailable error, the
// attempts run out, or ctx is done.
func Read[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.Attempts-1)), ctx)

	var out T
	first := true
	err := backoff.Retry(func() error {
		if !first && p.Reset != nil {
			if err := p.Reset(ctx); err != nil {
				if !apperr.IsUnavailable(err) {
					return backoff.Permanent(err)
				}
				return err
			}
		}
		first = false
		v, err := fn(ctx)
		if err == nil {
			out = v
			return nil
		}
		if !apperr.IsUnavailable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
