// Package retry runs a unit of work again when it fails with a retriable error.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ErrExhausted wraps the last error once every attempt has failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy bounds the retry loop.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Retriable decides whether err is worth another attempt. A nil func
	// retries nothing.
	Retriable func(error) bool
	// OnRetry is called before sleeping for another attempt.
	OnRetry func(attempt int, err error)
}

// Do calls fn until it succeeds, returns a non-retriable error, the context
// ends, or the attempts run out. Delays grow exponentially with jitter.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if p.Retriable == nil || !p.Retriable(err) {
			return zero, err
		}
		if i == attempts-1 {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(i+1, err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(p.delay(i)):
		}
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, lastErr)
}

func (p Policy) delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay << uint(attempt)
	d += time.Duration(rand.Int63n(int64(p.BaseDelay))) //nolint:gosec // jitter doesn't need crypto rand
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
