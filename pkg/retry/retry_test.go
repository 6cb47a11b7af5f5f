package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func retriable(err error) bool { return errors.Is(err, errFlaky) }

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	var retried []int
	p := Policy{Attempts: 3, BaseDelay: time.Millisecond, Retriable: retriable, OnRetry: func(n int, _ error) {
		retried = append(retried, n)
	}}

	got, err := Do(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errFlaky
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	_, err := Do(context.Background(), Policy{Attempts: 5, Retriable: retriable}, func(context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoExhausted(t *testing.T) {
	_, err := Do(context.Background(), Policy{Attempts: 2, Retriable: retriable}, func(context.Context) (int, error) {
		return 0, errFlaky
	})
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errFlaky)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Do(ctx, Policy{Attempts: 3, Retriable: retriable}, func(context.Context) (int, error) {
		calls++
		return 0, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}
