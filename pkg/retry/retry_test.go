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

func fast(opts ...Option) *Retrier {
	return New(append([]Option{WithInitialDelay(0), WithJitter(0)}, opts...)...)
}

func TestDo_RetriesOnlyRetryableErrors(t *testing.T) {
	calls := 0
	err := fast(WithMaxAttempts(5)).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errFlaky)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = fast(WithMaxAttempts(5)).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustedJoinsLastError(t *testing.T) {
	calls := 0
	err := fast(WithMaxAttempts(3)).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(errFlaky)
	})
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errFlaky)
	assert.False(t, IsRetryable(err))
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := fast(WithMaxAttempts(3), WithRetryIf(func(error) bool { return true })).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(errFlaky)
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, errFlaky, err)
}

func TestDo_RetryIf(t *testing.T) {
	var seen []int
	r := fast(
		WithMaxAttempts(4),
		WithRetryIf(func(err error) bool { return errors.Is(err, errFlaky) }),
		WithOnRetry(func(attempt int, err error, delay time.Duration) { seen = append(seen, attempt) }),
	)
	err := r.Do(context.Background(), func(ctx context.Context) error { return errFlaky })
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestDo_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := New(WithMaxAttempts(5), WithInitialDelay(time.Hour)).Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return Retryable(errFlaky)
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	v, err := DoWithData(context.Background(), fast(), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", Retryable(errFlaky)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestCalculateDelay_CapsAtMax(t *testing.T) {
	r := New(WithInitialDelay(100*time.Millisecond), WithMaxDelay(time.Second), WithMultiplier(10), WithJitter(0))
	assert.Equal(t, 100*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, time.Second, r.calculateDelay(2))
	assert.Equal(t, time.Second, r.calculateDelay(5))
}
