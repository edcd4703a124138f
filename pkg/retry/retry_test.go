package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDo_SucceedsAfterRetryableFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return Retryable(errors.New("transient"))
		}
		return nil
	}, WithMaxAttempts(5), WithInitialDelay(1))

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	boom := errors.New("bad input")
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Permanent(boom)
	}, WithMaxAttempts(5), WithInitialDelay(1))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	transient := errors.New("still down")
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Retryable(transient)
	}, WithMaxAttempts(3), WithInitialDelay(1))

	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, attempts)
}

func TestDo_RetryIfOverridesClassification(t *testing.T) {
	plain := errors.New("plain error")
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return plain
	},
		WithMaxAttempts(3),
		WithInitialDelay(1),
		WithRetryIf(func(err error) bool { return true }),
	)

	assert.ErrorIs(t, err, plain)
	assert.Equal(t, 3, attempts)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		return Retryable(errors.New("transient"))
	}, WithMaxAttempts(3), WithInitialDelay(1))

	assert.Error(t, err)
	assert.Zero(t, attempts)
}

func TestDoWithData(t *testing.T) {
	attempts := 0
	got, err := DoWithData(context.Background(), func(ctx context.Context) (int, error) {
		attempts++
		if attempts < 2 {
			return 0, Retryable(errors.New("transient"))
		}
		return 42, nil
	}, WithMaxAttempts(3), WithInitialDelay(1))

	assert.NoError(t, err)
	assert.Equal(t, 42, got)
}
