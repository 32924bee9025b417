package retrier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	_, err := New(0, time.Millisecond, time.Second, 2.0, 0.1)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	_, err = New(3, 0, time.Second, 2.0, 0.1)
	assert.ErrorIs(t, err, ErrInvalidBaseDelay)

	_, err = New(3, time.Millisecond, time.Second, 0.5, 0.1)
	assert.ErrorIs(t, err, ErrInvalidFactor)

	_, err = New(3, time.Millisecond, time.Second, 2.0, 1.5)
	assert.ErrorIs(t, err, ErrInvalidJitter)
}

func TestRunSucceedsFirstAttempt(t *testing.T) {
	r, err := New(3, time.Millisecond, time.Second, 2.0, 0)
	require.NoError(t, err)

	calls := 0
	err = r.Run(context.Background(), func() error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRunRetriesUntilSuccess(t *testing.T) {
	r, err := New(5, time.Millisecond, 10*time.Millisecond, 2.0, 0)
	require.NoError(t, err)

	calls := 0
	err = r.Run(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRunExhaustsAttempts(t *testing.T) {
	r, err := New(3, time.Millisecond, 10*time.Millisecond, 2.0, 0)
	require.NoError(t, err)

	cause := errors.New("persistent failure")
	calls := 0
	err = r.Run(context.Background(), func() error {
		calls++
		return cause
	})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, calls)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	r, err := New(10, 50*time.Millisecond, time.Second, 2.0, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err = r.Run(ctx, func() error {
		return errors.New("always fails")
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
