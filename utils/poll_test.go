package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForSucceedsBeforeTimeout(t *testing.T) {
	calls := 0
	err := WaitFor(context.Background(), time.Second, time.Millisecond, func() (bool, error) {
		calls++
		return calls >= 3, nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls, 3)
}

func TestWaitForTimesOut(t *testing.T) {
	err := WaitFor(context.Background(), 20*time.Millisecond, 5*time.Millisecond, func() (bool, error) {
		return false, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestWaitForPropagatesCheckError(t *testing.T) {
	boom := assert.AnError
	err := WaitFor(context.Background(), time.Second, time.Millisecond, func() (bool, error) {
		return false, boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestWaitForRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitFor(ctx, time.Second, time.Millisecond, func() (bool, error) {
		return false, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
