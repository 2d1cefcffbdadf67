package flock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockUnlockRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	l := New(path)

	require.NoError(t, l.Lock(context.Background()))
	require.NoError(t, l.Unlock(context.Background()))
}

func TestTryLockOnAlreadyHeldLockFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	l := New(path)

	require.NoError(t, l.Lock(context.Background()))

	second := New(path)
	ok, err := second.TryLock(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Unlock(context.Background()))

	ok, err = second.TryLock(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Unlock(context.Background()))
}

func TestLockBlocksUntilContextCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	holder := New(path)
	require.NoError(t, holder.Lock(context.Background()))
	defer holder.Unlock(context.Background()) //nolint:errcheck

	waiter := New(path)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := waiter.Lock(ctx)
	require.Error(t, err)
}

func TestTryLockSameInstanceTwiceWithoutUnlockFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	l := New(path)

	ok, err := l.TryLock(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.TryLock(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Unlock(context.Background()))
}
