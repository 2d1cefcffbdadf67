package tail

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowCopiesAppendedBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vbox.log")
	require.NoError(t, os.WriteFile(path, []byte("line one\n"), 0o644))

	var buf bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 1200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Follow(ctx, path, &buf) }()

	time.Sleep(50 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("line two\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	err = <-done
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, buf.String(), "line two")
}
