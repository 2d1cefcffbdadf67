package vbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLocker struct{}

func (memLocker) Lock(ctx context.Context) error           { return nil }
func (memLocker) Unlock(ctx context.Context) error          { return nil }
func (memLocker) TryLock(ctx context.Context) (bool, error) { return true, nil }

func TestCreateFloppyImageSizeAndZeroFill(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floppy.img")
	require.NoError(t, CreateFloppyImage(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, floppyImageSize, info.Size())

	data, err := os.ReadFile(path) //nolint:gosec
	require.NoError(t, err)
	for _, b := range data {
		require.Zero(t, b)
	}
}

func TestFloppyChannelWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floppy.img")
	require.NoError(t, CreateFloppyImage(path))

	ch := NewFloppyChannel(path, memLocker{}, true, true)

	n, err := ch.WriteFloppy(context.Background(), []byte("hello guest"))
	require.NoError(t, err)
	assert.Equal(t, len("hello guest"), n)

	data, err := ch.ReadFloppy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello guest", string(data))
}

func TestFloppyChannelUnavailableWhenNotEnabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floppy.img")
	ch := NewFloppyChannel(path, memLocker{}, false, true)

	_, err := ch.ReadFloppy(context.Background())
	require.Error(t, err)

	_, err = ch.WriteFloppy(context.Background(), []byte("x"))
	require.Error(t, err)
}

func TestFloppyChannelUnavailableWhenNotCreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floppy.img")
	ch := NewFloppyChannel(path, memLocker{}, true, false)

	_, err := ch.ReadFloppy(context.Background())
	require.Error(t, err)
}
