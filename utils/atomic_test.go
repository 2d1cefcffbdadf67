package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	require.NoError(t, AtomicWriteFile(path, []byte("payload"), 0o644))

	data, err := os.ReadFile(path) //nolint:gosec
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should not remain after a successful write")
}

func TestAtomicWriteFileOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	require.NoError(t, AtomicWriteFile(path, []byte("first"), 0o644))
	require.NoError(t, AtomicWriteFile(path, []byte("second"), 0o644))

	data, err := os.ReadFile(path) //nolint:gosec
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

type sample struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func TestAtomicWriteJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	in := sample{Name: "vm1", N: 3}

	require.NoError(t, AtomicWriteJSON(path, in))

	data, err := os.ReadFile(path) //nolint:gosec
	require.NoError(t, err)

	var out sample
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
