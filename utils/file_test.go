package utils

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidFile(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	assert.False(t, ValidFile(empty))

	nonEmpty := filepath.Join(dir, "data")
	require.NoError(t, os.WriteFile(nonEmpty, []byte("x"), 0o644))
	assert.True(t, ValidFile(nonEmpty))

	assert.False(t, ValidFile(filepath.Join(dir, "missing")))
}

func TestScanFileStems(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.vdi"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.vdi"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), nil, 0o644))

	stems := ScanFileStems(dir, ".vdi")
	assert.ElementsMatch(t, []string{"a", "b"}, stems)
}

func TestFilterUnreferenced(t *testing.T) {
	candidates := []string{"a", "b", "c", "d"}
	refs := map[string]struct{}{"a": {}}
	exclude := map[string]struct{}{"b": {}}

	out := FilterUnreferenced(candidates, refs, exclude)
	assert.ElementsMatch(t, []string{"c", "d"}, out)
}

func TestRemoveMatching(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stale.tmp"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), nil, 0o644))

	errs := RemoveMatching(context.Background(), dir, func(e os.DirEntry) bool {
		return filepath.Ext(e.Name()) == ".tmp"
	})
	assert.Empty(t, errs)

	_, err := os.Stat(filepath.Join(dir, "stale.tmp"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(dir, "keep.txt"))
	assert.NoError(t, err)
}

func TestRemoveMatchingMissingDirIsNotAnError(t *testing.T) {
	errs := RemoveMatching(context.Background(), filepath.Join(t.TempDir(), "nope"), func(os.DirEntry) bool { return true })
	assert.Empty(t, errs)
}

func TestTailBytesSmallerThanN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o644))

	out, err := TailBytes(path, 100)
	require.NoError(t, err)
	assert.Equal(t, "short", string(out))
}

func TestTailBytesTrimsPartialLeadingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	content := "line-one\nline-two\nline-three\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	out, err := TailBytes(path, int64(len("ne-two\nline-three\n")))
	require.NoError(t, err)
	assert.Equal(t, "line-three\n", string(out))
}
