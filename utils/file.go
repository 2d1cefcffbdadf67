package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/projecteru2/core/log"
)

// StaleTempAge is the age threshold for removing stale temp artifacts during cleanup.
const StaleTempAge = time.Hour

// EnsureDirs creates all directories with 0o750 permissions.
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ValidFile returns true if path is a regular file with size > 0.
func ValidFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// ScanFileStems returns the name-without-suffix of every file in dir whose
// name ends with suffix.
func ScanFileStems(dir, suffix string) []string {
	entries, _ := os.ReadDir(dir)
	var stems []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			stems = append(stems, strings.TrimSuffix(e.Name(), suffix))
		}
	}
	return stems
}

// FilterUnreferenced returns the elements of candidates not present in refs
// or any of the optional exclude sets.
func FilterUnreferenced(candidates []string, refs map[string]struct{}, exclude ...map[string]struct{}) []string {
	var out []string
	for _, s := range candidates {
		if _, ok := refs[s]; ok {
			continue
		}
		excluded := false
		for _, ex := range exclude {
			if _, ok := ex[s]; ok {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, s)
		}
	}
	return out
}

// RemoveMatching scans dir and removes entries where match returns true.
// Returns a slice of errors for entries that could not be removed.
func RemoveMatching(ctx context.Context, dir string, match func(os.DirEntry) bool) []error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return []error{fmt.Errorf("read %s: %w", dir, err)}
	}

	var errs []error
	for _, e := range entries {
		if !match(e) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
		} else {
			log.WithFunc("janitor").Infof(ctx, "removed stale artifact: %s", path)
		}
	}
	return errs
}

// TailBytes returns the trailing n bytes of path, trimmed at the next
// newline boundary so a partial opening line is never shown. If the file is
// smaller than n, the whole file is returned untrimmed.
func TailBytes(path string, n int64) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied log path
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := info.Size()
	if size <= n {
		return os.ReadFile(path) //nolint:gosec
	}

	start := size - n
	if _, err := f.Seek(start, 0); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := f.Read(buf); err != nil {
		return nil, err
	}

	if idx := strings.IndexByte(string(buf), '\n'); idx >= 0 {
		return buf[idx+1:], nil
	}
	return buf, nil
}
