// Package tail implements a poll-based "follow" reader for the operator
// CLI's logs command: since the hypervisor log files are plain append-only
// text with no push notification, following them means periodically
// re-stating the file and reading whatever grew.
package tail

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// defaultPollInterval is how often Follow re-checks the file for growth.
const defaultPollInterval = 500 * time.Millisecond

// Follow reads path from its current end, writing newly appended bytes to
// w, until ctx is cancelled. If the file is truncated to a smaller size
// than last observed, it seeks the open handle back to the start and
// reads from there; it does not re-open the path, so a file replaced by
// rename is not followed.
func Follow(ctx context.Context, path string, w io.Writer) error {
	f, err := os.Open(path) //nolint:gosec // operator-supplied log path
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seek %s: %w", path, err)
	}

	ticker := time.NewTicker(defaultPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}

			if info.Size() < offset {
				if _, err := f.Seek(0, io.SeekStart); err != nil {
					return fmt.Errorf("seek %s: %w", path, err)
				}
				offset = 0
			}

			if info.Size() == offset {
				continue
			}

			n, err := io.Copy(w, bufio.NewReader(f))
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			offset += n
		}
	}
}
