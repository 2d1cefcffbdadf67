package vbox

import (
	"context"
	"fmt"
	"os"

	"github.com/vboxwrapper/vboxwrapper/lock"
)

// floppyImageSize is the standard 1.44MB floppy geometry the hypervisor
// expects for a raw floppy medium.
const floppyImageSize = 1474560

// CreateFloppyImage creates a zero-filled floppy-sized image at path,
// truncating any existing contents. Returns ErrFwrite on failure: floppy
// creation failure is fatal for the job.
func CreateFloppyImage(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:gosec,mnd
	if err != nil {
		return newErr(KindFwrite, "create_floppy_image", 0, "%v", err)
	}
	defer f.Close() //nolint:errcheck

	if err := f.Truncate(floppyImageSize); err != nil {
		return newErr(KindFwrite, "create_floppy_image", 0, "%v", err)
	}
	return nil
}

// FloppyChannel is the opaque host<->guest blob transport backed by the
// slot's floppy image. It is exclusively owned and not re-entrant: callers
// must not invoke Read/Write concurrently, enforced here by serializing
// through locker.
type FloppyChannel struct {
	path    string
	locker  lock.Locker
	enabled bool
	created bool
}

// NewFloppyChannel wires a channel to path. created should reflect whether
// RegisterVM successfully built the backing medium; enabled mirrors the
// descriptor's EnableFloppyIO.
func NewFloppyChannel(path string, locker lock.Locker, enabled, created bool) *FloppyChannel {
	return &FloppyChannel{path: path, locker: locker, enabled: enabled, created: created}
}

func (c *FloppyChannel) available() bool { return c.enabled && c.created }

// ReadFloppy returns the full contents of the floppy image.
func (c *FloppyChannel) ReadFloppy(ctx context.Context) ([]byte, error) {
	if !c.available() {
		return nil, newErr(KindNotFound, "read_floppy", 0, "floppy channel not available")
	}
	var data []byte
	err := lock.WithLock(ctx, c.locker, func() error {
		var readErr error
		data, readErr = os.ReadFile(c.path) //nolint:gosec
		return readErr
	})
	if err != nil {
		return nil, fmt.Errorf("read_floppy: %w", err)
	}
	return data, nil
}

// WriteFloppy writes data to the floppy image, truncating it to len(data),
// and returns the number of bytes written.
func (c *FloppyChannel) WriteFloppy(ctx context.Context, data []byte) (int, error) {
	if !c.available() {
		return 0, newErr(KindNotFound, "write_floppy", 0, "floppy channel not available")
	}
	n := 0
	err := lock.WithLock(ctx, c.locker, func() error {
		if writeErr := os.WriteFile(c.path, data, 0o644); writeErr != nil { //nolint:gosec,mnd
			return writeErr
		}
		n = len(data)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("write_floppy: %w", err)
	}
	return n, nil
}
