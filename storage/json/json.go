// Package json implements storage.Store backed by a single flock-guarded
// JSON file. It is used for the supervisor's ephemeral state cache: a
// rebuildable record of last-observed runtime facts (allocated ports, the
// VM frontend's PID, the hypervisor version string) that is not itself
// authoritative — the hypervisor and the snapshot mechanism are the
// authoritative state, per the "no persisted supervisor state" constraint.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/vboxwrapper/vboxwrapper/lock"
	"github.com/vboxwrapper/vboxwrapper/storage"
	"github.com/vboxwrapper/vboxwrapper/utils"
)

// Store provides flock-protected read/modify/write access to a JSON file.
// T is the top-level structure stored in the file. If *T implements
// storage.Initer, Init() is called automatically after loading.
type Store[T any] struct {
	filePath string
	locker   lock.Locker
}

// New creates a Store for the given data file, guarded by locker.
func New[T any](filePath string, locker lock.Locker) *Store[T] {
	return &Store[T]{filePath: filePath, locker: locker}
}

var _ storage.Store[struct{}] = (*Store[struct{}])(nil)

// With loads the JSON file under lock and passes the deserialized data to fn.
func (s *Store[T]) With(ctx context.Context, fn func(*T) error) error {
	return lock.WithLock(ctx, s.locker, func() error {
		return s.Read(fn)
	})
}

// Update performs a read-modify-write on the JSON file under lock.
func (s *Store[T]) Update(ctx context.Context, fn func(*T) error) error {
	return lock.WithLock(ctx, s.locker, func() error {
		return s.Write(fn)
	})
}

// Read deserializes the data and passes it to fn without acquiring the lock.
// The caller must already hold the lock via TryLock.
func (s *Store[T]) Read(fn func(*T) error) error {
	var data T
	raw, err := os.ReadFile(s.filePath) //nolint:gosec // internal metadata
	if err != nil {
		if os.IsNotExist(err) {
			initData(&data)
			return fn(&data)
		}
		return fmt.Errorf("read %s: %w", s.filePath, err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parse %s: %w", s.filePath, err)
	}
	initData(&data)
	return fn(&data)
}

// Write deserializes the data, passes it to fn, and atomically persists the
// result if fn returns nil. Does not acquire the lock.
func (s *Store[T]) Write(fn func(*T) error) error {
	return s.Read(func(data *T) error {
		if err := fn(data); err != nil {
			return err
		}
		return utils.AtomicWriteJSON(s.filePath, data)
	})
}

// TryLock attempts a non-blocking lock acquisition.
func (s *Store[T]) TryLock(ctx context.Context) (bool, error) { return s.locker.TryLock(ctx) }

// Unlock releases a lock previously acquired by TryLock.
func (s *Store[T]) Unlock(ctx context.Context) error { return s.locker.Unlock(ctx) }

func initData[T any](data *T) {
	if initer, ok := any(data).(storage.Initer); ok {
		initer.Init()
	}
}
