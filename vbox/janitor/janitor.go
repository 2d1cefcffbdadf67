// Package janitor runs bounded maintenance passes (its one user is
// snapshot pruning) under a single lock held for the
// whole pass (fail-closed: any module error aborts the remaining modules
// rather than leaving partial cleanup applied under a half-released lock).
package janitor

import (
	"context"
	"fmt"

	"github.com/vboxwrapper/vboxwrapper/lock"
)

// Candidate is one unit a Module proposes for collection: a snapshot UUID,
// a stale disk path, or similar.
type Candidate struct {
	ID     string
	Active bool // marks the hypervisor's currently-active snapshot
}

// Module is one maintenance concern: list candidates against the current
// state, then collect (delete/reconcile) each one the orchestrator decides
// to keep.
type Module[S any] interface {
	Name() string
	Resolve(ctx context.Context, state S) ([]Candidate, error)
	Collect(ctx context.Context, state S, candidate Candidate) error
}

// Orchestrator runs a fixed set of Modules against a shared state value
// under a single lock acquisition per Run call.
type Orchestrator[S any] struct {
	locker  lock.Locker
	modules []Module[S]
}

// New builds an Orchestrator guarded by locker.
func New[S any](locker lock.Locker) *Orchestrator[S] {
	return &Orchestrator[S]{locker: locker}
}

// Register adds m to the orchestrator's module list, run in registration
// order.
func (o *Orchestrator[S]) Register(m Module[S]) {
	o.modules = append(o.modules, m)
}

// Run acquires the lock, then for every registered module resolves its
// candidates and collects each one that keep returns true for, in order.
// keep lets the caller apply per-candidate policy (e.g. "stop at the first
// active snapshot" for cleanupsnapshots) without threading that policy
// through the Module interface itself. Any error aborts the whole pass.
func (o *Orchestrator[S]) Run(ctx context.Context, state S, keep func(Candidate) (collect bool, stop bool)) error {
	if err := o.locker.Lock(ctx); err != nil {
		return fmt.Errorf("janitor: acquire lock: %w", err)
	}
	defer o.locker.Unlock(ctx) //nolint:errcheck

	for _, m := range o.modules {
		candidates, err := m.Resolve(ctx, state)
		if err != nil {
			return fmt.Errorf("janitor: %s resolve: %w", m.Name(), err)
		}

		for _, c := range candidates {
			collect, stop := true, false
			if keep != nil {
				collect, stop = keep(c)
			}
			if collect {
				if err := m.Collect(ctx, state, c); err != nil {
					return fmt.Errorf("janitor: %s collect %s: %w", m.Name(), c.ID, err)
				}
			}
			if stop {
				break
			}
		}
	}
	return nil
}
