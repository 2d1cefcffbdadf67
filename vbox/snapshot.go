package vbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/projecteru2/core/log"

	"github.com/vboxwrapper/vboxwrapper/lock"
	"github.com/vboxwrapper/vboxwrapper/types"
	"github.com/vboxwrapper/vboxwrapper/vbox/janitor"
)

// SnapshotCoordinator drives offline snapshot create/restore/cleanup.
// Creation pauses the VM first, trading a short stall for a simpler crash
// model than a live snapshot would give.
type SnapshotCoordinator struct {
	reg        *Registry
	lifecycle  *Lifecycle
	orchestrator *janitor.Orchestrator[*types.RuntimeState]
}

func NewSnapshotCoordinator(reg *Registry, lifecycle *Lifecycle, locker lock.Locker) *SnapshotCoordinator {
	o := janitor.New[*types.RuntimeState](locker)
	sc := &SnapshotCoordinator{reg: reg, lifecycle: lifecycle, orchestrator: o}
	o.Register(&snapshotModule{reg: reg})
	return sc
}

// CreateSnapshot takes an offline snapshot named boinc_<elapsed seconds>.
// A failed take (e.g. a name collision at the same elapsed second) is
// logged and the resume/poll/cleanup sequence continues.
func (sc *SnapshotCoordinator) CreateSnapshot(ctx context.Context, rt *types.RuntimeState, elapsed time.Duration) error {
	if err := sc.lifecycle.Pause(ctx, rt); err != nil {
		return fmt.Errorf("createsnapshot: pause: %w", err)
	}

	name := fmt.Sprintf("boinc_%d", int64(elapsed.Seconds()))
	if _, _, err := sc.reg.inv.Invoke(ctx, "snapshot-take", []string{
		"snapshot", rt.VMName, "take", name,
	}, 0, true); err != nil {
		log.WithFunc("vbox.snapshot").Warnf(ctx, "createsnapshot: take %s: %v", name, err)
	}

	if err := sc.lifecycle.Resume(ctx, rt); err != nil {
		return fmt.Errorf("createsnapshot: resume: %w", err)
	}
	if err := sc.reg.Poll(ctx, rt, false); err != nil {
		return fmt.Errorf("createsnapshot: poll: %w", err)
	}
	return sc.CleanupSnapshots(ctx, rt, false)
}

// RestoreSnapshot restores the current snapshot.
func (sc *SnapshotCoordinator) RestoreSnapshot(ctx context.Context, rt *types.RuntimeState) error {
	if _, _, err := sc.reg.inv.Invoke(ctx, "snapshot-restorecurrent", []string{
		"snapshot", rt.VMName, "restorecurrent",
	}, 0, true); err != nil {
		return fmt.Errorf("restoresnapshot: %w", err)
	}
	return nil
}

// CleanupSnapshots deletes snapshots oldest-first. When deleteActive is
// false, iteration stops at the first snapshot marked active (trailing
// "*" in the listing) rather than deleting it.
func (sc *SnapshotCoordinator) CleanupSnapshots(ctx context.Context, rt *types.RuntimeState, deleteActive bool) error {
	return sc.orchestrator.Run(ctx, rt, func(c janitor.Candidate) (collect bool, stop bool) {
		if c.Active && !deleteActive {
			return false, true
		}
		return true, false
	})
}

// snapshotModule adapts snapshot listing/deletion to the janitor.Module
// interface.
type snapshotModule struct {
	reg *Registry
}

func (snapshotModule) Name() string { return "snapshot-cleanup" }

func (m *snapshotModule) Resolve(ctx context.Context, rt *types.RuntimeState) ([]janitor.Candidate, error) {
	_, output, err := m.reg.inv.Invoke(ctx, "snapshot-list", []string{"snapshot", rt.VMName, "list"}, 0, true)
	if err != nil {
		if strings.Contains(output, "does not have any snapshots") {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot list: %w", err)
	}
	return parseSnapshotListing(output), nil
}

func (m *snapshotModule) Collect(ctx context.Context, rt *types.RuntimeState, c janitor.Candidate) error {
	_, _, err := m.reg.inv.Invoke(ctx, "snapshot-delete", []string{
		"snapshot", rt.VMName, "delete", c.ID,
	}, 0, true)
	return err
}

// parseSnapshotListing extracts (UUID: <uuid>) tokens in listing order,
// marking a candidate Active when its source line ends with "*".
func parseSnapshotListing(output string) []janitor.Candidate {
	var out []janitor.Candidate
	for _, line := range strings.Split(output, "\n") {
		id, ok := extractUUIDToken(line)
		if !ok {
			continue
		}
		out = append(out, janitor.Candidate{
			ID:     id,
			Active: strings.HasSuffix(strings.TrimRight(line, "\r\n "), "*"),
		})
	}
	return out
}
