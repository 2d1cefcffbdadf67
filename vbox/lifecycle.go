package vbox

import (
	"context"
	"fmt"
	"time"

	"github.com/projecteru2/core/log"

	"github.com/vboxwrapper/vboxwrapper/config"
	"github.com/vboxwrapper/vboxwrapper/types"
	"github.com/vboxwrapper/vboxwrapper/utils"
)

// State is the observed lifecycle position of the single VM owned by this
// supervisor instance. Unlike types.RuntimeState's flags,
// this is a derived view for logging/reporting, never itself the source of
// truth.
type State = types.LifecycleState

// Lifecycle drives register/start/stop/pause/resume/poweroff/cleanup,
// observing rather than asserting each transition: every action issues a
// CLI command, then polls until the observed state matches the intent or a
// timeout elapses.
type Lifecycle struct {
	reg        *Registry
	conf       *config.Config
	descriptor *types.Descriptor
}

func NewLifecycle(reg *Registry, conf *config.Config, descriptor *types.Descriptor) *Lifecycle {
	return &Lifecycle{reg: reg, conf: conf, descriptor: descriptor}
}

// CurrentState derives a LifecycleState from rt's last-polled flags.
func CurrentState(rt *types.RuntimeState, registered bool) State {
	switch {
	case !registered:
		return types.StateUnregistered
	case rt.Crashed:
		return types.StateCrashed
	case rt.Online && rt.Suspended:
		return types.StatePaused
	case rt.Online:
		return types.StateRunning
	default:
		return types.StateRegistered
	}
}

// Run implements the register/reset/restore/start sequence: register if needed,
// honor register-only jobs, reset to a clean powered-off state, restore a
// snapshot if resuming a job in progress, then start.
func (l *Lifecycle) Run(ctx context.Context, rt *types.RuntimeState, snapshots *SnapshotCoordinator, elapsed time.Duration) error {
	registered, err := l.reg.IsRegistered(ctx, l.descriptor.MasterName)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	if !registered {
		hddRegistered, err := l.reg.IsHDDRegistered(ctx, l.conf.ImagePath(l.descriptor.ImageFilename))
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if hddRegistered {
			if err := l.reg.DeregisterStaleVM(ctx,
				l.conf.ImagePath(l.descriptor.ImageFilename),
				l.conf.FloppyImagePath(l.descriptor.FloppyImageFilename),
				false); err != nil {
				return fmt.Errorf("run: deregister stale vm: %w", err)
			}
		}
		if err := l.reg.RegisterVM(ctx, l.descriptor, rt); err != nil {
			return fmt.Errorf("run: register vm: %w", err)
		}
	}

	if l.descriptor.RegisterOnly {
		return ErrRegisterOnly
	}

	rt.VMName = l.descriptor.MasterName
	if err := l.reg.Poll(ctx, rt, false); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if rt.Online {
		if err := l.Poweroff(ctx, rt); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}

	if elapsed > 0 {
		if err := snapshots.RestoreSnapshot(ctx, rt); err != nil {
			return fmt.Errorf("run: restore snapshot: %w", err)
		}
	}

	return l.Start(ctx, rt)
}

// Start issues startvm and polls every second for up to StartTimeoutSeconds
// for the observed state to go online.
func (l *Lifecycle) Start(ctx context.Context, rt *types.RuntimeState) error {
	args := []string{"startvm", rt.VMName}
	if l.descriptor.Headless {
		args = append(args, "--type", "headless")
	}
	if _, _, err := l.reg.inv.Invoke(ctx, "startvm", args, 0, true); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	timeout := time.Duration(l.conf.StartTimeoutSeconds) * time.Second
	err := utils.WaitFor(ctx, timeout, time.Second, func() (bool, error) {
		if pollErr := l.reg.Poll(ctx, rt, false); pollErr != nil {
			return false, pollErr
		}
		return rt.Online, nil
	})
	if err != nil {
		return newErr(KindExec, "start", 0, "vm did not come online within %s: %v", timeout, err)
	}

	log.WithFunc("vbox.lifecycle").Infof(ctx, "%s: started", rt.VMName)
	return nil
}

// Stop issues controlvm savestate and expects !online after a single poll;
// a VM still online then is reported as ErrExec.
func (l *Lifecycle) Stop(ctx context.Context, rt *types.RuntimeState) error {
	if _, _, err := l.reg.inv.Invoke(ctx, "controlvm-savestate", []string{
		"controlvm", rt.VMName, "savestate",
	}, 0, true); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	if err := l.reg.Poll(ctx, rt, false); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	if rt.Online {
		return newErr(KindExec, "stop", 0, "vm still online after savestate")
	}
	return nil
}

// Poweroff issues controlvm poweroff and expects !online after a single
// poll; a VM still online then is reported as ErrExec.
func (l *Lifecycle) Poweroff(ctx context.Context, rt *types.RuntimeState) error {
	if _, _, err := l.reg.inv.Invoke(ctx, "controlvm-poweroff", []string{
		"controlvm", rt.VMName, "poweroff",
	}, 0, true); err != nil {
		return fmt.Errorf("poweroff: %w", err)
	}
	if err := l.reg.Poll(ctx, rt, false); err != nil {
		return fmt.Errorf("poweroff: %w", err)
	}
	if rt.Online {
		return newErr(KindExec, "poweroff", 0, "vm still online after poweroff")
	}
	return nil
}

// Pause resets process priority to normal first so the in-flight pause
// (and any snapshot work layered on top of it) completes promptly, then
// issues controlvm pause.
func (l *Lifecycle) Pause(ctx context.Context, rt *types.RuntimeState) error {
	if err := l.reg.ResetVMProcessPriority(rt); err != nil {
		return fmt.Errorf("pause: reset priority: %w", err)
	}
	if _, _, err := l.reg.inv.Invoke(ctx, "controlvm-pause", []string{
		"controlvm", rt.VMName, "pause",
	}, 0, true); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	rt.Suspended = true
	return nil
}

// Resume lowers process priority to idle first so the subsequently-running
// scientific workload does not starve the host, then issues controlvm
// resume.
func (l *Lifecycle) Resume(ctx context.Context, rt *types.RuntimeState) error {
	if err := l.reg.LowerVMProcessPriority(rt); err != nil {
		return fmt.Errorf("resume: lower priority: %w", err)
	}
	if _, _, err := l.reg.inv.Invoke(ctx, "controlvm-resume", []string{
		"controlvm", rt.VMName, "resume",
	}, 0, true); err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	rt.Suspended = false
	return nil
}

// Cleanup powers off, deregisters with media deletion, and sleeps to give
// the hypervisor service time to flush.
func (l *Lifecycle) Cleanup(ctx context.Context, rt *types.RuntimeState) error {
	if err := l.Poweroff(ctx, rt); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	if err := l.reg.DeregisterVM(ctx, rt.VMName,
		l.conf.ImagePath(l.descriptor.ImageFilename),
		l.conf.FloppyImagePath(l.descriptor.FloppyImageFilename),
		true); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(l.conf.CleanupSleepSeconds) * time.Second):
	}
	return nil
}
