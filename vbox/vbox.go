package vbox

import (
	"context"
	"fmt"
	"os"

	"github.com/vboxwrapper/vboxwrapper/config"
	"github.com/vboxwrapper/vboxwrapper/lock/flock"
	"github.com/vboxwrapper/vboxwrapper/types"
	"github.com/vboxwrapper/vboxwrapper/utils"
)

// Supervisor is the single entry point gluing the Invoker, Retry
// Controller, Registry, Lifecycle, and Snapshot Coordinator together for
// one job slot. It holds no internal concurrency: every method blocks the
// caller's cooperative loop for its duration.
type Supervisor struct {
	Conf       *config.Config
	Descriptor *types.Descriptor
	Runtime    *types.RuntimeState

	Env       *Environment
	Registry  *Registry
	Lifecycle *Lifecycle
	Snapshots *SnapshotCoordinator
	Floppy    *FloppyChannel
	cache     *StateCache
}

// New bootstraps the hypervisor environment and wires every component for
// conf/descriptor. The returned Supervisor's Runtime starts zeroed except
// for VMName (the descriptor's MasterName), the fields seeded from the
// on-disk state cache, and VirtualBoxVersion (taken from Bootstrap).
func New(ctx context.Context, conf *config.Config, descriptor *types.Descriptor) (*Supervisor, error) {
	env, err := Bootstrap(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	rt := &types.RuntimeState{VMName: descriptor.MasterName}
	cache := NewStateCache(conf.StateCacheFile(), conf.StateCacheLock())
	if err := cache.Load(ctx, rt); err != nil {
		return nil, fmt.Errorf("load state cache: %w", err)
	}
	rt.VirtualBoxVersion = env.Version

	serviceAlive := func(context.Context) error { return nil }
	if conf.Sandbox && env.ServiceHandle != nil {
		pid := env.ServiceHandle.PID
		serviceAlive = func(context.Context) error {
			if !currentPlatform.IsProcessAlive(pid) {
				return fmt.Errorf("sandboxed service daemon pid %d is not running", pid)
			}
			return nil
		}
	}

	invoker := NewInvoker(env.Binary, serviceAlive)
	retrying := NewRetryingInvoker(invoker, retryPolicyFromConf(conf))
	registry := NewRegistry(retrying, conf)
	lifecycle := NewLifecycle(registry, conf, descriptor)

	floppyPath := conf.FloppyImagePath(descriptor.FloppyImageFilename)
	floppyLocker := flock.New(floppyPath + ".lock")
	floppy := NewFloppyChannel(floppyPath, floppyLocker,
		descriptor.EnableFloppyIO, descriptor.EnableFloppyIO && utils.ValidFile(floppyPath))

	snapshotLocker := flock.New(conf.StateCacheLock() + ".snapshot")
	snapshots := NewSnapshotCoordinator(registry, lifecycle, snapshotLocker)

	return &Supervisor{
		Conf:       conf,
		Descriptor: descriptor,
		Runtime:    rt,
		Env:        env,
		Registry:   registry,
		Lifecycle:  lifecycle,
		Snapshots:  snapshots,
		Floppy:     floppy,
		cache:      cache,
	}, nil
}

// SaveState persists the cache-backed fields of the Supervisor's runtime
// state, to be called after any operation that changes ports, PID, or
// recorded version.
func (s *Supervisor) SaveState(ctx context.Context) error {
	return s.cache.Save(ctx, s.Runtime)
}

// TeardownServiceDaemon terminates the sandboxed service daemon this
// Supervisor launched or adopted, if any, and clears its PID file. A no-op
// outside sandbox mode.
func (s *Supervisor) TeardownServiceDaemon() error {
	if !s.Conf.Sandbox || s.Env.ServiceHandle == nil {
		return nil
	}
	if err := currentPlatform.TerminateProcess(s.Env.ServiceHandle.PID); err != nil {
		return fmt.Errorf("terminate service daemon: %w", err)
	}
	if err := os.Remove(s.Conf.ServiceDaemonPIDFile()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove service daemon PID file: %w", err)
	}
	return nil
}

func retryPolicyFromConf(conf *config.Config) RetryPolicy {
	policy := DefaultRetryPolicy()
	if conf.RetryMaxAttempts > 0 {
		policy.MaxAttempts = conf.RetryMaxAttempts
	}
	if conf.RetryBaseInterval.Seconds > 0 {
		policy.BaseInterval = conf.RetryBaseInterval.AsTime()
	}
	return policy
}
