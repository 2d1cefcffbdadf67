// Package vbox wires the supervisor library into operator-facing cobra
// subcommands: one process invocation per lifecycle action, matching the
// single-cooperative-loop execution model the supervisor itself assumes.
package vbox

import (
	"context"
	"fmt"
	"time"

	"github.com/vboxwrapper/vboxwrapper/cmd/core"
	"github.com/vboxwrapper/vboxwrapper/vbox"
)

// Handler loads config and descriptor, builds a Supervisor, and runs one
// action against it. Register, Run and Status persist the cache-backed
// state afterwards; the other actions do not save it.
type Handler struct {
	base           *core.BaseHandler
	descriptorPath string
}

func NewHandler(base *core.BaseHandler, descriptorPath string) *Handler {
	return &Handler{base: base, descriptorPath: descriptorPath}
}

func (h *Handler) open(ctx context.Context) (*vbox.Supervisor, error) {
	descriptor, err := core.LoadDescriptor(h.descriptorPath)
	if err != nil {
		return nil, err
	}
	sup, err := vbox.New(ctx, h.base.Conf, descriptor)
	if err != nil {
		return nil, fmt.Errorf("open supervisor: %w", err)
	}
	return sup, nil
}

func (h *Handler) Register(ctx context.Context) error {
	sup, err := h.open(ctx)
	if err != nil {
		return err
	}
	if err := sup.Registry.RegisterVM(ctx, sup.Descriptor, sup.Runtime); err != nil {
		return err
	}
	return sup.SaveState(ctx)
}

func (h *Handler) Deregister(ctx context.Context, deleteMedia bool) error {
	sup, err := h.open(ctx)
	if err != nil {
		return err
	}
	return sup.Registry.DeregisterVM(ctx, sup.Descriptor.MasterName,
		sup.Conf.ImagePath(sup.Descriptor.ImageFilename),
		sup.Conf.FloppyImagePath(sup.Descriptor.FloppyImageFilename),
		deleteMedia)
}

func (h *Handler) Run(ctx context.Context, elapsed time.Duration) error {
	sup, err := h.open(ctx)
	if err != nil {
		return err
	}
	if err := sup.Lifecycle.Run(ctx, sup.Runtime, sup.Snapshots, elapsed); err != nil {
		return err
	}
	return sup.SaveState(ctx)
}

func (h *Handler) Start(ctx context.Context) error {
	sup, err := h.open(ctx)
	if err != nil {
		return err
	}
	return sup.Lifecycle.Start(ctx, sup.Runtime)
}

func (h *Handler) Stop(ctx context.Context) error {
	sup, err := h.open(ctx)
	if err != nil {
		return err
	}
	return sup.Lifecycle.Stop(ctx, sup.Runtime)
}

func (h *Handler) Poweroff(ctx context.Context) error {
	sup, err := h.open(ctx)
	if err != nil {
		return err
	}
	return sup.Lifecycle.Poweroff(ctx, sup.Runtime)
}

func (h *Handler) Pause(ctx context.Context) error {
	sup, err := h.open(ctx)
	if err != nil {
		return err
	}
	return sup.Lifecycle.Pause(ctx, sup.Runtime)
}

func (h *Handler) Resume(ctx context.Context) error {
	sup, err := h.open(ctx)
	if err != nil {
		return err
	}
	return sup.Lifecycle.Resume(ctx, sup.Runtime)
}

func (h *Handler) Cleanup(ctx context.Context) error {
	sup, err := h.open(ctx)
	if err != nil {
		return err
	}
	if err := sup.Lifecycle.Cleanup(ctx, sup.Runtime); err != nil {
		return err
	}
	return sup.TeardownServiceDaemon()
}

func (h *Handler) Status(ctx context.Context) (string, error) {
	sup, err := h.open(ctx)
	if err != nil {
		return "", err
	}
	registered, err := sup.Registry.IsRegistered(ctx, sup.Descriptor.MasterName)
	if err != nil {
		return "", err
	}
	if registered {
		if err := sup.Registry.Poll(ctx, sup.Runtime, true); err != nil {
			return "", err
		}
		if err := sup.SaveState(ctx); err != nil {
			return "", err
		}
	}
	state := vbox.CurrentState(sup.Runtime, registered)
	return fmt.Sprintf("%s online=%v suspended=%v crashed=%v network_suspended=%v",
		state, sup.Runtime.Online, sup.Runtime.Suspended, sup.Runtime.Crashed, sup.Runtime.NetworkSuspended), nil
}

func (h *Handler) CreateSnapshot(ctx context.Context, elapsed time.Duration) error {
	sup, err := h.open(ctx)
	if err != nil {
		return err
	}
	return sup.Snapshots.CreateSnapshot(ctx, sup.Runtime, elapsed)
}

func (h *Handler) RestoreSnapshot(ctx context.Context) error {
	sup, err := h.open(ctx)
	if err != nil {
		return err
	}
	return sup.Snapshots.RestoreSnapshot(ctx, sup.Runtime)
}

func (h *Handler) CleanupSnapshots(ctx context.Context, deleteActive bool) error {
	sup, err := h.open(ctx)
	if err != nil {
		return err
	}
	return sup.Snapshots.CleanupSnapshots(ctx, sup.Runtime, deleteActive)
}

func (h *Handler) SetCPUUsage(ctx context.Context, pct int) error {
	sup, err := h.open(ctx)
	if err != nil {
		return err
	}
	return sup.Registry.SetCPUUsage(ctx, sup.Runtime, pct)
}

func (h *Handler) SetNetworkUsage(ctx context.Context, kbps int) error {
	sup, err := h.open(ctx)
	if err != nil {
		return err
	}
	return sup.Registry.SetNetworkUsage(ctx, sup.Runtime, kbps)
}

func (h *Handler) SetNetworkAccess(ctx context.Context, enabled bool) error {
	sup, err := h.open(ctx)
	if err != nil {
		return err
	}
	return sup.Registry.SetNetworkAccess(ctx, sup.Runtime, enabled)
}

func (h *Handler) ReadFloppy(ctx context.Context) ([]byte, error) {
	sup, err := h.open(ctx)
	if err != nil {
		return nil, err
	}
	return sup.Floppy.ReadFloppy(ctx)
}

func (h *Handler) WriteFloppy(ctx context.Context, data []byte) (int, error) {
	sup, err := h.open(ctx)
	if err != nil {
		return 0, err
	}
	return sup.Floppy.WriteFloppy(ctx, data)
}

func (h *Handler) GetVMLog(ctx context.Context) (string, error) {
	sup, err := h.open(ctx)
	if err != nil {
		return "", err
	}
	return sup.Registry.GetVMLog(ctx, sup.Runtime)
}

func (h *Handler) GetSystemLog(ctx context.Context) (string, error) {
	sup, err := h.open(ctx)
	if err != nil {
		return "", err
	}
	return vbox.GetSystemLog(sup.Conf, sup.Env.HomeDirectory)
}

func (h *Handler) Ports(ctx context.Context) (pfHostPort, rdHostPort int, err error) {
	sup, err := h.open(ctx)
	if err != nil {
		return 0, 0, err
	}
	return sup.Runtime.PFHostPort, sup.Runtime.RDHostPort, nil
}
