package vbox

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	units "github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/projecteru2/core/log"

	"github.com/vboxwrapper/vboxwrapper/config"
	"github.com/vboxwrapper/vboxwrapper/types"
)

// uuidTokenPrefix marks "(UUID: <uuid>)" tokens the way hdd-info and
// snapshot listings embed them.
const uuidTokenPrefix = "(UUID: "

// Registry drives createvm/modifyvm/storagectl/... to bring the
// hypervisor's registered VM in line with a Descriptor.
type Registry struct {
	inv  *RetryingInvoker
	conf *config.Config
}

func NewRegistry(inv *RetryingInvoker, conf *config.Config) *Registry {
	return &Registry{inv: inv, conf: conf}
}

// RegisterVM runs the full createvm/modifyvm/storagectl/storageattach
// sequence for d. Ordering is fixed: each
// subcommand has preconditions only the previous step satisfies.
func (r *Registry) RegisterVM(ctx context.Context, d *types.Descriptor, rt *types.RuntimeState) error {
	d.Normalize()
	logger := log.WithFunc("vbox.registry")

	if _, _, err := r.inv.Invoke(ctx, "createvm", []string{
		"createvm", "--name", d.MasterName, "--register",
		"--basefolder", r.conf.SlotDir, "--ostype", d.OSTypeTag,
	}, 0, true); err != nil {
		return fmt.Errorf("createvm: %w", err)
	}

	modifyArgs := []string{
		"modifyvm", d.MasterName,
		"--description", d.MasterDescription,
		"--cpus", d.CPUCount,
		"--memory", d.MemoryMB,
		"--acpi", "on",
		"--ioapic", "on",
		"--boot1", "disk", "--boot2", "none", "--boot3", "none", "--boot4", "none",
		"--nic1", "nat", "--natdnsproxy1", "on",
		"--cableconnected1", "off",
		"--usb", "off",
		"--uart1", "off",
		"--lpt1", "off", "--lpt2", "off",
		"--audio", "none",
		"--clipboard", "disabled",
		"--draganddrop", "disabled",
	}

	if !d.Is64Bit() {
		features := DetectHostFeatures()
		if ShouldDisableHWVirt(features, r.currentVersion(rt), rt.HWVirtFailed, d.CPUCountInt()) {
			modifyArgs = append(modifyArgs, "--hwvirtex", "off")
			logger.Infof(ctx, "%s: disabling hardware virtualization for 32-bit guest", d.MasterName)
		}
	}

	if _, _, err := r.inv.Invoke(ctx, "modifyvm", modifyArgs, 0, true); err != nil {
		return fmt.Errorf("modifyvm: %w", err)
	}
	if mb, err := strconv.ParseInt(d.MemoryMB, 10, 64); err == nil {
		logger.Infof(ctx, "%s: %d vCPU, %s memory", d.MasterName, d.CPUCountInt(), units.BytesSize(float64(mb)*units.MiB))
	}

	if err := r.attachStorage(ctx, d); err != nil {
		return err
	}

	if d.EnableFloppyIO {
		if err := r.attachFloppy(ctx, d); err != nil {
			return err
		}
	}

	if d.EnableNetwork {
		if err := r.SetNetworkAccess(ctx, rt, true); err != nil {
			return err
		}
		if d.PFGuestPort != 0 {
			port, err := AllocatePort(rt.PFHostPort)
			if err != nil {
				return fmt.Errorf("allocate port-forward host port: %w", err)
			}
			rt.PFHostPort = port
			rule := fmt.Sprintf("vboxwrapper,tcp,127.0.0.1,%d,,%d", port, d.PFGuestPort)
			if _, _, err := r.inv.Invoke(ctx, "modifyvm-natpf", []string{
				"modifyvm", d.MasterName, "--natpf1", rule,
			}, 0, true); err != nil {
				return fmt.Errorf("add NAT port-forward rule: %w", err)
			}
		}
	}

	if d.EnableRemoteDesktop {
		installed, err := r.IsExtPackInstalled(ctx)
		if err != nil {
			return err
		}
		if installed {
			port, err := AllocatePort(0)
			if err != nil {
				return fmt.Errorf("allocate remote desktop port: %w", err)
			}
			rt.RDHostPort = port
			if _, _, err := r.inv.Invoke(ctx, "modifyvm-vrde", []string{
				"modifyvm", d.MasterName,
				"--vrde", "on", "--vrdeauthtype", "null", "--vrdeport", fmt.Sprint(port),
			}, 0, true); err != nil {
				return fmt.Errorf("enable VRDE: %w", err)
			}
		}
	}

	if d.EnableSharedDirectory {
		if _, _, err := r.inv.Invoke(ctx, "sharedfolder", []string{
			"sharedfolder", "add", d.MasterName,
			"--name", "shared", "--hostpath", r.conf.SharedFolderPath(),
		}, 0, true); err != nil {
			return fmt.Errorf("add shared folder: %w", err)
		}
	}

	return nil
}

func (r *Registry) attachStorage(ctx context.Context, d *types.Descriptor) error {
	controllerArgs := []string{
		"storagectl", d.MasterName,
		"--name", "Hard Disk Controller",
		"--add", string(d.DiskControllerType),
		"--controller", d.ControllerModel(),
		"--hostiocache", "off",
	}
	if d.DiskControllerType == types.DiskControllerSATA {
		controllerArgs = append(controllerArgs, "--sataportcount", "1")
	}
	if _, _, err := r.inv.Invoke(ctx, "storagectl-disk", controllerArgs, 0, true); err != nil {
		return fmt.Errorf("add hard disk controller: %w", err)
	}

	if _, _, err := r.inv.Invoke(ctx, "storageattach-disk", []string{
		"storageattach", d.MasterName,
		"--storagectl", "Hard Disk Controller",
		"--port", "0", "--device", "0", "--type", "hdd",
		"--medium", r.conf.ImagePath(d.ImageFilename),
		"--setuuid", "",
	}, 0, true); err != nil {
		return fmt.Errorf("attach primary disk: %w", err)
	}
	return nil
}

func (r *Registry) attachFloppy(ctx context.Context, d *types.Descriptor) error {
	if err := CreateFloppyImage(r.conf.FloppyImagePath(d.FloppyImageFilename)); err != nil {
		return fmt.Errorf("create floppy image: %w", err)
	}
	if _, _, err := r.inv.Invoke(ctx, "storagectl-floppy", []string{
		"storagectl", d.MasterName, "--name", "Floppy Controller", "--add", "floppy",
	}, 0, true); err != nil {
		return fmt.Errorf("add floppy controller: %w", err)
	}
	if _, _, err := r.inv.Invoke(ctx, "storageattach-floppy", []string{
		"storageattach", d.MasterName,
		"--storagectl", "Floppy Controller",
		"--port", "0", "--device", "0", "--type", "fdd",
		"--medium", r.conf.FloppyImagePath(d.FloppyImageFilename),
	}, 0, true); err != nil {
		return fmt.Errorf("attach floppy: %w", err)
	}
	return nil
}

// DeregisterVM removes storage controllers, unregisters with --delete, and
// closes the disk and floppy media.
func (r *Registry) DeregisterVM(ctx context.Context, vmName, imagePath, floppyPath string, deleteMedia bool) error {
	_, _, _ = r.inv.Invoke(ctx, "storagectl-remove-disk", []string{"storagectl", vmName, "--name", "Hard Disk Controller", "--remove"}, 0, false)
	_, _, _ = r.inv.Invoke(ctx, "storagectl-remove-floppy", []string{"storagectl", vmName, "--name", "Floppy Controller", "--remove"}, 0, false)

	if _, _, err := r.inv.Invoke(ctx, "unregistervm", []string{"unregistervm", vmName, "--delete"}, 0, true); err != nil {
		return fmt.Errorf("unregistervm: %w", err)
	}

	closeArgs := func(medium string) []string {
		args := []string{"closemedium", "disk", medium}
		if deleteMedia {
			args = append(args, "--delete")
		}
		return args
	}
	if imagePath != "" {
		_, _, _ = r.inv.Invoke(ctx, "closemedium-disk", closeArgs(imagePath), 0, false)
	}
	if floppyPath != "" {
		floppyArgs := []string{"closemedium", "floppy", floppyPath}
		if deleteMedia {
			floppyArgs = append(floppyArgs, "--delete")
		}
		_, _, _ = r.inv.Invoke(ctx, "closemedium-floppy", floppyArgs, 0, false)
	}
	return nil
}

// DeregisterStaleVM handles a disk registered to a VM that no longer
// exists: recover the owning VM's UUID from showhdinfo and deregister it
// by that name, or fall back to closing the media directly.
func (r *Registry) DeregisterStaleVM(ctx context.Context, imagePath, floppyPath string, deleteMedia bool) error {
	if imagePath == "" {
		return nil
	}

	_, output, err := r.inv.Invoke(ctx, "showhdinfo", []string{"showhdinfo", imagePath}, 0, true)
	if err != nil {
		return fmt.Errorf("showhdinfo: %w", err)
	}

	if id, ok := extractUUIDToken(output); ok {
		return r.DeregisterVM(ctx, id, imagePath, floppyPath, false)
	}

	_, _, _ = r.inv.Invoke(ctx, "closemedium-disk", []string{"closemedium", "disk", imagePath}, 0, false)
	if floppyPath != "" {
		_, _, _ = r.inv.Invoke(ctx, "closemedium-floppy", []string{"closemedium", "floppy", floppyPath}, 0, false)
	}
	return nil
}

// IsRegistered reports whether the named VM is known to the hypervisor.
func (r *Registry) IsRegistered(ctx context.Context, vmName string) (bool, error) {
	_, output, err := r.inv.Invoke(ctx, "showvminfo", []string{"showvminfo", vmName, "--machinereadable"}, 0, true)
	if err != nil {
		if strings.Contains(output, "VBOX_E_OBJECT_NOT_FOUND") {
			return false, nil
		}
		return false, fmt.Errorf("showvminfo: %w", err)
	}
	return true, nil
}

// IsHDDRegistered reports whether the disk image at imagePath is known to
// the hypervisor's media registry.
func (r *Registry) IsHDDRegistered(ctx context.Context, imagePath string) (bool, error) {
	_, output, err := r.inv.Invoke(ctx, "showhdinfo", []string{"showhdinfo", imagePath}, 0, true)
	if err != nil {
		if strings.Contains(output, "VBOX_E_FILE_ERROR") ||
			strings.Contains(output, "VBOX_E_OBJECT_NOT_FOUND") ||
			strings.Contains(output, "does not match the value") {
			return false, nil
		}
		return false, fmt.Errorf("showhdinfo: %w", err)
	}
	return true, nil
}

// IsExtPackInstalled reports whether the extension pack needed for remote
// desktop support is present.
func (r *Registry) IsExtPackInstalled(ctx context.Context) (bool, error) {
	_, output, err := r.inv.Invoke(ctx, "list-extpacks", []string{"list", "extpacks"}, 0, true)
	if err != nil {
		return false, fmt.Errorf("list extpacks: %w", err)
	}
	return strings.Contains(output, "Oracle VM VirtualBox Extension Pack") &&
		strings.Contains(output, "VBoxVRDP"), nil
}

// IsSystemReady runs list hostinfo and reports whether the CLI channel and
// host driver both look healthy, returning a diagnostic message otherwise.
func (r *Registry) IsSystemReady(ctx context.Context) (bool, string, error) {
	_, output, err := r.inv.Invoke(ctx, "list-hostinfo", []string{"list", "hostinfo"}, 0, true)
	if err != nil {
		return false, "", fmt.Errorf("list hostinfo: %w", err)
	}
	if !strings.Contains(output, "Processor count:") {
		return false, "hypervisor CLI channel appears broken (no processor count reported)", nil
	}
	if strings.Contains(output, "WARNING: The vboxdrv kernel module is not loaded.") {
		return false, "host driver module is not loaded", nil
	}
	return true, "", nil
}

// SetNetworkAccess toggles the primary NIC's cable. The effect is observed
// by the hypervisor asynchronously; rt.NetworkSuspended is updated
// optimistically.
func (r *Registry) SetNetworkAccess(ctx context.Context, rt *types.RuntimeState, enabled bool) error {
	state := "off"
	if enabled {
		state = "on"
	}
	if _, _, err := r.inv.Invoke(ctx, "modifyvm-cable", []string{
		"modifyvm", rt.VMName, "--cableconnected1", state,
	}, 0, true); err != nil {
		return fmt.Errorf("set network access: %w", err)
	}
	rt.NetworkSuspended = !enabled
	return nil
}

func (r *Registry) currentVersion(rt *types.RuntimeState) string {
	return rt.VirtualBoxVersion
}

func extractUUIDToken(output string) (string, bool) {
	idx := strings.Index(output, uuidTokenPrefix)
	if idx < 0 {
		return "", false
	}
	rest := output[idx+len(uuidTokenPrefix):]
	end := strings.IndexByte(rest, ')')
	if end < 0 {
		return "", false
	}
	id := strings.TrimSpace(rest[:end])
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}
