// Package types holds the data model shared across the supervisor: the
// job-supplied VM descriptor, the supervisor-owned runtime state, and the
// disk-controller vocabulary used when building CLI arguments.
package types

import (
	"strconv"
	"strings"
)

// DiskControllerType is one of the storage controller families the
// registry adapter knows how to wire up.
type DiskControllerType string

const (
	DiskControllerIDE  DiskControllerType = "ide"
	DiskControllerSATA DiskControllerType = "sata"
	DiskControllerSCSI DiskControllerType = "scsi"
	DiskControllerSAS  DiskControllerType = "sas"
)

// DefaultControllerModel returns the model name conventionally paired with
// each controller type, mirroring what register_vm would pick absent an
// explicit override.
func DefaultControllerModel(t DiskControllerType) string {
	switch t {
	case DiskControllerSATA:
		return "IntelAhci"
	case DiskControllerSCSI:
		return "LsiLogic"
	case DiskControllerSAS:
		return "LsiLogicSAS"
	case DiskControllerIDE:
		fallthrough
	default:
		return "PIIX4"
	}
}

// Descriptor is the job-supplied, immutable-over-a-run VM configuration.
// It is handed to the supervisor read-only.
type Descriptor struct {
	MasterName        string
	MasterDescription string

	// OSTypeTag is the hypervisor-specific guest OS selector. Presence of
	// the substring "_64" means a 64-bit guest.
	OSTypeTag string

	// CPUCount and MemoryMB are kept as strings: both are interpolated
	// directly into CLI argument lists, and BOINC descriptors carry them
	// as strings end to end.
	CPUCount string
	MemoryMB string

	DiskControllerType  DiskControllerType
	DiskControllerModel string

	// ImageFilename is relative to the slot directory.
	ImageFilename       string
	FloppyImageFilename string

	EnableNetwork         bool
	EnableSharedDirectory bool
	EnableFloppyIO        bool
	EnableRemoteDesktop   bool
	EnableCERNDataFormat  bool
	Headless              bool
	RegisterOnly          bool

	// PFGuestPort: if non-zero, a TCP forwarding rule maps
	// 127.0.0.1:pf_host_port -> guest:PFGuestPort.
	PFGuestPort int
}

// Is64Bit reports whether the guest OS type implies a 64-bit guest.
func (d *Descriptor) Is64Bit() bool {
	return strings.Contains(d.OSTypeTag, "_64")
}

// CPUCountInt parses CPUCount, defaulting to 1 when it is empty or
// unparsable.
func (d *Descriptor) CPUCountInt() int {
	n, err := strconv.Atoi(strings.TrimSpace(d.CPUCount))
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

// ControllerModel returns DiskControllerModel if set, else the default for
// DiskControllerType.
func (d *Descriptor) ControllerModel() string {
	if d.DiskControllerModel != "" {
		return d.DiskControllerModel
	}
	return DefaultControllerModel(d.DiskControllerType)
}

// Normalize fills in the controller-type default (ide) when unset, matching
// register_vm's documented default.
func (d *Descriptor) Normalize() {
	if d.DiskControllerType == "" {
		d.DiskControllerType = DiskControllerIDE
	}
}
