package vbox

import (
	"os"
	"strings"
)

// HostFeatures summarizes the host CPU flags the hardware-virtualization
// decision consults.
type HostFeatures struct {
	VMX        bool // Intel VT-x
	SVM        bool // AMD-V
	Hypervisor bool // host CPU itself runs under a hypervisor (nested)
}

// DetectHostFeatures reads /proc/cpuinfo's "flags" line on POSIX. Absent
// or unparsable input yields all-false, the conservative choice (hardware
// acceleration gets disabled rather than silently assumed present).
func DetectHostFeatures() HostFeatures {
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return HostFeatures{}
	}
	for _, line := range strings.Split(string(data), "\n") {
		name, flags, ok := strings.Cut(line, ":")
		if !ok || !strings.HasPrefix(strings.TrimSpace(name), "flags") {
			continue
		}
		fields := strings.Fields(flags)
		var f HostFeatures
		for _, flag := range fields {
			switch flag {
			case "vmx":
				f.VMX = true
			case "svm":
				f.SVM = true
			case "hypervisor":
				f.Hypervisor = true
			}
		}
		return f
	}
	return HostFeatures{}
}

// ShouldDisableHWVirt implements the full 32-bit guest hardware-
// virtualization decision, including the runtime-version gate and the
// single-vCPU fallback for older runtimes.
//
// Disable when any holds:
//   - host lacks both vmx and svm,
//   - host itself is virtualized (nested),
//   - on runtimes newer than 7.2.16, a previous run recorded a VT-x failure,
//   - on older runtimes, the VM has a single vCPU.
func ShouldDisableHWVirt(f HostFeatures, runtimeVersion string, prevExtensionsDisabled bool, vCPUs int) bool {
	if !f.VMX && !f.SVM {
		return true
	}
	if f.Hypervisor {
		return true
	}
	if RuntimeNewerThan(runtimeVersion, 7, 2, 16) { //nolint:mnd
		return prevExtensionsDisabled
	}
	return vCPUs == 1
}

// RuntimeNewerThan reports whether runtimeVersion (formatted "X.Y.Z...")
// is strictly newer than major.minor.patch.
func RuntimeNewerThan(runtimeVersion string, major, minor, patch int) bool {
	rv := parseVersion(runtimeVersion)
	want := [3]int{major, minor, patch}
	for i := 0; i < 3; i++ {
		if rv[i] != want[i] {
			return rv[i] > want[i]
		}
	}
	return false
}

func parseVersion(v string) [3]int {
	var out [3]int
	parts := strings.SplitN(v, ".", 3) //nolint:mnd
	for i := 0; i < len(parts) && i < 3; i++ {
		n := 0
		for _, c := range parts[i] {
			if c < '0' || c > '9' {
				break
			}
			n = n*10 + int(c-'0') //nolint:mnd
		}
		out[i] = n
	}
	return out
}
