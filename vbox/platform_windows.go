//go:build windows

package vbox

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows/registry"
)

// installDirRegistryKey and installDirRegistryValue name the registry
// location the real hypervisor installer writes.
const (
	installDirRegistryKey   = `SOFTWARE\Oracle\VirtualBox`
	installDirRegistryValue = "InstallDir"
)

type windowsPlatform struct{}

func newPlatform() Platform { return windowsPlatform{} }

// queryInstallDir reads HKLM\SOFTWARE\Oracle\VirtualBox\InstallDir, the
// value the real hypervisor installer writes. It's a var, not a plain
// function, so a test can swap it out without touching the real registry.
var queryInstallDir = func() (string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, installDirRegistryKey, registry.QUERY_VALUE)
	if err != nil {
		return "", fmt.Errorf("open registry key %s: %w", installDirRegistryKey, err)
	}
	defer key.Close() //nolint:errcheck

	value, _, err := key.GetStringValue(installDirRegistryValue)
	if err != nil {
		return "", fmt.Errorf("read registry value %s\\%s: %w", installDirRegistryKey, installDirRegistryValue, err)
	}
	return value, nil
}

func (windowsPlatform) InstallDir() (string, error) { return queryInstallDir() }

// PrependPath prepends dir to this process's PATH so a bare-name
// VBoxManage.exe invocation resolves without joining the install directory
// onto every CLI argument list.
func (windowsPlatform) PrependPath(dir string) error {
	if dir == "" {
		return nil
	}
	current := os.Getenv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+current); err != nil {
		return fmt.Errorf("prepend %s to PATH: %w", dir, err)
	}
	return nil
}

func (windowsPlatform) DefaultHome() (string, error) {
	profile := os.Getenv("USERPROFILE")
	if profile == "" {
		return "", fmt.Errorf("USERPROFILE is not set")
	}
	return profile + `\.VirtualBox`, nil
}

// LaunchServiceDaemon launches VBoxSVC.exe detached with log rotation,
// so subsequent CLI calls inherit the sandbox's
// environment rather than svchost.exe's.
func (windowsPlatform) LaunchServiceDaemon(home string) (*ProcessHandle, error) {
	cmd := exec.Command("VBoxSVC.exe", "--logrotate", "1", "--logsize", "1024000") //nolint:gosec
	cmd.Dir = home
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.DETACHED_PROCESS}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch VBoxSVC.exe: %w", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return &ProcessHandle{PID: pid}, nil
}

// SetPriority maps PriorityClass onto Windows priority classes via the
// running process's handle.
func (windowsPlatform) SetPriority(pid int, class PriorityClass) error {
	if pid <= 0 {
		return nil
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	priorityClass := uint32(0x00000020) // NORMAL_PRIORITY_CLASS
	if class == PriorityIdle {
		priorityClass = 0x00000040 // IDLE_PRIORITY_CLASS
	}
	return setProcessPriorityClass(proc.Pid, priorityClass)
}

var (
	modkernel32             = syscall.NewLazyDLL("kernel32.dll")
	procOpenProcess         = modkernel32.NewProc("OpenProcess")
	procSetPriorityClass    = modkernel32.NewProc("SetPriorityClass")
	procCloseHandle         = modkernel32.NewProc("CloseHandle")
	procTerminateProcess    = modkernel32.NewProc("TerminateProcess")
	processQueryInformation = uintptr(0x0400)
	processSetInformation   = uintptr(0x0200)
)

// setProcessPriorityClass opens pid with query/set-information rights and
// applies priorityClass, per get_vm_process_id's documented Windows handle
// requirements.
func setProcessPriorityClass(pid int, priorityClass uint32) error {
	handle, _, err := procOpenProcess.Call(
		processQueryInformation|processSetInformation,
		0,
		uintptr(pid),
	)
	if handle == 0 {
		return fmt.Errorf("OpenProcess pid %d: %w", pid, err)
	}
	defer procCloseHandle.Call(handle) //nolint:errcheck

	ok, _, err := procSetPriorityClass.Call(handle, uintptr(priorityClass))
	if ok == 0 {
		return fmt.Errorf("SetPriorityClass pid %d: %w", pid, err)
	}
	return nil
}

const processTerminate = uintptr(0x0001)

// IsProcessAlive opens pid for query access; success means it still exists.
func (windowsPlatform) IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	handle, _, _ := procOpenProcess.Call(processQueryInformation, 0, uintptr(pid))
	if handle == 0 {
		return false
	}
	procCloseHandle.Call(handle) //nolint:errcheck
	return true
}

// TerminateProcess calls the Win32 TerminateProcess API; there is no
// graceful-signal equivalent to SIGTERM for an arbitrary Windows process.
func (w windowsPlatform) TerminateProcess(pid int) error {
	if pid <= 0 || !w.IsProcessAlive(pid) {
		return nil
	}
	handle, _, err := procOpenProcess.Call(processTerminate, 0, uintptr(pid))
	if handle == 0 {
		return fmt.Errorf("OpenProcess pid %d: %w", pid, err)
	}
	defer procCloseHandle.Call(handle) //nolint:errcheck

	ok, _, err := procTerminateProcess.Call(handle, 0)
	if ok == 0 {
		return fmt.Errorf("TerminateProcess pid %d: %w", pid, err)
	}
	return nil
}
