//go:build !windows

package vbox

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	homedir "github.com/mitchellh/go-homedir"
)

type posixPlatform struct{}

func newPlatform() Platform { return posixPlatform{} }

// InstallDir trusts PATH on POSIX.
func (posixPlatform) InstallDir() (string, error) { return "", nil }

// PrependPath is a no-op on POSIX: PATH is trusted as-is.
func (posixPlatform) PrependPath(string) error { return nil }

func (posixPlatform) DefaultHome() (string, error) {
	home, err := homedir.Dir()
	if err != nil || home == "" {
		return "", fmt.Errorf("resolve $HOME: %w", err)
	}
	return home + string(os.PathSeparator) + ".VirtualBox", nil
}

// LaunchServiceDaemon is a no-op on POSIX: VBoxSVC is spawned on demand by
// VBoxManage itself.
func (posixPlatform) LaunchServiceDaemon(_ string) (*ProcessHandle, error) { return nil, nil }

// SetPriority applies setpriority(2); PriorityIdle maps to the lowest
// "nice" class reachable without elevated privileges.
func (posixPlatform) SetPriority(pid int, class PriorityClass) error {
	if pid <= 0 {
		return nil
	}
	nice := 0
	if class == PriorityIdle {
		nice = 19 //nolint:mnd
	}
	if err := syscall.Setpriority(syscall.PRIO_PROCESS, pid, nice); err != nil {
		if errIsNoSuchProcess(err) {
			return nil
		}
		return fmt.Errorf("setpriority pid %d: %w", pid, err)
	}
	return nil
}

func errIsNoSuchProcess(err error) bool {
	errno, ok := err.(syscall.Errno)
	return ok && errno == syscall.ESRCH
}

// IsProcessAlive sends signal 0: no signal is delivered, only existence
// and permission are checked.
func (posixPlatform) IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

// TerminateProcess sends SIGTERM, then SIGKILL if the process ignores it.
func (posixPlatform) TerminateProcess(pid int) error {
	if pid <= 0 {
		return nil
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errIsNoSuchProcess(err) || errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return proc.Kill()
	}
	var self posixPlatform
	for i := 0; i < 20; i++ {
		if !self.IsProcessAlive(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return proc.Kill()
}
