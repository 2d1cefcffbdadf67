package vbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/projecteru2/core/log"

	"github.com/vboxwrapper/vboxwrapper/config"
	"github.com/vboxwrapper/vboxwrapper/utils"
)

// Environment is the result of bootstrapping the supervisor's view of the
// hypervisor installation: its invocation binary, home directory, and
// reported version.
type Environment struct {
	Binary        string
	HomeDirectory string
	Version       string
	ServiceHandle *ProcessHandle
}

// Bootstrap resolves the hypervisor install directory, sets VBOX_USER_HOME
// (overriding to the sandbox location when conf.Sandbox is set), launches
// the service daemon explicitly on Windows sandboxes, and records the
// reported version via "--version".
func Bootstrap(ctx context.Context, conf *config.Config) (*Environment, error) {
	logger := log.WithFunc("vbox.bootstrap")

	installDir, err := currentPlatform.InstallDir()
	if err != nil {
		return nil, fmt.Errorf("resolve install directory: %w", err)
	}
	if err := currentPlatform.PrependPath(installDir); err != nil {
		return nil, fmt.Errorf("prepend install directory to PATH: %w", err)
	}

	binary := conf.VBoxManageBinary
	if installDir != "" && filepath.Dir(binary) == "." {
		binary = filepath.Join(installDir, binary)
	}

	home, err := resolveHome(conf)
	if err != nil {
		return nil, fmt.Errorf("resolve hypervisor home: %w", err)
	}
	if err := os.Setenv("VBOX_USER_HOME", home); err != nil {
		return nil, fmt.Errorf("set VBOX_USER_HOME: %w", err)
	}
	logger.Infof(ctx, "hypervisor home set to %s (sandbox=%v)", home, conf.Sandbox)

	var handle *ProcessHandle
	if conf.Sandbox {
		handle, err = launchOrAdoptServiceDaemon(ctx, conf, home)
		if err != nil {
			return nil, fmt.Errorf("launch sandboxed service daemon: %w", err)
		}
	}

	inv := NewInvoker(binary, nil)
	_, output, err := inv.Invoke(ctx, "version", []string{"--version"}, 0)
	if err != nil {
		return nil, fmt.Errorf("query hypervisor version: %w", err)
	}

	env := &Environment{
		Binary:        binary,
		HomeDirectory: home,
		Version:       firstLine(output),
		ServiceHandle: handle,
	}
	logger.Infof(ctx, "hypervisor version %s at %s", env.Version, env.Binary)
	return env, nil
}

// launchOrAdoptServiceDaemon adopts an already-running sandboxed daemon by
// its tracked PID file when one is still alive, and otherwise launches a
// fresh one and records its PID for the next process invocation to find.
func launchOrAdoptServiceDaemon(ctx context.Context, conf *config.Config, home string) (*ProcessHandle, error) {
	logger := log.WithFunc("vbox.bootstrap")
	pidFile := conf.ServiceDaemonPIDFile()

	if pid, err := utils.ReadPIDFile(pidFile); err == nil && currentPlatform.IsProcessAlive(pid) {
		logger.Infof(ctx, "adopting sandboxed service daemon pid %d", pid)
		return &ProcessHandle{PID: pid}, nil
	}

	handle, err := currentPlatform.LaunchServiceDaemon(home)
	if err != nil {
		return nil, err
	}
	if handle == nil {
		return nil, nil
	}
	if err := utils.WritePIDFile(pidFile, handle.PID); err != nil {
		logger.Warnf(ctx, "write service daemon PID file: %v", err)
	}
	return handle, nil
}

// resolveHome implements the home-directory resolution order: VBOX_USER_HOME, if already
// set in the environment, is honored as-is; otherwise a sandboxed job, or a
// job with no $HOME to fall back on, gets <project_dir>/../virtualbox
// (created if missing), and everyone else gets the platform's per-user
// default.
func resolveHome(conf *config.Config) (string, error) {
	if existing := os.Getenv("VBOX_USER_HOME"); existing != "" {
		return existing, nil
	}
	if conf.Sandbox || homeMissingOnPOSIX() {
		home := conf.SandboxHomeDir()
		if err := utils.EnsureDirs(home); err != nil {
			return "", fmt.Errorf("create sandbox home: %w", err)
		}
		return home, nil
	}
	return currentPlatform.DefaultHome()
}

// homeMissingOnPOSIX reports whether the job is running on a POSIX system
// with no $HOME set, the other condition (besides conf.Sandbox) under which
// the sandbox home directory is used as a fallback.
func homeMissingOnPOSIX() bool {
	return runtime.GOOS != "windows" && os.Getenv("HOME") == ""
}
