package config

import "path/filepath"

// Every on-disk artifact path is derived from Config here rather than
// constructed ad hoc at call sites.

// ImagePath returns the path to the primary disk image, relative to SlotDir.
func (c *Config) ImagePath(imageFilename string) string {
	return filepath.Join(c.SlotDir, imageFilename)
}

// FloppyImagePath returns the path to the synthetic floppy image.
func (c *Config) FloppyImagePath(floppyImageFilename string) string {
	return filepath.Join(c.SlotDir, floppyImageFilename)
}

// SharedFolderPath returns the slot's shared-folder root.
func (c *Config) SharedFolderPath() string {
	return filepath.Join(c.SlotDir, "shared")
}

// SystemLogCopyPath is where get_system_log copies the hypervisor service
// log to dodge the source file's own locking.
func (c *Config) SystemLogCopyPath() string {
	return filepath.Join(c.SlotDir, "VBoxSVC.log")
}

// StateCacheFile and StateCacheLock back the ephemeral, non-authoritative
// runtime-state cache (allocated ports, VM frontend PID, recorded
// VirtualBox version).
func (c *Config) StateCacheFile() string { return filepath.Join(c.SlotDir, ".vbox-state.json") }
func (c *Config) StateCacheLock() string { return filepath.Join(c.SlotDir, ".vbox-state.lock") }

// SandboxHomeDir is the per-job hypervisor home directory used when
// Sandbox is set: <project_dir>/../virtualbox.
func (c *Config) SandboxHomeDir() string {
	return filepath.Join(c.ProjectDir, "..", "virtualbox")
}

// ServiceDaemonPIDFile tracks the sandboxed service daemon's PID across
// process invocations, since each CLI action runs in its own process.
func (c *Config) ServiceDaemonPIDFile() string {
	return filepath.Join(c.SlotDir, ".vboxsvc.pid")
}
