// Package config holds the supervisor's configuration: the slot directory
// layout, timing/retry policy, and logging setup. Mirrors the shape of a
// typical cobra/viper-bound config struct: plain fields with json tags, a
// DefaultConfig, and a LoadConfig that tolerates a missing file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	coretypes "github.com/projecteru2/core/types"
)

// Config holds the supervisor's tunables for a single job slot.
type Config struct {
	// SlotDir is the job's working directory — the base folder for the
	// VM's disk image, floppy image, shared folder, and log copies.
	SlotDir string `json:"slot_dir"`

	// VBoxManageBinary is the hypervisor control tool; resolved via PATH
	// when it has no directory component.
	VBoxManageBinary string `json:"vboxmanage_binary"`

	// Sandbox marks a job running under an unprivileged sandbox account:
	// the Environment Bootstrapper overrides the hypervisor home
	// directory and (on Windows) launches the service daemon explicitly.
	Sandbox bool `json:"sandbox"`

	// ProjectDir is the parent of SlotDir; used to derive the sandboxed
	// hypervisor home (<project_dir>/../virtualbox) when Sandbox is set.
	ProjectDir string `json:"project_dir"`

	PollInterval       Duration `json:"poll_interval"`
	StartTimeoutSeconds int      `json:"start_timeout_seconds"`
	StopTimeoutSeconds  int      `json:"stop_timeout_seconds"`
	CleanupSleepSeconds int      `json:"cleanup_sleep_seconds"`

	RetryMaxAttempts   int      `json:"retry_max_attempts"`
	RetryBaseInterval  Duration `json:"retry_base_interval"`

	Log coretypes.ServerLogConfig `json:"log"`
}

// DefaultConfig returns a Config with the documented defaults
// (300s start budget, 1s poll interval, 5 retries, 5s cleanup sleep).
func DefaultConfig() *Config {
	return &Config{
		VBoxManageBinary:    "VBoxManage",
		PollInterval:        Duration{Seconds: 1},
		StartTimeoutSeconds: 300, //nolint:mnd
		StopTimeoutSeconds:  30,  //nolint:mnd
		CleanupSleepSeconds: 5,   //nolint:mnd
		RetryMaxAttempts:    5,   //nolint:mnd
		RetryBaseInterval:   Duration{Seconds: 1},
		Log: coretypes.ServerLogConfig{
			Level:      "info",
			MaxSize:    100, //nolint:mnd
			MaxAge:     28,  //nolint:mnd
			MaxBackups: 3,   //nolint:mnd
		},
	}
}

// Duration is a plain-seconds duration, serializable as a JSON number so
// config files stay readable without encoding/json duration quirks.
type Duration struct {
	Seconds float64 `json:"seconds"`
}

// AsTime converts Duration to a time.Duration for use with the standard
// library's timers and contexts.
func (d Duration) AsTime() time.Duration {
	return time.Duration(d.Seconds * float64(time.Second))
}

// LoadConfig loads configuration from file, falling back to defaults when
// the path is empty or the file does not exist.
func LoadConfig(path string) (*Config, error) {
	conf := DefaultConfig()
	if path == "" {
		return conf, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // config path from CLI flag
	if err != nil {
		if os.IsNotExist(err) {
			return conf, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if conf.RetryMaxAttempts <= 0 {
		conf.RetryMaxAttempts = 5 //nolint:mnd
	}
	return conf, nil
}
