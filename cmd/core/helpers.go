// Package core holds CLI plumbing shared by every vbox subcommand: config
// loading, descriptor loading, and the operator-facing error format.
package core

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vboxwrapper/vboxwrapper/config"
	"github.com/vboxwrapper/vboxwrapper/types"
)

// BaseHandler carries the configuration every subcommand needs before it
// can build a Supervisor: the slot layout and retry/timeout policy.
type BaseHandler struct {
	Conf *config.Config
}

// NewBaseHandler loads config from the --config flag (if set) merged with
// viper-bound flags/env, then applies any CLI overrides for slot-dir and
// vboxmanage-binary.
func NewBaseHandler(cmd *cobra.Command) (*BaseHandler, error) {
	configPath, _ := cmd.Flags().GetString("config")
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if slotDir := viper.GetString("slot-dir"); slotDir != "" {
		conf.SlotDir = slotDir
	}
	if binary := viper.GetString("vboxmanage-binary"); binary != "" {
		conf.VBoxManageBinary = binary
	}
	if viper.GetBool("sandbox") {
		conf.Sandbox = true
	}

	return &BaseHandler{Conf: conf}, nil
}

// LoadDescriptor reads a job's VM descriptor from a JSON file.
func LoadDescriptor(path string) (*types.Descriptor, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied descriptor path
	if err != nil {
		return nil, fmt.Errorf("read descriptor %s: %w", path, err)
	}
	var d types.Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse descriptor %s: %w", path, err)
	}
	d.Normalize()
	return &d, nil
}

// FormatFailure renders an operation failure the way an operator expects
// to see it: a timestamp prefix, the operation name, the numeric
// hypervisor code when known, the CLI arguments, and the combined output
// tail.
func FormatFailure(op string, args []string, output string, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s failed: %v", time.Now().UTC().Format(time.RFC3339), op, err)
	if len(args) > 0 {
		fmt.Fprintf(&b, "\n  args: %s", strings.Join(args, " "))
	}
	if output != "" {
		fmt.Fprintf(&b, "\n  output: %s", strings.TrimSpace(output))
	}
	return b.String()
}
