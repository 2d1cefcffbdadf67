// Package cmd assembles the operator-facing CLI: a cobra root command with
// viper-bound global flags, delegating every lifecycle/snapshot/throttle
// action to the cmd/vbox subcommand tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vboxwrapper/vboxwrapper/cmd/core"
	vboxcmd "github.com/vboxwrapper/vboxwrapper/cmd/vbox"
)

// Execute runs the root command, exiting the process with a nonzero code
// on failure.
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "vboxwrapper",
		Short:         "supervise a single VM's lifecycle through a VirtualBox-style CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(cmd)
		},
	}

	root.PersistentFlags().String("config", "", "path to a JSON config file")
	root.PersistentFlags().String("slot-dir", "", "job slot directory (overrides config)")
	root.PersistentFlags().String("vboxmanage-binary", "", "hypervisor control tool (overrides config)")
	root.PersistentFlags().Bool("sandbox", false, "run under a sandboxed hypervisor home directory")

	_ = viper.BindPFlag("slot-dir", root.PersistentFlags().Lookup("slot-dir"))
	_ = viper.BindPFlag("vboxmanage-binary", root.PersistentFlags().Lookup("vboxmanage-binary"))
	_ = viper.BindPFlag("sandbox", root.PersistentFlags().Lookup("sandbox"))
	viper.SetEnvPrefix("VBOXWRAPPER")
	viper.AutomaticEnv()

	root.AddCommand(vboxcmd.NewCommand())
	return root
}

// setupLogging loads the config the same way a subcommand handler would and
// applies it, so log output from the rest of the invocation is routed and
// formatted per the operator's configured log settings.
func setupLogging(cmd *cobra.Command) error {
	base, err := core.NewBaseHandler(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return log.SetupLog(cmd.Context(), &base.Conf.Log, "")
}
