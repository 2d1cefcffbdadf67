package vbox

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vboxwrapper/vboxwrapper/cmd/core"
	"github.com/vboxwrapper/vboxwrapper/tail"
)

// NewCommand builds the "vbox" command tree: one subcommand per lifecycle,
// snapshot, throttle, floppy, and log action the supervisor exposes.
func NewCommand() *cobra.Command {
	var descriptorPath string

	root := &cobra.Command{
		Use:   "vbox",
		Short: "drive a single VM's lifecycle through the hypervisor CLI",
	}
	root.PersistentFlags().StringVar(&descriptorPath, "descriptor", "descriptor.json", "path to the VM descriptor JSON file")

	handlerFor := func(cmd *cobra.Command) (*Handler, error) {
		base, err := core.NewBaseHandler(cmd)
		if err != nil {
			return nil, err
		}
		return NewHandler(base, descriptorPath), nil
	}

	simple := func(use, short string, run func(h *Handler, cmd *cobra.Command) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, _ []string) error {
				h, err := handlerFor(cmd)
				if err != nil {
					return err
				}
				return run(h, cmd)
			},
		}
	}

	root.AddCommand(
		simple("register", "register the VM against its descriptor", func(h *Handler, cmd *cobra.Command) error {
			return h.Register(cmd.Context())
		}),
		deregisterCommand(handlerFor),
		runCommand(handlerFor),
		simple("start", "start the VM and wait for it to come online", func(h *Handler, cmd *cobra.Command) error {
			return h.Start(cmd.Context())
		}),
		simple("stop", "save state and stop the VM", func(h *Handler, cmd *cobra.Command) error {
			return h.Stop(cmd.Context())
		}),
		simple("poweroff", "power off the VM", func(h *Handler, cmd *cobra.Command) error {
			return h.Poweroff(cmd.Context())
		}),
		simple("pause", "pause the VM", func(h *Handler, cmd *cobra.Command) error {
			return h.Pause(cmd.Context())
		}),
		simple("resume", "resume the VM", func(h *Handler, cmd *cobra.Command) error {
			return h.Resume(cmd.Context())
		}),
		simple("cleanup", "power off, deregister, and delete media", func(h *Handler, cmd *cobra.Command) error {
			return h.Cleanup(cmd.Context())
		}),
		statusCommand(handlerFor),
		snapshotCommand(handlerFor),
		throttleCommand(handlerFor),
		floppyCommand(handlerFor),
		logsCommand(handlerFor),
		portsCommand(handlerFor),
	)

	return root
}

type handlerFactory func(cmd *cobra.Command) (*Handler, error)

func deregisterCommand(handlerFor handlerFactory) *cobra.Command {
	var deleteMedia bool
	cmd := &cobra.Command{
		Use:   "deregister",
		Short: "unregister the VM and close its media",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := handlerFor(cmd)
			if err != nil {
				return err
			}
			return h.Deregister(cmd.Context(), deleteMedia)
		},
	}
	cmd.Flags().BoolVar(&deleteMedia, "delete-media", false, "also delete the backing disk and floppy images")
	return cmd
}

func runCommand(handlerFor handlerFactory) *cobra.Command {
	var elapsedSeconds int64
	cmd := &cobra.Command{
		Use:   "run",
		Short: "register if needed, reset to a clean state, and start",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := handlerFor(cmd)
			if err != nil {
				return err
			}
			return h.Run(cmd.Context(), time.Duration(elapsedSeconds)*time.Second)
		},
	}
	cmd.Flags().Int64Var(&elapsedSeconds, "elapsed-seconds", 0, "elapsed job time; >0 restores a snapshot first")
	return cmd
}

func statusCommand(handlerFor handlerFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "print the current lifecycle state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := handlerFor(cmd)
			if err != nil {
				return err
			}
			status, err := h.Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func snapshotCommand(handlerFor handlerFactory) *cobra.Command {
	var elapsedSeconds int64
	var deleteActive bool

	snapshot := &cobra.Command{Use: "snapshot", Short: "snapshot create/restore/cleanup"}

	create := &cobra.Command{
		Use:   "create",
		Short: "pause, take an offline snapshot, resume, and prune old ones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := handlerFor(cmd)
			if err != nil {
				return err
			}
			return h.CreateSnapshot(cmd.Context(), time.Duration(elapsedSeconds)*time.Second)
		},
	}
	create.Flags().Int64Var(&elapsedSeconds, "elapsed-seconds", 0, "elapsed job time, used in the snapshot name")

	restore := &cobra.Command{
		Use:   "restore",
		Short: "restore the current snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := handlerFor(cmd)
			if err != nil {
				return err
			}
			return h.RestoreSnapshot(cmd.Context())
		},
	}

	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "prune old snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := handlerFor(cmd)
			if err != nil {
				return err
			}
			return h.CleanupSnapshots(cmd.Context(), deleteActive)
		},
	}
	cleanup.Flags().BoolVar(&deleteActive, "delete-active", false, "also delete the currently-active snapshot")

	snapshot.AddCommand(create, restore, cleanup)
	return snapshot
}

func throttleCommand(handlerFor handlerFactory) *cobra.Command {
	throttle := &cobra.Command{Use: "throttle", Short: "cpu/network caps and network gating"}

	cpu := &cobra.Command{
		Use:   "cpu <percent>",
		Short: "set the CPU execution cap (1-100)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pct, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("parse percent: %w", err)
			}
			h, err := handlerFor(cmd)
			if err != nil {
				return err
			}
			return h.SetCPUUsage(cmd.Context(), pct)
		},
	}

	net := &cobra.Command{
		Use:   "net <kbps>",
		Short: "set the NIC link speed cap in kbps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kbps, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("parse kbps: %w", err)
			}
			h, err := handlerFor(cmd)
			if err != nil {
				return err
			}
			return h.SetNetworkUsage(cmd.Context(), kbps)
		},
	}

	netAccess := &cobra.Command{
		Use:   "net-access <on|off>",
		Short: "toggle the primary NIC's cable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := handlerFor(cmd)
			if err != nil {
				return err
			}
			return h.SetNetworkAccess(cmd.Context(), args[0] == "on")
		},
	}

	throttle.AddCommand(cpu, net, netAccess)
	return throttle
}

func floppyCommand(handlerFor handlerFactory) *cobra.Command {
	floppy := &cobra.Command{Use: "floppy", Short: "read/write the floppy blob channel"}

	read := &cobra.Command{
		Use:   "read",
		Short: "print the floppy contents, base64-encoded, to stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := handlerFor(cmd)
			if err != nil {
				return err
			}
			data, err := h.ReadFloppy(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(data))
			return nil
		},
	}

	write := &cobra.Command{
		Use:   "write <base64>",
		Short: "decode base64 from the argument and write it to the floppy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := base64.StdEncoding.DecodeString(args[0])
			if err != nil {
				return fmt.Errorf("decode base64: %w", err)
			}
			h, err := handlerFor(cmd)
			if err != nil {
				return err
			}
			n, err := h.WriteFloppy(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes\n", n)
			return nil
		},
	}

	floppy.AddCommand(read, write)
	return floppy
}

func logsCommand(handlerFor handlerFactory) *cobra.Command {
	var system bool
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "print the VM or service log tail",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := handlerFor(cmd)
			if err != nil {
				return err
			}

			var logText string
			if system {
				logText, err = h.GetSystemLog(cmd.Context())
			} else {
				logText, err = h.GetVMLog(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), logText)

			if !follow {
				return nil
			}
			if term.IsTerminal(int(os.Stdout.Fd())) {
				fmt.Fprintln(cmd.OutOrStdout(), "-- following, ctrl-c to stop --")
			}
			path := h.base.Conf.SystemLogCopyPath()
			return tail.Follow(cmd.Context(), path, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&system, "system", false, "read the hypervisor service log instead of the VM log")
	cmd.Flags().BoolVar(&follow, "follow", false, "keep streaming new lines after the initial tail")
	return cmd
}

func portsCommand(handlerFor handlerFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "print the allocated port-forward and remote desktop ports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := handlerFor(cmd)
			if err != nil {
				return err
			}
			pf, rd, err := h.Ports(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pf_host_port=%d rd_host_port=%d\n", pf, rd)
			return nil
		},
	}
}
