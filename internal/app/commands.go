package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gajzzs/usbkill/internal/service"
	"github.com/gajzzs/usbkill/internal/whitelist"
	"github.com/spf13/cobra"
)

// RunForeground runs the poll loop until SIGINT or SIGTERM.
func RunForeground(cmd *cobra.Command, opts *Options) error {
	daemon, logger, closer, err := opts.newDaemon()
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	daemon.Run(ctx)
	if cmd.Context().Err() == nil {
		logger.Info().Msg("usb auto-kill switch stopped by user")
	}
	return nil
}

func NewRunCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Watch for new removable drives in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunForeground(cmd, opts)
		},
	}
}

func NewDrivesCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "drives",
		Short: "List removable drives and their serial numbers without ejecting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log := consoleLogger(cmd.ErrOrStderr())
			ops := opts.driveOps(cfg, log)
			wl := whitelist.Load(opts.fs(), cfg.WhitelistFile, log)

			ctx := cmd.Context()
			drives, err := ops.Enumerate(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(drives) == 0 {
				fmt.Fprintln(out, "No removable drives found")
				return nil
			}

			fmt.Fprintln(out, "Removable Drives:")
			for i, path := range drives {
				serial := ops.ResolveSerial(ctx, path)
				fmt.Fprintf(out, "%d. %s\n", i+1, path)
				fmt.Fprintf(out, "   Serial: %s\n", serial)
				fmt.Fprintf(out, "   Whitelisted: %t\n", wl.Allows(serial))
				if usage, err := opts.monitor().DriveUsage(ctx, path); err == nil {
					fmt.Fprintf(out, "   Filesystem: %s (%.1f%% used)\n", usage.Fstype, usage.UsedPercent)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func NewWhitelistCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whitelist",
		Short: "Manage whitelisted serial numbers",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the whitelisted serial numbers",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				wl := whitelist.Load(opts.fs(), cfg.WhitelistFile, consoleLogger(cmd.ErrOrStderr()))

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Whitelist (%s):\n", cfg.WhitelistFile)
				for _, serial := range wl.Entries() {
					fmt.Fprintf(out, "  - %s\n", serial)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "add [serial]",
			Short: "Add a serial number to the whitelist",
			Long:  "Add a serial number to the whitelist. A running daemon keeps its loaded whitelist until restarted.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				added, err := whitelist.Append(opts.fs(), cfg.WhitelistFile, args[0])
				if err != nil {
					return err
				}
				if added {
					fmt.Fprintf(cmd.OutOrStdout(), "Added '%s' to %s\n", args[0], cfg.WhitelistFile)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "'%s' is already whitelisted\n", args[0])
				}
				return nil
			},
		},
	)

	return cmd
}

func NewServiceCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the usbkill OS service",
	}

	control := func(use, short string, action func(*service.ServiceManager) error, done string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				sm, err := service.NewServiceManager(nil, opts.ConfigPath, consoleLogger(cmd.ErrOrStderr()))
				if err != nil {
					return err
				}
				if err := action(sm); err != nil {
					return fmt.Errorf("failed to %s service: %w", use, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), done)
				return nil
			},
		}
	}

	cmd.AddCommand(
		control("install", "Install usbkill as a system service", (*service.ServiceManager).Install,
			"Service installed and enabled for auto-start"),
		control("uninstall", "Remove the usbkill system service", (*service.ServiceManager).Uninstall,
			"Service uninstalled"),
		control("start", "Start the usbkill system service", (*service.ServiceManager).Start,
			"Service started"),
		control("stop", "Stop the usbkill system service", (*service.ServiceManager).Stop,
			"Service stopped"),
		&cobra.Command{
			Use:   "status",
			Short: "Show the system service status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				sm, err := service.NewServiceManager(nil, opts.ConfigPath, consoleLogger(cmd.ErrOrStderr()))
				if err != nil {
					return err
				}
				status, err := sm.Status()
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Service status: %s (%v)\n", status, err)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Service status: %s\n", status)
				return nil
			},
		},
		&cobra.Command{
			Use:    "run",
			Short:  "Run under the service manager",
			Hidden: true,
			Args:   cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				daemon, logger, closer, err := opts.newDaemon()
				if err != nil {
					return err
				}
				defer closer.Close()

				sm, err := service.NewServiceManager(daemon, opts.ConfigPath, logger)
				if err != nil {
					return err
				}
				return sm.Run()
			},
		},
	)

	return cmd
}
