package app

import (
	"fmt"

	"github.com/gajzzs/usbkill/internal/config"
	"github.com/gajzzs/usbkill/internal/service"
	"github.com/gajzzs/usbkill/internal/whitelist"
	"github.com/spf13/cobra"
)

func NewStatusCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:                   "status",
		Short:                 "Show configuration, whitelist and service status",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log := consoleLogger(cmd.ErrOrStderr())
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "USB Auto-Kill Switch Status")
			fmt.Fprintln(out, "===========================")

			fmt.Fprintln(out, "\nConfiguration:")
			fmt.Fprintf(out, "  Config File: %s\n", config.Path(opts.ConfigPath))
			fmt.Fprintf(out, "  Poll Interval: %s\n", cfg.PollInterval())
			fmt.Fprintf(out, "  Log File: %s (level %s)\n", cfg.LogFile, cfg.LogLevel)
			fmt.Fprintf(out, "  Media Prefixes: %v\n", cfg.MediaPrefixes)

			wl := whitelist.Load(opts.fs(), cfg.WhitelistFile, log)
			fmt.Fprintln(out, "\nWhitelist:")
			fmt.Fprintf(out, "  File: %s\n", cfg.WhitelistFile)
			fmt.Fprintf(out, "  Serials: %d\n", wl.Len())

			fmt.Fprintln(out, "\nService Status:")
			if sm, err := service.NewServiceManager(nil, opts.ConfigPath, log); err == nil {
				if status, err := sm.Status(); err == nil {
					fmt.Fprintf(out, "  Status: %s\n", status)
				} else {
					fmt.Fprintln(out, "  Status: Not Installed")
				}
				fmt.Fprintf(out, "  Definition: %s\n", service.ServiceConfigPath())
			} else {
				fmt.Fprintln(out, "  Status: Not Available")
			}

			fmt.Fprintln(out, "\nSystem Information:")
			if summary, err := opts.monitor().HostSummary(cmd.Context()); err == nil {
				fmt.Fprintf(out, "  Hostname: %s\n", summary.Hostname)
				fmt.Fprintf(out, "  OS: %s %s %s\n", summary.OS, summary.Platform, summary.PlatformVersion)
				fmt.Fprintf(out, "  Kernel: %s\n", summary.KernelVersion)
			} else {
				fmt.Fprintf(out, "  Unavailable: %v\n", err)
			}
			fmt.Fprintf(out, "  Drive Support: %s\n", opts.driveOps(cfg, log).Name())

			return nil
		},
	}
}
