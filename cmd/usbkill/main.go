package main

import (
	"fmt"
	"os"

	"github.com/gajzzs/usbkill/internal/app"
	"github.com/spf13/cobra"
)

var opts app.Options

var rootCmd = &cobra.Command{
	Use:   "usbkill",
	Short: "Eject newly attached USB drives that are not whitelisted",
	Long: "usbkill polls for newly mounted removable drives and ejects every drive " +
		"whose hardware serial number is not in the whitelist file",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.RunForeground(cmd, &opts)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "",
		"path to config.toml (default $USBKILL_CFG or /etc/usbkill/config.toml)")
	rootCmd.AddCommand(
		app.NewRunCommand(&opts),
		app.NewDrivesCommand(&opts),
		app.NewWhitelistCommand(&opts),
		app.NewServiceCommand(&opts),
		app.NewStatusCommand(&opts),
		app.NewConfigCommand(&opts),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
