package app

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/gajzzs/usbkill/internal/config"
	"github.com/spf13/cobra"
)

var errConfigExists = errors.New("config file already exists")

func NewConfigCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the usbkill config file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(opts.ConfigPath)

			if !force {
				_, err := opts.fs().Stat(path)
				switch {
				case err == nil:
					return fmt.Errorf("%w: %s (use --force to overwrite)", errConfigExists, path)
				case !errors.Is(err, fs.ErrNotExist):
					return fmt.Errorf("failed to check config: %w", err)
				}
			}

			vals := config.Defaults()
			if err := config.Save(opts.fs(), path, &vals); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default config to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	cmd.AddCommand(initCmd)
	return cmd
}
