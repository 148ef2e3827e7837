package main

import (
	"github.com/spf13/cobra"

	"github.com/darkkid0/wt-tracker/internal/config"
	"github.com/darkkid0/wt-tracker/internal/errors"
)

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Long: `Write wt-tracker.json with every setting at its default.

Examples:
  wt-tracker init
  wt-tracker init /etc/wt-tracker.json --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ConfigFileName
			if len(args) == 1 {
				path = args[0]
			}

			if config.Exists(path) && !force {
				return errors.New(errors.CodeConfigExists).WithLocation(path, "")
			}
			if err := config.New().SaveTo(path); err != nil {
				return err
			}

			success(cmd, "Wrote %s", path)
			info(cmd, "Start the tracker with: wt-tracker serve --config %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	return cmd
}
