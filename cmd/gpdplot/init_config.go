package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tturner/gpdplot/internal/config"
)

func newInitConfigCmd(g *globalFlags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write a default config file",
		Long: `Write gpdplot.yaml (or the --config path) with the default service URL,
form selection, export, render, logging and emulator settings.`,
		Example: `  gpdplot init-config
  gpdplot init-config --config ./lab.yaml --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			path := g.configPath
			if path == "" {
				path = config.DefaultConfigPath
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}
			if err := config.WriteDefaultConfig(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written: %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
