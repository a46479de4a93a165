package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "gpdplot",
		Short: "Explore and plot GPD model tables",
		Long: `gpdplot queries a GPD model service for the valid xbj, t and q2 choices of
a model, fetches the model tables for a selection, and plots xu and xd
against x. Plots accumulate on tabs; any selection can be saved as CSV.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	registerGlobalFlags(rootCmd, g)

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newInitConfigCmd(g))
	rootCmd.AddCommand(newUICmd(g))
	rootCmd.AddCommand(newDomainCmd(g))
	rootCmd.AddCommand(newPlotCmd(g))
	rootCmd.AddCommand(newDownloadCmd(g))
	rootCmd.AddCommand(newEmulateCmd(g))

	// Short top-level usage; subcommands keep cobra's full help
	defaultHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != rootCmd {
			defaultHelp(cmd, args)
			return
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Usage:\n  %s <command> [arguments] [options]\n\n", cmd.Name())
		fmt.Fprintf(out, "Available Commands:\n")
		for _, subCmd := range cmd.Commands() {
			if !subCmd.Hidden {
				fmt.Fprintf(out, "  %-15s %s\n", subCmd.Name(), subCmd.Short)
			}
		}
		fmt.Fprintf(out, "\nUse \"%s help <command>\" for more information about a command.\n", cmd.Name())
	})

	return rootCmd
}
