package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tturner/gpdplot/internal/gpd"
)

func newDomainCmd(g *globalFlags) *cobra.Command {
	flags := &selectionFlags{}
	cmd := &cobra.Command{
		Use:   "domain",
		Short: "Print the valid xbj, t and q2 choices",
		Long: `Ask the model service which parameter values are valid.

Without --xbj or --t the xbj and t grids of the model are printed. With
--xbj the t choices and q2 range for that xbj are printed; with --t the
xbj choices and q2 range for that t.`,
		Example: `  gpdplot domain --model BKM --gpd GPD_E
  gpdplot domain --model UVA --gpd GPD_H --xbj 0.01
  gpdplot domain --t -0.5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return runDomain(cmd, g, flags)
		},
	}
	cmd.Flags().StringVar(&flags.model, "model", "", "Model: BKM|UVA (default from config)")
	cmd.Flags().StringVar(&flags.gpd, "gpd", "", "GPD type: GPD_E|GPD_H (default from config)")
	cmd.Flags().Float64Var(&flags.xbj, "xbj", 0, "Resolve t choices and q2 range for this xbj")
	cmd.Flags().Float64Var(&flags.t, "t", 0, "Resolve xbj choices and q2 range for this t")
	return cmd
}

func runDomain(cmd *cobra.Command, g *globalFlags, flags *selectionFlags) error {
	if err := exclusiveFlags(cmd, "xbj", "t"); err != nil {
		return err
	}
	byXbj, byT := cmd.Flags().Changed("xbj"), cmd.Flags().Changed("t")

	e, err := loadEnv(g, "domain")
	if err != nil {
		return err
	}
	defer e.logger.Close()
	defer e.printStats(cmd.OutOrStdout())

	opts, err := flags.options(cmd, e.cfg)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	client := e.client()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Model: %s  GPD: %s\n", opts.Model.Label(), opts.GPD)

	switch {
	case byXbj:
		u, err := client.ResolveForXbj(ctx, opts.Model, opts.GPD, opts.Xbj)
		if err != nil {
			return e.serviceError(err)
		}
		fmt.Fprintf(out, "xbj: %s\n", gpd.FormatValue(opts.Xbj))
		printChoices(out, "t", u.TChoices)
		fmt.Fprintf(out, "q2 range: %s\n", u.Q2Range)
	case byT:
		u, err := client.ResolveForT(ctx, opts.Model, opts.GPD, opts.T)
		if err != nil {
			return e.serviceError(err)
		}
		fmt.Fprintf(out, "t: %s\n", gpd.FormatValue(opts.T))
		printChoices(out, "xbj", u.XbjChoices)
		fmt.Fprintf(out, "q2 range: %s\n", u.Q2Range)
	default:
		d, err := client.ResolveForModel(ctx, opts.Model, opts.GPD)
		if err != nil {
			return e.serviceError(err)
		}
		printChoices(out, "xbj", d.XbjChoices)
		printChoices(out, "t", d.TChoices)
	}
	return nil
}

func printChoices(out io.Writer, name string, values []float64) {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = gpd.FormatValue(v)
	}
	fmt.Fprintf(out, "%s choices (%d): %s\n", name, len(values), strings.Join(parts, " "))
}
