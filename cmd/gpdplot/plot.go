package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tturner/gpdplot/internal/fetch"
	"github.com/tturner/gpdplot/internal/gpd"
	"github.com/tturner/gpdplot/internal/render"
	"github.com/tturner/gpdplot/internal/session"
	"github.com/tturner/gpdplot/internal/tabs"
)

type plotFlags struct {
	selection selectionFlags
	overlay   []float64
	pngDir    string
	noPNG     bool
	width     int
	height    int
}

func newPlotCmd(g *globalFlags) *cobra.Command {
	flags := &plotFlags{}
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Fetch a selection and plot it",
		Long: `Fetch the model table for one selection and draw xu ("GPD Up") and xd
("GPD Down") against x, as a terminal chart and as a PNG file.

--overlay fetches the same selection at further q2 values and overlays them
on the same plot.`,
		Example: `  gpdplot plot --model BKM --gpd GPD_E --xbj 0.01 --t -0.3 --q2 1.5
  gpdplot plot --xbj 0.01 --t -0.3 --q2 0.5 --overlay 1,2 --png-dir ./plots`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return runPlot(cmd, g, flags)
		},
	}
	registerSelectionFlags(cmd, &flags.selection)
	cmd.Flags().Float64SliceVar(&flags.overlay, "overlay", nil, "Extra q2 values to overlay (comma-separated)")
	cmd.Flags().StringVar(&flags.pngDir, "png-dir", "", "PNG output directory (default from config)")
	cmd.Flags().BoolVar(&flags.noPNG, "no-png", false, "Only draw the terminal chart")
	cmd.Flags().IntVar(&flags.width, "width", 100, "Terminal chart width")
	cmd.Flags().IntVar(&flags.height, "height", 20, "Terminal chart height")
	return cmd
}

func runPlot(cmd *cobra.Command, g *globalFlags, flags *plotFlags) error {
	e, err := loadEnv(g, "plot")
	if err != nil {
		return err
	}
	defer e.logger.Close()
	defer e.printStats(cmd.OutOrStdout())

	opts, err := flags.selection.options(cmd, e.cfg)
	if err != nil {
		return err
	}
	for _, q2 := range flags.overlay {
		if q2 <= 0 {
			return fmt.Errorf("--overlay values must be positive, got %g", q2)
		}
	}

	var png *render.PNGRenderer
	var renderer fetch.Renderer
	if !flags.noPNG {
		dir := e.cfg.Render.PNGDir
		if flags.pngDir != "" {
			dir = flags.pngDir
		}
		png = &render.PNGRenderer{Dir: dir, Width: e.cfg.Render.Width, Height: e.cfg.Render.Height}
		renderer = png
	}

	store := tabs.New()
	state := session.New(opts, gpd.DefaultDomain())
	orch := fetch.New(e.client(), store, state, renderer, nil, e.logger)

	ctx, cancel := commandContext()
	defer cancel()

	const tab gpd.TabID = 0
	selections := []gpd.Options{opts}
	for _, q2 := range flags.overlay {
		selections = append(selections, opts.WithQ2(q2))
	}
	for _, sel := range selections {
		if _, err := orch.PlotWith(ctx, sel, tab); err != nil {
			return e.serviceError(err)
		}
	}

	out := cmd.OutOrStdout()
	term := &render.TerminalRenderer{Out: out, Width: flags.width, Height: flags.height}
	if err := term.Render(tab, store.DatasetsFor(tab)); err != nil {
		return err
	}
	if png != nil {
		fmt.Fprintf(out, "PNG written: %s\n", png.Path(tab))
	}
	return nil
}
