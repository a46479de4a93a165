package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tturner/gpdplot/internal/cascade"
	"github.com/tturner/gpdplot/internal/export"
	"github.com/tturner/gpdplot/internal/fetch"
	"github.com/tturner/gpdplot/internal/gpd"
	"github.com/tturner/gpdplot/internal/render"
	"github.com/tturner/gpdplot/internal/session"
	"github.com/tturner/gpdplot/internal/tabs"
	"github.com/tturner/gpdplot/internal/tui"
)

type uiFlags struct {
	png       bool
	exportDir string
	clipboard bool
}

func newUICmd(g *globalFlags) *cobra.Command {
	flags := &uiFlags{}
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Open the interactive model explorer",
		Long: `Launch the terminal explorer: pick GPD, model, xbj, t and q2, plot the
model tables onto tabs and download the current selection as CSV.

Changing the model or GPD reloads the xbj and t choices; changing xbj or t
narrows the other one and sets the allowed q2 range. Log lines go to the
--log-file only, since the terminal belongs to the UI.`,
		Example: `  gpdplot ui
  gpdplot ui --base-url http://127.0.0.1:5000 --png --log-file gpdplot.log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return runUI(cmd, g, flags)
		},
	}
	cmd.Flags().BoolVar(&flags.png, "png", false, "Also write every plotted tab as PNG into render.png_dir")
	cmd.Flags().StringVar(&flags.exportDir, "export-dir", "", "Directory for downloaded CSV files (default from config)")
	cmd.Flags().BoolVar(&flags.clipboard, "clipboard", false, "Also copy downloads to the clipboard")
	return cmd
}

func runUI(cmd *cobra.Command, g *globalFlags, flags *uiFlags) error {
	e, err := loadEnv(g, "ui")
	if err != nil {
		return err
	}
	defer e.logger.Close()
	e.logger.SetConsole(false)

	opts, err := e.cfg.DefaultOptions()
	if err != nil {
		return err
	}
	state := session.New(opts, gpd.DefaultDomain())
	store := tabs.New()
	client := e.client()

	var renderer fetch.Renderer
	if flags.png {
		renderer = &render.PNGRenderer{Dir: e.cfg.Render.PNGDir, Width: e.cfg.Render.Width, Height: e.cfg.Render.Height}
	}
	dir := e.cfg.Export.Dir
	if flags.exportDir != "" {
		dir = flags.exportDir
	}
	exporters := export.Multi{export.NewFileExporter(dir)}
	if flags.clipboard || e.cfg.Export.Clipboard {
		exporters = append(exporters, export.NewClipboardExporter())
	}

	ctx, cancel := commandContext()
	defer cancel()

	err = tui.Run(tui.Deps{
		Context:      ctx,
		Controller:   cascade.New(client, state, e.logger),
		Orchestrator: fetch.New(client, store, state, renderer, exporters, e.logger),
		Store:        store,
		State:        state,
		Logger:       e.logger,
		Filename:     e.cfg.Export.Filename,
	})
	sum := e.requests.Summary()
	e.logger.Info("Session ended: %d model service requests, %d failed", sum.TotalRequests, sum.FailedRequests)
	e.printStats(cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}
