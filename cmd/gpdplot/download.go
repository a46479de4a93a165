package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tturner/gpdplot/internal/export"
	"github.com/tturner/gpdplot/internal/fetch"
	"github.com/tturner/gpdplot/internal/gpd"
	"github.com/tturner/gpdplot/internal/session"
	"github.com/tturner/gpdplot/internal/tabs"
)

type downloadFlags struct {
	selection selectionFlags
	out       string
	dir       string
	clipboard bool
}

func newDownloadCmd(g *globalFlags) *cobra.Command {
	flags := &downloadFlags{}
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Fetch a selection and save it as CSV",
		Long: `Fetch the model table for one selection and write it as CSV with the
columns x, u, d, xu, xd. Nothing is plotted.`,
		Example: `  gpdplot download --xbj 0.01 --t -0.3 --q2 1.5 --out bkm.csv
  gpdplot download --model UVA --clipboard`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return runDownload(cmd, g, flags)
		},
	}
	registerSelectionFlags(cmd, &flags.selection)
	cmd.Flags().StringVar(&flags.out, "out", "", "CSV file name (default from config, \"model.csv\")")
	cmd.Flags().StringVar(&flags.dir, "dir", "", "Output directory (default from config)")
	cmd.Flags().BoolVar(&flags.clipboard, "clipboard", false, "Also copy the CSV text to the clipboard")
	return cmd
}

func runDownload(cmd *cobra.Command, g *globalFlags, flags *downloadFlags) error {
	e, err := loadEnv(g, "download")
	if err != nil {
		return err
	}
	defer e.logger.Close()
	defer e.printStats(cmd.OutOrStdout())

	opts, err := flags.selection.options(cmd, e.cfg)
	if err != nil {
		return err
	}
	filename := e.cfg.Export.Filename
	if flags.out != "" {
		filename = flags.out
	}
	dir := e.cfg.Export.Dir
	if flags.dir != "" {
		dir = flags.dir
	}

	file := export.NewFileExporter(dir)
	path, err := file.Path(filename)
	if err != nil {
		return err
	}
	exporters := export.Multi{file}
	if flags.clipboard || e.cfg.Export.Clipboard {
		exporters = append(exporters, export.NewClipboardExporter())
	}

	state := session.New(opts, gpd.DefaultDomain())
	orch := fetch.New(e.client(), tabs.New(), state, nil, exporters, e.logger)

	ctx, cancel := commandContext()
	defer cancel()

	ds, err := orch.DownloadWith(ctx, opts, filename)
	if err != nil {
		return e.serviceError(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d points for %s to %s\n", len(ds.Points), opts, path)
	return nil
}
