package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tturner/gpdplot/internal/modelsvc"
)

type emulateFlags struct {
	listen    string
	latencyMs int
}

func newEmulateCmd(g *globalFlags) *cobra.Command {
	flags := &emulateFlags{}
	cmd := &cobra.Command{
		Use:   "emulate",
		Short: "Run the model service emulator",
		Long: `Serve the model service API from synthetic tables so the explorer can be
used without the real backend:

  GET /api/{model}/{gpd}/domain
  GET /api/{model}/{gpd}/xbj/{xbj}
  GET /api/{model}/{gpd}/t/{t}
  GET /api/{model}/{gpd}/{xbj}/{t}/{q2}

--latency-ms delays every response, which makes out-of-order answers easy
to reproduce in the UI. Press Ctrl+C to stop.`,
		Example: `  gpdplot emulate
  gpdplot emulate --listen 127.0.0.1:5001 --latency-ms 400`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return runEmulate(cmd, g, flags)
		},
	}
	cmd.Flags().StringVar(&flags.listen, "listen", "", "Listen address (default from config, \"127.0.0.1:5000\")")
	cmd.Flags().IntVar(&flags.latencyMs, "latency-ms", -1, "Added delay per response in ms (default from config)")
	return cmd
}

func runEmulate(cmd *cobra.Command, g *globalFlags, flags *emulateFlags) error {
	e, err := loadEnv(g, "emulate")
	if err != nil {
		return err
	}
	defer e.logger.Close()

	listen := e.cfg.Emulator.Listen
	if flags.listen != "" {
		listen = flags.listen
	}
	latency := e.cfg.Emulator.LatencyMs
	if flags.latencyMs >= 0 {
		latency = flags.latencyMs
	}

	ctx, cancel := commandContext()
	defer cancel()

	srv := modelsvc.NewServer(modelsvc.Options{
		Latency: time.Duration(latency) * time.Millisecond,
		Logger:  e.logger,
	})
	e.logger.Info("Model service emulator listening on http://%s (latency %d ms)", listen, latency)
	if err := srv.ListenAndServe(ctx, listen); err != nil {
		return err
	}
	e.logger.Info("Emulator stopped after %d requests", srv.Requests())
	return nil
}
