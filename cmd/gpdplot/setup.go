package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tturner/gpdplot/internal/config"
	"github.com/tturner/gpdplot/internal/errors"
	"github.com/tturner/gpdplot/internal/gpd"
	"github.com/tturner/gpdplot/internal/logging"
	"github.com/tturner/gpdplot/internal/metrics"
	"github.com/tturner/gpdplot/internal/modelclient"
)

type globalFlags struct {
	configPath string
	logLevel   string
	logFile    string
	baseURL    string
	logEvery   int
	stats      bool
}

func registerGlobalFlags(cmd *cobra.Command, g *globalFlags) {
	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Config file path (default \"gpdplot.yaml\" if present)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level override: silent|error|info|verbose|debug")
	cmd.PersistentFlags().StringVar(&g.logFile, "log-file", "", "Also write log lines to this file")
	cmd.PersistentFlags().IntVar(&g.logEvery, "log-every-n", 0, "Print every N-th console log line (override)")
	cmd.PersistentFlags().StringVar(&g.baseURL, "base-url", "", "Model service base URL override")
	cmd.PersistentFlags().BoolVar(&g.stats, "stats", false, "Print model service request statistics at exit")
}

// env is what every command that talks to the model service needs.
type env struct {
	cfg        *config.Config
	configPath string
	logger     *logging.Logger
	requests   *metrics.Sink
	stats      bool
}

// loadEnv reads the config, applies flag overrides and opens the logger.
// An explicit --config must exist; the default path is optional.
func loadEnv(g *globalFlags, command string) (*env, error) {
	path := g.configPath
	mustExist := path != ""
	if path == "" {
		path = config.DefaultConfigPath
	}
	cfg, err := config.LoadConfig(path, mustExist, false)
	if err != nil {
		return nil, err
	}

	if g.baseURL != "" {
		cfg.Service.BaseURL = strings.TrimRight(g.baseURL, "/")
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.logFile != "" {
		cfg.Logging.File = g.logFile
	}
	if g.logEvery != 0 {
		cfg.Logging.Every = g.logEvery
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, errors.WrapConfigError(err, path)
	}

	level, err := logging.ParseLogLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLoggerWithOptions(level, cfg.Logging.File, cfg.Logging.Format, cfg.Logging.Every)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.SetSession(uuid.NewString()[:8])
	logger.LogStartup(command, cfg.Service.BaseURL, cfg.Service.TimeoutMs, path)

	return &env{cfg: cfg, configPath: path, logger: logger, requests: metrics.NewSink(), stats: g.stats}, nil
}

func (e *env) client() *modelclient.Client {
	timeout := time.Duration(e.cfg.Service.TimeoutMs) * time.Millisecond
	return modelclient.NewClient(e.cfg.Service.BaseURL, timeout, e.logger).WithMetrics(e.requests)
}

// printStats writes the request summary when --stats was given.
func (e *env) printStats(w io.Writer) {
	if !e.stats {
		return
	}
	fmt.Fprintln(w)
	e.requests.Summary().WriteText(w)
}

// serviceError adds the user-facing hint to model service failures.
func (e *env) serviceError(err error) error {
	if gpd.IsDomainUnavailable(err) || gpd.IsDatasetFetchFailed(err) {
		return errors.WrapServiceError(err, e.cfg.Service.BaseURL)
	}
	return err
}

// commandContext is cancelled on Ctrl+C or SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type selectionFlags struct {
	model string
	gpd   string
	xbj   float64
	t     float64
	q2    float64
}

func registerSelectionFlags(cmd *cobra.Command, f *selectionFlags) {
	cmd.Flags().StringVar(&f.model, "model", "", "Model: BKM|UVA (default from config)")
	cmd.Flags().StringVar(&f.gpd, "gpd", "", "GPD type: GPD_E|GPD_H (default from config)")
	cmd.Flags().Float64Var(&f.xbj, "xbj", 0, "Bjorken x (default from config)")
	cmd.Flags().Float64Var(&f.t, "t", 0, "Momentum transfer t, negative (default from config)")
	cmd.Flags().Float64Var(&f.q2, "q2", 0, "Q2 in GeV^2 (default from config)")
}

// options starts from the configured defaults and applies the flags that
// were set on cmd.
func (f *selectionFlags) options(cmd *cobra.Command, cfg *config.Config) (gpd.Options, error) {
	opts, err := cfg.DefaultOptions()
	if err != nil {
		return gpd.Options{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("model") {
		m, err := gpd.ParseModel(f.model)
		if err != nil {
			return gpd.Options{}, err
		}
		opts = opts.WithModel(m)
	}
	if flags.Changed("gpd") {
		g, err := gpd.ParseGPD(f.gpd)
		if err != nil {
			return gpd.Options{}, err
		}
		opts = opts.WithGPD(g)
	}
	if flags.Changed("xbj") {
		opts = opts.WithXbj(f.xbj)
	}
	if flags.Changed("t") {
		opts = opts.WithT(f.t)
	}
	if flags.Changed("q2") {
		if f.q2 <= 0 {
			return gpd.Options{}, fmt.Errorf("--q2 must be positive, got %g", f.q2)
		}
		opts = opts.WithQ2(f.q2)
	}
	return opts, nil
}
