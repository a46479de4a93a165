package config

// Configuration loading and validation for gpdplot

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tturner/gpdplot/internal/errors"
	"github.com/tturner/gpdplot/internal/gpd"
	"github.com/tturner/gpdplot/internal/logging"
)

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "gpdplot.yaml"

// ServiceConfig points at the model domain and dataset service.
type ServiceConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// DefaultsConfig is the form selection used before the first domain resolution.
type DefaultsConfig struct {
	GPD   string  `yaml:"gpd"`
	Model string  `yaml:"model"`
	Xbj   float64 `yaml:"xbj"`
	T     float64 `yaml:"t"`
	Q2    float64 `yaml:"q2"`
}

// ExportConfig controls the Download action.
type ExportConfig struct {
	Dir       string `yaml:"dir"`
	Filename  string `yaml:"filename"`
	Clipboard bool   `yaml:"clipboard"` // also copy the CSV text to the clipboard
}

// RenderConfig controls PNG plot output.
type RenderConfig struct {
	PNGDir string `yaml:"png_dir"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// LoggingConfig mirrors the logging flags.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file,omitempty"`
	Format string `yaml:"format"` // "text" or "json"
	// Every samples console output; the log file always gets every line.
	Every int `yaml:"every,omitempty"`
}

// EmulatorConfig configures the bundled model service emulator.
type EmulatorConfig struct {
	Listen    string `yaml:"listen"`
	LatencyMs int    `yaml:"latency_ms,omitempty"`
}

// Config is the whole gpdplot.yaml file
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Export   ExportConfig   `yaml:"export"`
	Render   RenderConfig   `yaml:"render"`
	Logging  LoggingConfig  `yaml:"logging"`
	Emulator EmulatorConfig `yaml:"emulator"`
}

// CreateDefaultConfig creates a default configuration
func CreateDefaultConfig() *Config {
	opts := gpd.DefaultOptions()
	cfg := &Config{
		Defaults: DefaultsConfig{
			GPD:   string(opts.GPD),
			Model: string(opts.Model),
			Xbj:   opts.Xbj,
			T:     opts.T,
			Q2:    opts.Q2,
		},
	}
	applyDefaults(cfg)
	return cfg
}

// WriteDefaultConfig writes a default configuration to a file
func WriteDefaultConfig(path string) error {
	cfg := CreateDefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadConfig loads a configuration from a YAML file.
// A missing file yields the defaults unless mustExist is set; with autoCreate the
// defaults are also written to path.
func LoadConfig(path string, mustExist, autoCreate bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.WrapConfigError(fmt.Errorf("read config file: %w", err), path)
		}
		if autoCreate {
			if err := WriteDefaultConfig(path); err != nil {
				return nil, fmt.Errorf("create default config: %w", err)
			}
			return CreateDefaultConfig(), nil
		}
		if mustExist {
			return nil, errors.WrapConfigError(fmt.Errorf("config file not found: %s", path), path)
		}
		return CreateDefaultConfig(), nil
	}

	cfg := CreateDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("parse YAML: %w", err), path)
	}
	applyDefaults(cfg)

	if err := ValidateConfig(cfg); err != nil {
		return nil, errors.WrapConfigError(err, path)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Service.BaseURL == "" {
		cfg.Service.BaseURL = "http://localhost:5000"
	}
	cfg.Service.BaseURL = strings.TrimRight(cfg.Service.BaseURL, "/")
	if cfg.Service.TimeoutMs == 0 {
		cfg.Service.TimeoutMs = 10000
	}
	if cfg.Export.Dir == "" {
		cfg.Export.Dir = "."
	}
	if cfg.Export.Filename == "" {
		cfg.Export.Filename = "model.csv"
	}
	if cfg.Render.PNGDir == "" {
		cfg.Render.PNGDir = "plots"
	}
	if cfg.Render.Width == 0 {
		cfg.Render.Width = 650
	}
	if cfg.Render.Height == 0 {
		cfg.Render.Height = 400
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Every == 0 {
		cfg.Logging.Every = 1
	}
	if cfg.Emulator.Listen == "" {
		cfg.Emulator.Listen = "127.0.0.1:5000"
	}
}

// ValidateConfig validates a configuration
func ValidateConfig(cfg *Config) error {
	u, err := url.Parse(cfg.Service.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("service.base_url must be an http(s) URL, got %q", cfg.Service.BaseURL)
	}
	if cfg.Service.TimeoutMs < 0 {
		return fmt.Errorf("service.timeout_ms must be >= 0")
	}
	if _, err := cfg.DefaultOptions(); err != nil {
		return err
	}
	if strings.ContainsAny(cfg.Export.Filename, `/\`) {
		return fmt.Errorf("export.filename must be a bare file name, got %q", cfg.Export.Filename)
	}
	if cfg.Render.Width < 100 || cfg.Render.Height < 100 {
		return fmt.Errorf("render.width and render.height must be at least 100")
	}
	if _, err := logging.ParseLogLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Every < 1 {
		return fmt.Errorf("logging.every must be >= 1, got %d", cfg.Logging.Every)
	}
	if cfg.Emulator.LatencyMs < 0 {
		return fmt.Errorf("emulator.latency_ms must be >= 0")
	}
	return nil
}

// DefaultOptions converts the defaults section into an Options value.
func (cfg *Config) DefaultOptions() (gpd.Options, error) {
	g, err := gpd.ParseGPD(cfg.Defaults.GPD)
	if err != nil {
		return gpd.Options{}, fmt.Errorf("defaults.gpd: %w", err)
	}
	m, err := gpd.ParseModel(cfg.Defaults.Model)
	if err != nil {
		return gpd.Options{}, fmt.Errorf("defaults.model: %w", err)
	}
	if cfg.Defaults.Xbj <= 0 || cfg.Defaults.Xbj >= 1 {
		return gpd.Options{}, fmt.Errorf("defaults.xbj must be in (0, 1), got %g", cfg.Defaults.Xbj)
	}
	if cfg.Defaults.T >= 0 {
		return gpd.Options{}, fmt.Errorf("defaults.t must be negative, got %g", cfg.Defaults.T)
	}
	if cfg.Defaults.Q2 <= 0 {
		return gpd.Options{}, fmt.Errorf("defaults.q2 must be positive, got %g", cfg.Defaults.Q2)
	}
	return gpd.Options{
		GPD:   g,
		Model: m,
		Xbj:   cfg.Defaults.Xbj,
		T:     cfg.Defaults.T,
		Q2:    cfg.Defaults.Q2,
	}, nil
}
