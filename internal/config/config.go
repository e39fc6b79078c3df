package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/pxwrap/internal/lifecycle"
	"github.com/san-kum/pxwrap/internal/sdk"
)

const (
	DefaultMode     = "auto"
	DefaultVariant  = "simulation"
	DefaultSteps    = 60
	DefaultDt       = 1.0 / 60.0
	DefaultDataDir  = ".pxwrap"
	DefaultLogLevel = "info"
)

type Config struct {
	Mode               string              `yaml:"mode"`
	Variant            string              `yaml:"variant"`
	Workers            int                 `yaml:"workers"`
	Gravity            sdk.Vec3            `yaml:"gravity"`
	Tolerances         sdk.TolerancesScale `yaml:"tolerances"`
	VisualizationScale float32             `yaml:"visualization_scale"`
	Debugger           sdk.DebuggerConfig  `yaml:"debugger"`
	Cooking            sdk.CookingParams   `yaml:"cooking"`
	Steps              int                 `yaml:"steps"`
	Dt                 float64             `yaml:"dt"`
	DataDir            string              `yaml:"data_dir"`
	Log                LogConfig           `yaml:"log"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func DefaultConfig() *Config {
	return &Config{
		Mode:               DefaultMode,
		Variant:            DefaultVariant,
		Workers:            sdk.DefaultWorkers,
		Gravity:            sdk.DefaultGravity,
		Tolerances:         sdk.DefaultTolerancesScale(),
		VisualizationScale: sdk.DefaultVisualizationScale,
		Debugger:           sdk.DefaultDebuggerConfig(),
		Steps:              DefaultSteps,
		Dt:                 DefaultDt,
		DataDir:            DefaultDataDir,
		Log:                LogConfig{Level: DefaultLogLevel},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ParseMode resolves the configured mode. "auto" and "" detect the mode of
// the running binary.
func (c *Config) ParseMode() (sdk.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(c.Mode)) {
	case "", "auto":
		return sdk.DetectMode(), nil
	}
	return sdk.ParseMode(c.Mode)
}

func (c *Config) ParseVariant() (lifecycle.Variant, error) {
	switch strings.ToLower(strings.TrimSpace(c.Variant)) {
	case "", "simulation":
		return lifecycle.VariantSimulation, nil
	case "cooking":
		return lifecycle.VariantCooking, nil
	}
	return 0, fmt.Errorf("unknown variant: %q", c.Variant)
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.ParseMode(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.ParseVariant(); err != nil {
		errs = append(errs, err)
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if !c.Tolerances.IsValid() {
		errs = append(errs, fmt.Errorf("tolerances must be positive, got %+v", c.Tolerances))
	}
	if c.VisualizationScale < 0 {
		errs = append(errs, fmt.Errorf("visualization_scale must not be negative, got %g", c.VisualizationScale))
	}
	if c.Debugger.Enabled && (c.Debugger.Host == "" || c.Debugger.Port <= 0 || c.Debugger.Port > 65535) {
		errs = append(errs, fmt.Errorf("invalid debugger endpoint %q", c.Debugger.Endpoint()))
	}
	if c.Steps < 0 {
		errs = append(errs, fmt.Errorf("steps must not be negative, got %d", c.Steps))
	}
	if c.Dt <= 0 {
		errs = append(errs, fmt.Errorf("dt must be positive, got %g", c.Dt))
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); c.Log.Level != "" && err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	return errors.Join(errs...)
}

// Options converts the configuration into manager options. The allocator is
// aligned for the configured mode.
func (c *Config) Options(log *zap.Logger) (lifecycle.Options, error) {
	if err := c.Validate(); err != nil {
		return lifecycle.Options{}, err
	}
	mode, _ := c.ParseMode()
	variant, _ := c.ParseVariant()

	opts := lifecycle.DefaultOptions()
	opts.Variant = variant
	opts.Allocator = sdk.NewHeapAllocator(mode)
	opts.Tolerances = c.Tolerances
	opts.Gravity = c.Gravity
	opts.Workers = c.Workers
	opts.VisualizationScale = c.VisualizationScale
	opts.Debugger = c.Debugger
	opts.Cooking = c.Cooking
	opts.Cooking.Tolerances = c.Tolerances
	opts.Logger = log
	if log != nil {
		opts.ErrorCallback = sdk.NewLogErrorCallback(log)
	}
	return opts, nil
}
