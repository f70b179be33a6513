// Package config loads coursetask configuration from defaults, an optional
// YAML file, and environment overrides (including a .env file).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/hsakai/coursetask/internal/model"
)

const (
	DefaultTimezone       = "Asia/Singapore"
	DefaultWaitOffsetDays = 14
	DefaultPoolWidth      = 5
	DefaultPriority       = "M"
	DefaultTimeoutSec     = 30
	DefaultIntervalSec    = 900
)

// DefaultDir returns the default coursetask directory (~/.coursetask).
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".coursetask"
	}
	return filepath.Join(home, ".coursetask")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Load reads the config file at path (skipped when absent), layered over
// defaults and under environment overrides. A .env file in the working
// directory is honored before the environment is read.
func Load(path string) (model.Config, error) {
	// Missing .env is fine; it only supplies environment variables.
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yamlv3.Unmarshal(data, &cfg); err != nil {
				return model.Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Defaults plus environment are enough to run.
		default:
			return model.Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	fillZeroes(&cfg)

	if err := validate(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func defaults() model.Config {
	return model.Config{
		Canvas: model.CanvasConfig{TimeoutSec: DefaultTimeoutSec},
		Sync: model.SyncConfig{
			Timezone:       DefaultTimezone,
			WaitOffsetDays: DefaultWaitOffsetDays,
			PoolWidth:      DefaultPoolWidth,
			Priority:       DefaultPriority,
		},
		Store:   model.StoreConfig{Dir: DefaultDir()},
		Daemon:  model.DaemonConfig{IntervalSec: DefaultIntervalSec},
		Logging: model.LoggingConfig{Level: "info", Format: "text"},
	}
}

func applyEnv(cfg *model.Config) {
	if v := os.Getenv("CANVAS_BASE_URL"); v != "" {
		cfg.Canvas.BaseURL = v
	}
	if v := os.Getenv("CANVAS_TOKEN"); v != "" {
		cfg.Canvas.Token = v
	}
	if v := os.Getenv("COURSETASK_DIR"); v != "" {
		cfg.Store.Dir = v
	}
	if v := os.Getenv("COURSETASK_TIMEZONE"); v != "" {
		cfg.Sync.Timezone = v
	}
	if v := os.Getenv("COURSETASK_POOL_WIDTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.PoolWidth = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// fillZeroes restores defaults a config file explicitly zeroed out.
func fillZeroes(cfg *model.Config) {
	if cfg.Canvas.TimeoutSec <= 0 {
		cfg.Canvas.TimeoutSec = DefaultTimeoutSec
	}
	if cfg.Sync.Timezone == "" {
		cfg.Sync.Timezone = DefaultTimezone
	}
	if cfg.Sync.WaitOffsetDays <= 0 {
		cfg.Sync.WaitOffsetDays = DefaultWaitOffsetDays
	}
	if cfg.Sync.PoolWidth <= 0 {
		cfg.Sync.PoolWidth = DefaultPoolWidth
	}
	if cfg.Sync.Priority == "" {
		cfg.Sync.Priority = DefaultPriority
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = DefaultDir()
	}
	if cfg.Daemon.IntervalSec <= 0 {
		cfg.Daemon.IntervalSec = DefaultIntervalSec
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func validate(cfg model.Config) error {
	if !model.Priority(cfg.Sync.Priority).Valid() {
		return fmt.Errorf("invalid sync.priority %q (want H, M, or L)", cfg.Sync.Priority)
	}
	return nil
}

// ValidateNetwork checks the fields required to reach the API. Commands that
// never touch the network skip this.
func ValidateNetwork(cfg model.Config) error {
	if cfg.Canvas.BaseURL == "" {
		return fmt.Errorf("canvas.base_url is required (or set CANVAS_BASE_URL)")
	}
	if cfg.Canvas.Token == "" {
		return fmt.Errorf("canvas.token is required (or set CANVAS_TOKEN)")
	}
	return nil
}
