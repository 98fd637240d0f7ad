// Package config layers labstat settings: built-in defaults, an optional
// YAML config file, LABSTAT_* environment variables and command-line flags,
// later sources overriding earlier ones.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/labstat/internal/model"
)

// EnvPrefix prefixes every environment variable, e.g. LABSTAT_DB.
const EnvPrefix = "LABSTAT"

// Defaults.
const (
	DefaultDB     = "labstat.db"
	DefaultFormat = "text"
	DefaultWidth  = 6.0 // inches
	DefaultHeight = 4.5 // inches
	DefaultDPI    = 300
)

// Config holds resolved settings.
type Config struct {
	Alpha  float64     `mapstructure:"alpha"`
	DB     string      `mapstructure:"db"`
	Format string      `mapstructure:"format"`
	Chart  ChartConfig `mapstructure:"chart"`

	// File is the config file that was read, empty when none.
	File string `mapstructure:"-"`
}

// ChartConfig holds figure defaults applied when a plan leaves them unset.
type ChartConfig struct {
	Width  float64 `mapstructure:"width"`
	Height float64 `mapstructure:"height"`
	DPI    int     `mapstructure:"dpi"`
}

// ChartOptions returns the chart defaults as options.
func (c *Config) ChartOptions() model.ChartOptions {
	return model.ChartOptions{Width: c.Chart.Width, Height: c.Chart.Height, DPI: c.Chart.DPI}
}

// flagKeys maps command-line flags to config keys. Flags absent from the
// flag set are ignored.
var flagKeys = map[string]string{
	"alpha":  "alpha",
	"db":     "db",
	"format": "format",
	"width":  "chart.width",
	"height": "chart.height",
	"dpi":    "chart.dpi",
}

// DefaultPath returns $XDG_CONFIG_HOME/labstat/config.yaml (or the platform
// equivalent), or "" when no config directory is known.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "labstat", "config.yaml")
}

// Load resolves the configuration.
//
// An explicit path must exist. Without one, DefaultPath is read when present.
// flags may be nil; only flags the user actually set override other sources.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault("alpha", model.DefaultAlpha)
	v.SetDefault("db", DefaultDB)
	v.SetDefault("format", DefaultFormat)
	v.SetDefault("chart.width", DefaultWidth)
	v.SetDefault("chart.height", DefaultHeight)
	v.SetDefault("chart.dpi", DefaultDPI)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := path
	if file == "" {
		if def := DefaultPath(); def != "" {
			if _, err := os.Stat(def); err == nil {
				file = def
			}
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound *os.PathError
			if errors.As(err, &notFound) {
				return nil, fmt.Errorf("config file %s: %w", file, notFound.Err)
			}
			return nil, fmt.Errorf("config file %s: %w", file, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = file
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if !(c.Alpha > 0 && c.Alpha < 1) {
		return fmt.Errorf("alpha %v must lie in (0, 1)", c.Alpha)
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("invalid format %q: must be text or json", c.Format)
	}
	if c.Chart.Width <= 0 || c.Chart.Height <= 0 || c.Chart.DPI <= 0 {
		return fmt.Errorf("chart width, height and dpi must be positive")
	}
	return nil
}
