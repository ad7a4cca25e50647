// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/lehigh-university-libraries/ellie/internal/catalog"
	"github.com/lehigh-university-libraries/ellie/internal/cutout"
	"github.com/lehigh-university-libraries/ellie/internal/pointing"
)

// Config holds every setting a lookup needs.
type Config struct {
	CatalogPath     string `env:"ELLIE_CATALOG" envDefault:"postcard.cat"`
	PointingDir     string `env:"ELLIE_POINTING_DIR" envDefault:"."`
	PointingPattern string `env:"ELLIE_POINTING_PATTERN" envDefault:"pointingModel_%d-%d.txt"`
	Camera          int    `env:"ELLIE_CAMERA" envDefault:"3"`
	Chip            int    `env:"ELLIE_CHIP" envDefault:"3"`
	PostcardDir     string `env:"ELLIE_POSTCARD_DIR" envDefault:"."`
	Window          int    `env:"ELLIE_WINDOW" envDefault:"9"`
	MaxHeaderCards  int    `env:"ELLIE_MAX_HEADER_CARDS" envDefault:"146"`
	Concurrency     int    `env:"ELLIE_CONCURRENCY" envDefault:"4"`
	ResolverURL     string `env:"ELLIE_RESOLVER_URL"`
	LogLevel        string `env:"ELLIE_LOG_LEVEL" envDefault:"info"`
	OutputDir       string `env:"ELLIE_OUTPUT_DIR" envDefault:"."`
}

// Load parses the environment into a Config. Callers apply their own
// overrides and then call Validate.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		CatalogPath:     "postcard.cat",
		PointingDir:     ".",
		PointingPattern: pointing.DefaultFilePattern,
		Camera:          3,
		Chip:            3,
		PostcardDir:     ".",
		Window:          cutout.DefaultWindow.Width,
		MaxHeaderCards:  catalog.DefaultMaxHeaderCards,
		Concurrency:     4,
		LogLevel:        "info",
		OutputDir:       ".",
	}
}

// Validate rejects settings no lookup can run with.
func (c *Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("invalid window size %d: must be positive", c.Window)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("invalid concurrency %d: must be positive", c.Concurrency)
	}
	if c.MaxHeaderCards <= 0 {
		return fmt.Errorf("invalid header card limit %d: must be positive", c.MaxHeaderCards)
	}
	if c.CatalogPath == "" {
		return fmt.Errorf("catalog path is required")
	}
	if n := strings.Count(c.PointingPattern, "%d"); n != 2 || strings.Count(c.PointingPattern, "%") != 2 {
		return fmt.Errorf("pointing model pattern %q needs exactly two %%d placeholders, camera then chip", c.PointingPattern)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// CutoutWindow returns the square cutout window.
func (c *Config) CutoutWindow() cutout.Window {
	return cutout.Square(c.Window)
}

// ParseLevel maps debug, info, warn and error onto slog levels.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
	return l, nil
}
