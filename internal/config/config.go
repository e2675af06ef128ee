// Package config reads the launcher's settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mstoykov/envconfig"

	"chromerun/internal/logstream"
)

// Config holds every environment override the launcher understands.
type Config struct {
	BrowserBin         string        `envconfig:"CHROMERUN_BROWSER"`
	XvfbBin            string        `envconfig:"CHROMERUN_XVFB"`
	LogAllow           string        `envconfig:"CHROMERUN_LOG_ALLOW"`
	LogSuppress        string        `envconfig:"CHROMERUN_LOG_SUPPRESS"`
	DebugLevel         string        `envconfig:"CHROMERUN_DEBUG_LEVEL"`
	Screen             string        `envconfig:"CHROMERUN_SCREEN"`
	DisplayTimeout     time.Duration `envconfig:"CHROMERUN_DISPLAY_TIMEOUT"`
	DisplayStopTimeout time.Duration `envconfig:"CHROMERUN_DISPLAY_STOP_TIMEOUT"`
	DrainTimeout       time.Duration `envconfig:"CHROMERUN_DRAIN_TIMEOUT"`
	Color              bool          `envconfig:"CHROMERUN_COLOR"`
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		LogAllow:           logstream.DefaultAllow,
		LogSuppress:        logstream.DefaultSuppress,
		DebugLevel:         "info",
		Screen:             "1280x1024x24",
		DisplayTimeout:     10 * time.Second,
		DisplayStopTimeout: 5 * time.Second,
		DrainTimeout:       2 * time.Second,
		Color:              true,
	}
}

// Load applies the environment on top of Default. A nil lookup reads the
// process environment.
func Load(lookup func(key string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := Default()
	if err := envconfig.Process("", &cfg, lookup); err != nil {
		return cfg, fmt.Errorf("failed to read environment: %w", err)
	}
	if _, err := cfg.Level(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Filter compiles the allow and suppress patterns.
func (c Config) Filter() (*logstream.Filter, error) {
	return logstream.NewFilter(c.LogAllow, c.LogSuppress)
}

// Level parses DebugLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.DebugLevel))); err != nil {
		return level, fmt.Errorf("invalid CHROMERUN_DEBUG_LEVEL %q: %w", c.DebugLevel, err)
	}
	return level, nil
}
