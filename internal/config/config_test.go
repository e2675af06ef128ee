package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chromerun/internal/logstream"
)

func lookupMap(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(lookupMap(nil))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, logstream.DefaultAllow, cfg.LogAllow)

	level, err := cfg.Level()
	require.NoError(t, err)
	require.Equal(t, slog.LevelInfo, level)
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(lookupMap(map[string]string{
		"CHROMERUN_BROWSER":       "/opt/chrome/chrome",
		"CHROMERUN_LOG_ALLOW":     "^WARNING$",
		"CHROMERUN_LOG_SUPPRESS":  "gpu",
		"CHROMERUN_DEBUG_LEVEL":   "debug",
		"CHROMERUN_DRAIN_TIMEOUT": "250ms",
		"CHROMERUN_COLOR":         "false",
	}))
	require.NoError(t, err)
	require.Equal(t, "/opt/chrome/chrome", cfg.BrowserBin)
	require.Equal(t, "^WARNING$", cfg.LogAllow)
	require.Equal(t, "gpu", cfg.LogSuppress)
	require.Equal(t, 250*time.Millisecond, cfg.DrainTimeout)
	require.False(t, cfg.Color)

	_, err = cfg.Filter()
	require.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(lookupMap(map[string]string{"CHROMERUN_DRAIN_TIMEOUT": "soon"}))
	require.Error(t, err)

	_, err = Load(lookupMap(map[string]string{"CHROMERUN_DEBUG_LEVEL": "loud"}))
	require.ErrorContains(t, err, "CHROMERUN_DEBUG_LEVEL")
}

func TestConfig_FilterInvalid(t *testing.T) {
	cfg := Default()
	cfg.LogAllow = "("
	_, err := cfg.Filter()
	require.Error(t, err)
}
