package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"chromerun/internal/config"
	"chromerun/internal/runner"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var rootCmd = &cobra.Command{
	Use:   "chromerun [browser flags...]",
	Short: "Run a headless browser test page inside a virtual display",
	Long: `chromerun starts a private Xvfb display, launches Chrome or Chromium in it
with the given flags and forwards the browser's log output. Console messages
are always shown; other log records are filtered by severity.

The run ends when a page logs "All tests completed!<code>" to the console.
chromerun then exits with <code> (masked to 0-255, 0 when absent). If the
browser exits first, the exit status is 255.

Environment:
  CHROMERUN_BROWSER              browser executable (default: first of google-chrome, chromium, ...)
  CHROMERUN_XVFB                 Xvfb executable (default: Xvfb)
  CHROMERUN_LOG_ALLOW            severities to show (default: ^(?:ERROR|ERROR_REPORT|FATAL)$)
  CHROMERUN_LOG_SUPPRESS         messages to hide, case-insensitive (default: dbus)
  CHROMERUN_DEBUG_LEVEL          launcher log level: debug, info, warn, error (default: info)
  CHROMERUN_SCREEN               Xvfb screen geometry (default: 1280x1024x24)
  CHROMERUN_DISPLAY_TIMEOUT      wait for Xvfb readiness (default: 10s)
  CHROMERUN_DISPLAY_STOP_TIMEOUT wait for Xvfb to stop before killing it (default: 5s)
  CHROMERUN_DRAIN_TIMEOUT        keep reading output after the browser exited (default: 2s)
  CHROMERUN_COLOR                colour severities on a terminal (default: true)`,
	Example: `  chromerun --headless=new file:///srv/tests/index.html`,
	// Every argument belongs to the browser.
	DisableFlagParsing: true,
	SilenceUsage:       true,
	SilenceErrors:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			_ = cmd.Usage()
			return &runner.SetupError{Stage: "usage", Err: runner.ErrNoFlags}
		}

		cfg, err := config.Load(nil)
		if err != nil {
			return &runner.SetupError{Stage: "config", Err: err}
		}
		level, err := cfg.Level()
		if err != nil {
			return &runner.SetupError{Stage: "config", Err: err}
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		_, err = runner.Run(context.Background(), args, runner.Options{
			Config: cfg,
			Stdout: os.Stdout,
			Logger: logger,
			Color:  cfg.Color && term.IsTerminal(int(os.Stdout.Fd())),
		})
		return err
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Usage was already printed for a bare invocation.
		if !errors.Is(err, runner.ErrNoFlags) {
			fmt.Fprintln(os.Stderr, "chromerun:", err)
		}
		os.Exit(runner.ExitCodeSetupFailure)
	}
}
