// Package runner wires one launcher run together: it resolves the browser,
// starts the virtual display, spawns the browser into it and hands control
// to the lifecycle coordinator.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"chromerun/internal/browser"
	"chromerun/internal/config"
	"chromerun/internal/display"
	"chromerun/internal/lifecycle"
	"chromerun/internal/logstream"
	"chromerun/internal/resolve"
	"chromerun/internal/workspace"
)

// ExitCodeSetupFailure is the exit code for every failure before the browser
// runs.
const ExitCodeSetupFailure = 255

// ErrNoFlags is returned when no browser flags were given.
var ErrNoFlags = errors.New("no browser flags given")

// SetupError is a fatal failure before the browser started. Nothing needs to
// be torn down after one.
type SetupError struct {
	Stage string
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// DisplayManager starts and stops virtual displays.
type DisplayManager interface {
	Start(ctx context.Context) (*display.Display, error)
	Stop(d *display.Display) error
}

// Options carries everything Run needs besides the browser flags.
type Options struct {
	Config config.Config
	Stdout io.Writer // forwarded browser output
	Logger *slog.Logger
	Color  bool // colour forwarded host records

	// The fields below default to the real host when left empty.
	Display DisplayManager
	Fs      afero.Fs
	TempDir string
	Exit    func(code int)
	Signals <-chan os.Signal
}

// displayHandle binds a started display to the manager that stops it.
type displayHandle struct {
	manager DisplayManager
	display *display.Display
}

func (h displayHandle) Stop() error {
	return h.manager.Stop(h.display)
}

// Run launches the browser with args and blocks until the run is over. It
// returns the run's exit code; with the default Exit the process ends
// instead. A returned error is always a *SetupError.
func Run(ctx context.Context, args []string, opts Options) (int, error) {
	if len(args) == 0 {
		return ExitCodeSetupFailure, &SetupError{Stage: "usage", Err: ErrNoFlags}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	cfg := opts.Config

	filter, err := cfg.Filter()
	if err != nil {
		return ExitCodeSetupFailure, &SetupError{Stage: "config", Err: err}
	}

	browserPath, err := resolve.Executable(cfg.BrowserBin, resolve.BrowserCandidates)
	if err != nil {
		return ExitCodeSetupFailure, &SetupError{Stage: "browser lookup", Err: err}
	}

	dm := opts.Display
	if dm == nil {
		xvfbPath, err := resolve.Executable(cfg.XvfbBin, resolve.XvfbCandidates)
		if err != nil {
			return ExitCodeSetupFailure, &SetupError{Stage: "xvfb lookup", Err: err}
		}
		dm = &display.Manager{
			Bin:          xvfbPath,
			Screen:       cfg.Screen,
			ReadyTimeout: cfg.DisplayTimeout,
			StopTimeout:  cfg.DisplayStopTimeout,
			Logger:       logger,
		}
	}

	ws := workspace.New(fs, opts.TempDir)
	cmd := browser.BuildCommand(args, ws.Path)

	d, err := dm.Start(ctx)
	if err != nil {
		return ExitCodeSetupFailure, &SetupError{Stage: "display", Err: err}
	}
	logger.Debug("Starting browser", "path", browserPath, "args", cmd.Args, "display", d.Name())

	proc, err := browser.Start(browserPath, cmd.Args, []string{d.Env()}, logger)
	if err != nil {
		if stopErr := dm.Stop(d); stopErr != nil {
			logger.Error("Failed to stop virtual display", "error", stopErr)
		}
		return ExitCodeSetupFailure, &SetupError{Stage: "browser", Err: err}
	}

	// The caller's own profile directory is never removed.
	var owned lifecycle.Workspace
	if cmd.UserDataDir != "" {
		owned = ws
	}
	coordOpts := []lifecycle.Option{
		lifecycle.WithLogger(logger),
		lifecycle.WithDrainTimeout(cfg.DrainTimeout),
	}
	if opts.Exit != nil {
		coordOpts = append(coordOpts, lifecycle.WithExit(opts.Exit))
	}
	processor := logstream.NewProcessor(stdout, filter, logstream.WithColor(opts.Color))
	coord := lifecycle.New(processor, proc, displayHandle{manager: dm, display: d}, owned, coordOpts...)

	coord.Attach(ctx, "stdout", proc.Stdout())
	coord.Attach(ctx, "stderr", proc.Stderr())
	coord.WatchExit(proc.Done(), proc.ExitStatus)

	signals := opts.Signals
	if signals == nil {
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(ch)
		signals = ch
	}
	coord.WatchSignals(signals)

	return coord.Run(ctx), nil
}
