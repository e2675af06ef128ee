package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chromerun/internal/config"
	"chromerun/internal/display"
	"chromerun/internal/lifecycle"
	"chromerun/internal/resolve"
)

type fakeDisplays struct {
	mu       sync.Mutex
	startErr error
	started  int
	stopped  int
}

func (f *fakeDisplays) Start(context.Context) (*display.Display, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started++
	return &display.Display{Number: 99}, nil
}

func (f *fakeDisplays) Stop(*display.Display) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return nil
}

// fakeBrowser writes a shell script standing in for the browser. It reports
// its display and creates the profile directory it was handed, like Chrome.
func fakeBrowser(t *testing.T, body string) string {
	t.Helper()
	script := `#!/bin/sh
echo "display=$DISPLAY" >&2
for a in "$@"; do
  case "$a" in
    --user-data-dir=*) mkdir -p "${a#--user-data-dir=}" ;;
  esac
done
` + body + "\n"
	path := filepath.Join(t.TempDir(), "chrome")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

type result struct {
	code  int
	err   error
	exits []int
}

func run(t *testing.T, args []string, opts Options) result {
	t.Helper()
	var mu sync.Mutex
	var exits []int
	opts.Exit = func(code int) {
		mu.Lock()
		defer mu.Unlock()
		exits = append(exits, code)
	}

	done := make(chan result, 1)
	go func() {
		code, err := Run(context.Background(), args, opts)
		done <- result{code: code, err: err}
	}()
	select {
	case r := <-done:
		mu.Lock()
		defer mu.Unlock()
		r.exits = exits
		return r
	case <-time.After(15 * time.Second):
		t.Fatal("run did not finish")
		return result{}
	}
}

func TestRun_CompletionSentinel(t *testing.T) {
	cfg := config.Default()
	cfg.BrowserBin = fakeBrowser(t, `echo '[1:1:0101/000000.000:INFO:CONSOLE(3)] "All tests completed!3", source: file:///t.html (3)' >&2
exec sleep 30`)
	displays := &fakeDisplays{}
	tmp := t.TempDir()
	var out bytes.Buffer

	r := run(t, []string{"--headless=new", "file:///t.html"}, Options{
		Config:  cfg,
		Stdout:  &out,
		Display: displays,
		TempDir: tmp,
	})
	require.NoError(t, r.err)
	require.Equal(t, 3, r.code)
	require.Equal(t, []int{3}, r.exits)
	require.Contains(t, out.String(), "display=:99\n")
	require.Contains(t, out.String(), "All tests completed!3\n")
	require.Equal(t, 1, displays.stopped)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	require.Empty(t, entries, "temporary profile is removed")
}

func TestRun_BrowserExitsWithoutSentinel(t *testing.T) {
	cfg := config.Default()
	cfg.BrowserBin = fakeBrowser(t, `echo "Chromium 120.0.6099.71"
exit 0`)
	displays := &fakeDisplays{}
	var out bytes.Buffer

	r := run(t, []string{"--version"}, Options{
		Config:  cfg,
		Stdout:  &out,
		Display: displays,
		TempDir: t.TempDir(),
	})
	require.NoError(t, r.err)
	require.Equal(t, lifecycle.ExitCodeNoCompletion, r.code)
	require.Contains(t, out.String(), "Chromium 120.0.6099.71\n")
	require.Equal(t, 1, displays.stopped)
}

func TestRun_CallerProfileIsKept(t *testing.T) {
	cfg := config.Default()
	cfg.BrowserBin = fakeBrowser(t, "exit 0")
	profile := filepath.Join(t.TempDir(), "profile")

	r := run(t, []string{"--user-data-dir=" + profile}, Options{
		Config:  cfg,
		Stdout:  &bytes.Buffer{},
		Display: &fakeDisplays{},
	})
	require.NoError(t, r.err)
	require.DirExists(t, profile)
}

func TestRun_InterruptTerminatesBrowser(t *testing.T) {
	cfg := config.Default()
	cfg.BrowserBin = fakeBrowser(t, "exec sleep 30")
	displays := &fakeDisplays{}
	signals := make(chan os.Signal, 1)
	signals <- syscall.SIGTERM

	r := run(t, []string{"about:blank"}, Options{
		Config:  cfg,
		Stdout:  &bytes.Buffer{},
		Display: displays,
		TempDir: t.TempDir(),
		Signals: signals,
	})
	require.NoError(t, r.err)
	require.Equal(t, lifecycle.ExitCodeNoCompletion, r.code)
	require.Equal(t, 1, displays.stopped)
}

func TestRun_SetupErrors(t *testing.T) {
	t.Run("no flags", func(t *testing.T) {
		code, err := Run(context.Background(), nil, Options{Config: config.Default()})
		require.Equal(t, ExitCodeSetupFailure, code)
		require.ErrorIs(t, err, ErrNoFlags)
	})

	t.Run("browser missing", func(t *testing.T) {
		cfg := config.Default()
		cfg.BrowserBin = filepath.Join(t.TempDir(), "missing-chrome")
		displays := &fakeDisplays{}

		code, err := Run(context.Background(), []string{"about:blank"}, Options{Config: cfg, Display: displays})
		require.Equal(t, ExitCodeSetupFailure, code)
		require.ErrorIs(t, err, resolve.ErrNotFound)
		require.Zero(t, displays.started)
	})

	t.Run("invalid filter", func(t *testing.T) {
		cfg := config.Default()
		cfg.LogAllow = "("

		_, err := Run(context.Background(), []string{"about:blank"}, Options{Config: cfg})
		var setupErr *SetupError
		require.ErrorAs(t, err, &setupErr)
		require.Equal(t, "config", setupErr.Stage)
	})

	t.Run("display fails", func(t *testing.T) {
		cfg := config.Default()
		cfg.BrowserBin = fakeBrowser(t, "exit 0")
		failure := errors.New("no screens")

		code, err := Run(context.Background(), []string{"about:blank"}, Options{
			Config:  cfg,
			Display: &fakeDisplays{startErr: failure},
		})
		require.Equal(t, ExitCodeSetupFailure, code)
		require.ErrorIs(t, err, failure)
		require.True(t, strings.HasPrefix(err.Error(), "display: "))
	})
}
