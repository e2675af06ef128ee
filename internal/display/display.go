// Package display runs an Xvfb virtual framebuffer for the browser to render
// into.
package display

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ErrStartFailed wraps every reason a display did not become ready.
var ErrStartFailed = errors.New("virtual display failed to start")

// Manager starts and stops Xvfb servers.
type Manager struct {
	Bin          string
	Screen       string        // WxHxD geometry of screen 0
	ReadyTimeout time.Duration // how long Start waits for the display number
	StopTimeout  time.Duration // how long Stop waits after SIGTERM
	Logger       *slog.Logger
}

// Display is a running Xvfb server.
type Display struct {
	Number int

	cmd     *exec.Cmd
	stderr  *bytes.Buffer
	done    chan struct{}
	waitErr error
}

// Name returns the X display name, for example ":99".
func (d *Display) Name() string {
	return ":" + strconv.Itoa(d.Number)
}

// Env returns the environment entry that points X clients at the display.
func (d *Display) Env() string {
	return "DISPLAY=" + d.Name()
}

// Exited reports whether the server process has ended.
func (d *Display) Exited() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// Start launches Xvfb and waits until it reports the display number it
// picked through -displayfd.
func (m *Manager) Start(ctx context.Context) (*Display, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create displayfd pipe: %w", ErrStartFailed, err)
	}
	defer func() { _ = r.Close() }()

	args := []string{"-displayfd", "3", "-nolisten", "tcp"}
	if m.Screen != "" {
		args = append(args, "-screen", "0", m.Screen)
	}
	cmd := exec.Command(m.Bin, args...)
	cmd.ExtraFiles = []*os.File{w}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}

	d := &Display{cmd: cmd, stderr: &stderr, done: make(chan struct{})}
	// Pdeathsig follows the forking OS thread, so Xvfb is started and waited
	// for on one locked goroutine that lives as long as the server.
	started := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if err := cmd.Start(); err != nil {
			started <- err
			return
		}
		started <- nil
		d.waitErr = cmd.Wait()
		close(d.done)
	}()
	if err := <-started; err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}
	// Only Xvfb may hold the write end, so its exit is seen as EOF.
	_ = w.Close()

	type result struct {
		number int
		err    error
	}
	ready := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && line == "" {
			ready <- result{err: fmt.Errorf("reading display number: %w", err)}
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			ready <- result{err: fmt.Errorf("unexpected display number %q: %w", line, err)}
			return
		}
		ready <- result{number: n}
	}()

	timeout := m.ReadyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var failure error
	select {
	case res := <-ready:
		if res.err == nil {
			d.Number = res.number
			m.logger().Debug("Virtual display ready", "display", d.Name(), "pid", cmd.Process.Pid)
			return d, nil
		}
		failure = res.err
	case <-d.done:
		failure = fmt.Errorf("xvfb exited: %v", d.waitErr)
	case <-timer.C:
		failure = fmt.Errorf("no display number after %s", timeout)
	case <-ctx.Done():
		failure = ctx.Err()
	}

	_ = cmd.Process.Kill()
	<-d.done
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		return nil, fmt.Errorf("%w: %w: %s", ErrStartFailed, failure, msg)
	}
	return nil, fmt.Errorf("%w: %w", ErrStartFailed, failure)
}

// Stop terminates the server, killing it if it ignores SIGTERM for longer
// than StopTimeout. Stopping a display that already exited is a no-op.
func (m *Manager) Stop(d *Display) error {
	if d == nil || d.Exited() {
		return nil
	}
	if err := d.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return fmt.Errorf("failed to terminate display %s: %w", d.Name(), err)
	}

	timeout := m.StopTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-d.done:
		return nil
	case <-time.After(timeout):
	}

	_ = d.cmd.Process.Kill()
	<-d.done
	return fmt.Errorf("display %s ignored SIGTERM for %s and was killed", d.Name(), timeout)
}
