package browser

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
)

// Process is a running browser with its two output streams.
type Process struct {
	cmd    *exec.Cmd
	stdout *os.File
	stderr *os.File
	done   chan struct{}
	logger *slog.Logger

	waitErr error
}

// Start spawns path with args. env is appended to the current environment.
// The parent keeps only the read ends of the output pipes, so the exit
// notification never waits for the streams to drain.
func Start(path string, args, env []string, logger *slog.Logger) (*Process, error) {
	if logger == nil {
		logger = slog.Default()
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	cmd := exec.Command(path, args...)
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.Env = append(os.Environ(), env...)
	// Own process group so a terminal interrupt reaches only the launcher,
	// which forwards it.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}

	p := &Process{
		cmd:    cmd,
		stdout: stdoutR,
		stderr: stderrR,
		done:   make(chan struct{}),
		logger: logger,
	}
	if err := p.spawn(); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	closeAll(stdoutW, stderrW)
	return p, nil
}

// spawn starts and waits for the browser on one goroutine locked to its OS
// thread. Pdeathsig is tied to the thread that forked the child, so that
// thread must outlive the browser rather than be retired by the runtime.
func (p *Process) spawn() error {
	started := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if err := p.cmd.Start(); err != nil {
			started <- err
			return
		}
		started <- nil
		p.waitErr = p.cmd.Wait()
		close(p.done)
	}()
	return <-started
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// Pid returns the browser's process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Stdout returns the read end of the browser's standard output.
func (p *Process) Stdout() io.ReadCloser {
	return p.stdout
}

// Stderr returns the read end of the browser's standard error.
func (p *Process) Stderr() io.ReadCloser {
	return p.stderr
}

// Done is closed once the browser has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the browser has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitStatus returns the exit code and, when the browser was killed by a
// signal, the signal name. It is only meaningful after Done is closed.
func (p *Process) ExitStatus() (exitCode int, signalName string) {
	if p.waitErr == nil {
		return 0, ""
	}
	var exitErr *exec.ExitError
	if !errors.As(p.waitErr, &exitErr) {
		return -1, ""
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return exitErr.ExitCode(), status.Signal().String()
	}
	return exitErr.ExitCode(), ""
}

// Terminate asks the browser to shut down with SIGTERM.
func (p *Process) Terminate() error {
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to send SIGTERM to browser %d: %w", p.Pid(), err)
	}
	return nil
}

// Kill force-kills the browser, its process group and every descendant that
// left the group. Descendants are collected first because they are
// re-parented once the browser is gone.
func (p *Process) Kill() error {
	descendants := collectDescendants(int32(p.Pid()))

	var firstErr error
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		firstErr = fmt.Errorf("failed to kill browser %d: %w", p.Pid(), err)
	}
	if err := syscall.Kill(-p.Pid(), syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		p.logger.Warn("Failed to kill browser process group", "pgid", p.Pid(), "error", err)
	}
	for _, child := range descendants {
		if err := child.Kill(); err != nil {
			if running, _ := child.IsRunning(); running {
				p.logger.Warn("Failed to kill browser child process", "pid", child.Pid, "error", err)
			}
		}
	}
	return firstErr
}

func collectDescendants(pid int32) []*process.Process {
	root, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}
	var all []*process.Process
	queue := []*process.Process{root}
	for len(queue) > 0 {
		children, err := queue[0].Children()
		queue = queue[1:]
		if err != nil {
			continue
		}
		all = append(all, children...)
		queue = append(queue, children...)
	}
	return all
}
