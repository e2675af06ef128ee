// Package lifecycle decides when a launcher run ends and tears down the
// browser, the virtual display and the temporary workspace in a fixed order.
//
// Every input (decoded lines, stream ends, browser exit, signals) is funnelled
// through one channel and handled by Run on a single goroutine, so none of
// the run state needs locking.
package lifecycle

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"chromerun/internal/logstream"
)

// ExitCodeNoCompletion is the run's exit code when the browser exits without
// printing the completion sentinel.
const ExitCodeNoCompletion = -1

// Child is the supervised browser process.
type Child interface {
	Terminate() error
	Kill() error
	Exited() bool
}

// Display is a running virtual display.
type Display interface {
	Stop() error
}

// Workspace is transient state removed at the end of the run.
type Workspace interface {
	Remove() error
}

// State is the coordinator's position in its lifecycle.
type State int

const (
	StateRunning State = iota
	StateTearingDown
	StateExited
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateTearingDown:
		return "tearing-down"
	case StateExited:
		return "exited"
	}
	return "unknown"
}

// Coordinator owns the browser, display and workspace handles for one run.
type Coordinator struct {
	processor *logstream.Processor
	child     Child
	display   Display
	workspace Workspace

	logger       *slog.Logger
	exit         func(code int)
	drainTimeout time.Duration

	events   chan Event
	stopped  chan struct{}
	streams  []io.Closer
	open     int
	state    State
	exitCode int

	childExited     bool
	teardownStarted bool
	detached        bool
	drain           *time.Timer
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger for coordinator diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithExit replaces os.Exit as the final teardown step.
func WithExit(exit func(code int)) Option {
	return func(c *Coordinator) {
		c.exit = exit
	}
}

// WithDrainTimeout bounds how long output is still read after the browser
// exited with its streams open.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.drainTimeout = d
	}
}

// New returns a coordinator in StateRunning. display and workspace may be nil.
func New(processor *logstream.Processor, child Child, display Display, workspace Workspace, opts ...Option) *Coordinator {
	c := &Coordinator{
		processor:    processor,
		child:        child,
		display:      display,
		workspace:    workspace,
		logger:       slog.Default(),
		exit:         os.Exit,
		drainTimeout: 2 * time.Second,
		events:       make(chan Event, 256),
		stopped:      make(chan struct{}),
		exitCode:     ExitCodeNoCompletion,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state. Only meaningful from the Run
// goroutine or after Run returned.
func (c *Coordinator) State() State {
	return c.state
}

func (c *Coordinator) send(ev Event) {
	select {
	case c.events <- ev:
	case <-c.stopped:
	}
}

// Attach starts decoding r as the named output stream. Each stream gets its
// own decoder. Attach must be called before Run.
func (c *Coordinator) Attach(ctx context.Context, name string, r io.Reader) {
	if closer, ok := r.(io.Closer); ok {
		c.streams = append(c.streams, closer)
	}
	c.open++
	go func() {
		err := logstream.Pump(ctx, r, func(line string) {
			c.send(Event{Kind: EventLine, Stream: name, Line: line})
		})
		c.send(Event{Kind: EventStreamClosed, Stream: name, Err: err})
	}()
}

// WatchExit reports the browser's exit once done is closed. status, when not
// nil, is called after done to describe how the browser ended.
func (c *Coordinator) WatchExit(done <-chan struct{}, status func() (int, string)) {
	go func() {
		select {
		case <-done:
		case <-c.stopped:
			return
		}
		ev := Event{Kind: EventChildExit}
		if status != nil {
			ev.ExitCode, ev.Signal = status()
		}
		c.send(ev)
	}()
}

// WatchSignals forwards every received signal to the event loop.
func (c *Coordinator) WatchSignals(signals <-chan os.Signal) {
	go func() {
		for {
			select {
			case sig, ok := <-signals:
				if !ok {
					return
				}
				c.send(Event{Kind: EventInterrupt, Interrupt: sig})
			case <-c.stopped:
				return
			}
		}
	}()
}

// Run handles events until teardown finished and returns the exit code the
// run ended with. With the default exit function it never returns.
func (c *Coordinator) Run(ctx context.Context) int {
	defer close(c.stopped)
	done := ctx.Done()
	for c.state != StateExited {
		var drained <-chan time.Time
		if c.drain != nil {
			drained = c.drain.C
		}
		select {
		case ev := <-c.events:
			c.handle(ev)
		case <-drained:
			c.logger.Debug("Browser output still open after exit, giving up", "timeout", c.drainTimeout)
			c.Teardown(ExitCodeNoCompletion)
		case <-done:
			done = nil
			c.interrupt("context canceled")
		}
	}
	return c.exitCode
}

func (c *Coordinator) handle(ev Event) {
	switch ev.Kind {
	case EventLine:
		if c.detached {
			return
		}
		code, finished, err := c.processor.Line(ev.Line)
		if err != nil {
			c.logger.Warn("Failed to forward browser output", "stream", ev.Stream, "error", err)
		}
		if finished {
			c.logger.Debug("Completion sentinel seen", "exit_code", code)
			c.Teardown(code)
		}

	case EventStreamClosed:
		c.open--
		if ev.Err != nil && !c.detached {
			c.logger.Warn("Failed to read browser output", "stream", ev.Stream, "error", ev.Err)
		}
		if c.childExited && c.open <= 0 {
			c.Teardown(ExitCodeNoCompletion)
		}

	case EventChildExit:
		c.childExited = true
		c.logger.Debug("Browser exited", "exit_code", ev.ExitCode, "signal", ev.Signal)
		if c.state != StateRunning {
			return
		}
		if c.open <= 0 {
			c.Teardown(ExitCodeNoCompletion)
			return
		}
		c.drain = time.NewTimer(c.drainTimeout)

	case EventInterrupt:
		c.interrupt(ev.Interrupt.String())
	}
}

// interrupt asks the browser to terminate; its exit drives teardown.
func (c *Coordinator) interrupt(reason string) {
	if c.state != StateRunning || c.childExited {
		c.logger.Debug("Interrupt ignored", "reason", reason, "state", c.state)
		return
	}
	c.logger.Debug("Interrupt received, terminating browser", "reason", reason)
	if err := c.child.Terminate(); err != nil {
		c.logger.Error("Failed to terminate browser", "error", err)
	}
}

// Teardown runs the shutdown sequence once; later calls do nothing. Each step
// is attempted even when an earlier one failed.
func (c *Coordinator) Teardown(code int) {
	if c.teardownStarted {
		return
	}
	c.teardownStarted = true
	c.state = StateTearingDown
	c.exitCode = code
	if c.drain != nil {
		c.drain.Stop()
		c.drain = nil
	}

	c.detached = true
	for _, s := range c.streams {
		_ = s.Close()
	}

	if c.display != nil {
		if err := c.display.Stop(); err != nil {
			c.logger.Error("Failed to stop virtual display", "error", err)
		}
	}

	if !c.childExited && !c.child.Exited() {
		if err := c.child.Kill(); err != nil {
			c.logger.Error("Failed to kill browser", "error", err)
		}
	}

	if c.workspace != nil {
		if err := c.workspace.Remove(); err != nil {
			c.logger.Error("Failed to remove temporary workspace", "error", err)
		}
	}

	c.state = StateExited
	c.exit(code)
}
