package lifecycle

import "os"

// EventKind tells the event loop what happened.
type EventKind int

const (
	// EventLine carries one complete line from a browser output stream.
	EventLine EventKind = iota
	// EventStreamClosed marks the end of one output stream.
	EventStreamClosed
	// EventChildExit reports that the browser process ended.
	EventChildExit
	// EventInterrupt carries a signal received by the launcher.
	EventInterrupt
)

// Event is one input to the lifecycle loop.
type Event struct {
	Kind EventKind

	Stream string
	Line   string
	Err    error

	ExitCode int
	Signal   string

	Interrupt os.Signal
}
