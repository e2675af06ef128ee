package logstream

import (
	"io"

	"github.com/fatih/color"
)

// StreamState is carried from one line to the next. A continuation line has
// no header, so it is routed by what the last matched record decided.
type StreamState struct {
	LastWasConsole bool
	OutputAllowed  bool
	LastSeverity   Severity
}

// Processor classifies complete lines and writes the selected text to out.
// It is not safe for concurrent use; the lifecycle loop owns it.
type Processor struct {
	out     io.Writer
	filter  *Filter
	console Reassembler
	state   StreamState
	color   bool
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithColor colours the severity of forwarded host records.
func WithColor(enabled bool) ProcessorOption {
	return func(p *Processor) {
		p.color = enabled
	}
}

// NewProcessor returns a Processor writing to out. Output is allowed until
// the first host record says otherwise.
func NewProcessor(out io.Writer, filter *Filter, opts ...ProcessorOption) *Processor {
	p := &Processor{
		out:    out,
		filter: filter,
		state:  StreamState{OutputAllowed: true},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns a copy of the routing state.
func (p *Processor) State() StreamState {
	return p.state
}

// Line handles one complete line. When the line finishes a console INFO
// message that is the completion sentinel, done is true and code holds the
// exit status the page asked for.
func (p *Processor) Line(line string) (code int, done bool, err error) {
	rec, matched := ParseLine(line)
	if matched {
		p.state.LastWasConsole = rec.IsConsole()
		p.state.LastSeverity = rec.Severity
		if rec.IsConsole() {
			p.state.OutputAllowed = true
			frag, logical := p.console.Record(rec.Message)
			return p.writeConsole(frag, logical)
		}
		// A host record ends any console message left open.
		if p.console.Reset() {
			if _, err := io.WriteString(p.out, "\n"); err != nil {
				return 0, false, err
			}
		}
		p.state.OutputAllowed = p.filter.Allow(rec)
		if !p.state.OutputAllowed {
			return 0, false, nil
		}
		return 0, false, p.writeRecord(rec)
	}

	if p.state.LastWasConsole {
		frag, logical := p.console.Continuation(line)
		return p.writeConsole(frag, logical)
	}
	if !p.state.OutputAllowed {
		return 0, false, nil
	}
	_, err = io.WriteString(p.out, line+"\n")
	return 0, false, err
}

func (p *Processor) writeConsole(frag Fragment, logical string) (int, bool, error) {
	text := frag.Text
	if frag.Complete {
		text += "\n"
	}
	if _, err := io.WriteString(p.out, text); err != nil {
		return 0, false, err
	}
	if !frag.Complete || p.state.LastSeverity != SeverityInfo {
		return 0, false, nil
	}
	// The completing fragment alone may be the sentinel, whatever was
	// printed before it on the same logical line.
	if code, done := Completion(frag.Text); done {
		return code, true, nil
	}
	code, done := Completion(logical)
	return code, done, nil
}

func (p *Processor) writeRecord(rec Record) error {
	if p.color {
		if c := severityColor(rec.Severity); c != nil {
			c.EnableColor()
			rec.Severity = Severity(c.Sprint(string(rec.Severity)))
		}
	}
	_, err := io.WriteString(p.out, rec.String()+"\n")
	return err
}

func severityColor(s Severity) *color.Color {
	switch s {
	case SeverityError, SeverityErrorReport, SeverityFatal:
		return color.New(color.FgRed, color.Bold)
	case SeverityWarning:
		return color.New(color.FgYellow)
	}
	return nil
}
