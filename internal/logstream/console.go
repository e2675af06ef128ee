package logstream

import (
	"regexp"
	"strings"
)

// ContinuationMarker ends a console fragment whose logical message goes on in
// a later record.
const ContinuationMarker = `\c`

// Chromium appends the script location to every console record:
//
//	"message", source: file:///page.html (12)
var consoleSourceSuffix = regexp.MustCompile(`"?, source: .* \([0-9]+\)$`)

// Fragment is one piece of console text after decoration has been removed.
type Fragment struct {
	Text string
	// Complete is false when the fragment ended with ContinuationMarker.
	Complete bool
}

// Reassembler strips Chromium's decoration from console output and joins
// fragments that were split with ContinuationMarker.
type Reassembler struct {
	partial strings.Builder
	open    bool
}

// Record handles the message of a freshly matched console record.
func (r *Reassembler) Record(message string) (Fragment, string) {
	return r.feed(strings.TrimPrefix(message, `"`))
}

// Continuation handles a header-less line that follows a console record.
func (r *Reassembler) Continuation(line string) (Fragment, string) {
	return r.feed(line)
}

// feed returns the fragment to write and, once a logical message is complete,
// its full text. The logical text is empty while the message is open.
func (r *Reassembler) feed(text string) (Fragment, string) {
	text = consoleSourceSuffix.ReplaceAllLiteralString(text, "")
	if body, open := strings.CutSuffix(text, ContinuationMarker); open {
		r.partial.WriteString(body)
		r.open = true
		return Fragment{Text: body}, ""
	}
	r.partial.WriteString(text)
	logical := r.partial.String()
	r.partial.Reset()
	r.open = false
	return Fragment{Text: text, Complete: true}, logical
}

// Reset drops a logical message that is still waiting for fragments and
// reports whether there was one.
func (r *Reassembler) Reset() bool {
	open := r.open
	r.partial.Reset()
	r.open = false
	return open
}

// Open reports whether a logical message is waiting for more fragments.
func (r *Reassembler) Open() bool {
	return r.open
}
