// Package logstream turns the combined output of a Chromium process into log
// records and decides which of them reach the caller.
//
// Chromium writes one header per record:
//
//	[pid:tid:MMDD/HHMMSS.uuuuuu:tickcount:SEVERITY:source(line)] message
//
// where every field before SEVERITY is optional and has changed between
// browser releases. Lines that do not carry a header belong to the record
// above them.
package logstream

import (
	"fmt"
	"regexp"
	"strconv"
)

// Severity is the level token of a record header.
type Severity string

const (
	SeverityInfo        Severity = "INFO"
	SeverityWarning     Severity = "WARNING"
	SeverityError       Severity = "ERROR"
	SeverityErrorReport Severity = "ERROR_REPORT"
	SeverityFatal       Severity = "FATAL"
	SeverityUnknown     Severity = "UNKNOWN"
)

var verbosePattern = regexp.MustCompile(`^VERBOSE[0-9]+$`)

// ParseSeverity maps a header token to a Severity. VERBOSE<n> tokens keep
// their level; anything unrecognised is SeverityUnknown.
func ParseSeverity(token string) Severity {
	switch s := Severity(token); s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityErrorReport, SeverityFatal:
		return s
	}
	if verbosePattern.MatchString(token) {
		return Severity(token)
	}
	return SeverityUnknown
}

// ConsoleSource is the source name Chromium uses for page console output.
const ConsoleSource = "CONSOLE"

// Record is one classified log header plus the text that follows it on the
// same line.
type Record struct {
	Severity   Severity
	Source     string
	LineNumber int
	Message    string
}

// IsConsole reports whether the record carries page console output.
func (r Record) IsConsole() bool {
	return r.Source == ConsoleSource
}

// String renders the record the way it is forwarded to the caller.
func (r Record) String() string {
	return fmt.Sprintf("%s:%s(%d): %s", r.Severity, r.Source, r.LineNumber, r.Message)
}

var headerPattern = regexp.MustCompile(
	`^\[` +
		`(?:[0-9]+:){0,2}` + // pid, tid
		`(?:[0-9]{4}/[0-9]{6}(?:\.[0-9]{6}|\.[0-9]{3})?:)?` + // MMDD/HHMMSS[.fraction]
		`(?:[0-9]+:)?` + // tick count
		`([A-Z_]+[0-9]*):` +
		`([^()\]]*)\(([0-9]+)\)\] ` +
		`(.*)$`)

// ParseLine matches a complete line against the header grammar. A false
// result is not an error: the line continues the previous record.
func ParseLine(line string) (Record, bool) {
	m := headerPattern.FindStringSubmatch(line)
	if m == nil {
		return Record{}, false
	}
	lineNumber, err := strconv.Atoi(m[3])
	if err != nil {
		lineNumber = 0
	}
	return Record{
		Severity:   ParseSeverity(m[1]),
		Source:     m[2],
		LineNumber: lineNumber,
		Message:    m[4],
	}, true
}
