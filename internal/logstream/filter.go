package logstream

import (
	"fmt"
	"regexp"
)

const (
	// DefaultAllow matches the severities forwarded when nothing is configured.
	DefaultAllow = `^(?:ERROR|ERROR_REPORT|FATAL)$`
	// DefaultSuppress matches host messages from the session bus client,
	// which complains loudly inside a bare virtual display.
	DefaultSuppress = `dbus`
)

// Filter decides whether a host (non-console) record reaches the caller.
type Filter struct {
	allow    *regexp.Regexp
	suppress *regexp.Regexp
}

// NewFilter compiles the allow pattern, tested against the severity, and the
// suppress pattern, tested case-insensitively against the message. Empty
// sources fall back to the defaults.
func NewFilter(allow, suppress string) (*Filter, error) {
	if allow == "" {
		allow = DefaultAllow
	}
	if suppress == "" {
		suppress = DefaultSuppress
	}
	a, err := regexp.Compile(allow)
	if err != nil {
		return nil, fmt.Errorf("invalid allow pattern %q: %w", allow, err)
	}
	s, err := regexp.Compile("(?i)" + suppress)
	if err != nil {
		return nil, fmt.Errorf("invalid suppress pattern %q: %w", suppress, err)
	}
	return &Filter{allow: a, suppress: s}, nil
}

// Allow reports whether rec should be forwarded.
func (f *Filter) Allow(rec Record) bool {
	return f.allow.MatchString(string(rec.Severity)) && !f.suppress.MatchString(rec.Message)
}
