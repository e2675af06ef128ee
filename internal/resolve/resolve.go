// Package resolve finds executables on the host.
package resolve

import (
	"errors"
	"fmt"
	"os/exec"
)

// ErrNotFound is returned when none of the candidates resolve.
var ErrNotFound = errors.New("executable not found")

// BrowserCandidates lists the Chromium builds tried when no override is set.
var BrowserCandidates = []string{
	"headless_shell",
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"google-chrome-beta",
	"google-chrome-unstable",
	"/usr/bin/google-chrome",
	"/usr/lib/chromium/chromium",
	"/snap/bin/chromium",
}

// XvfbCandidates lists the virtual framebuffer servers tried when no override
// is set.
var XvfbCandidates = []string{
	"Xvfb",
	"/usr/bin/Xvfb",
}

// Executable returns the resolved path of override when it is non-empty, and
// otherwise of the first candidate that resolves. Bare names are searched in
// PATH.
func Executable(override string, candidates []string) (string, error) {
	if override != "" {
		path, err := exec.LookPath(override)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrNotFound, override, err)
		}
		return path, nil
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: tried %v", ErrNotFound, candidates)
}
