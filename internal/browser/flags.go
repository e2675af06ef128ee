// Package browser prepares the command line for a Chromium process and
// supervises it once started.
package browser

import (
	"strconv"
	"strings"
)

// MinVerbosity is the lowest --v level that still logs page console output.
const MinVerbosity = 1

// flagName returns the name of a command-line switch without its dashes and
// value, or "" for positional arguments.
func flagName(arg string) string {
	if !strings.HasPrefix(arg, "-") {
		return ""
	}
	name := strings.TrimLeft(arg, "-")
	name, _, _ = strings.Cut(name, "=")
	return name
}

func flagValue(arg string) (string, bool) {
	_, value, ok := strings.Cut(arg, "=")
	return value, ok
}

// Command is the browser argument list after implicit flags were merged in.
type Command struct {
	Args []string
	// UserDataDir is the directory passed with --user-data-dir when the caller
	// did not supply one. It is empty otherwise.
	UserDataDir string
}

// BuildCommand merges the flags every run needs into the caller's arguments.
// A flag the caller already set is left alone, except --v, which is raised
// to MinVerbosity when lower. userDataDir is only used when the caller did
// not pass --user-data-dir.
func BuildCommand(args []string, userDataDir string) Command {
	seen := make(map[string]bool)
	caller := make([]string, 0, len(args))
	for _, arg := range args {
		name := flagName(arg)
		if name == "v" {
			if v, ok := flagValue(arg); !ok || !verboseEnough(v) {
				continue
			}
		}
		if name != "" {
			seen[name] = true
		}
		caller = append(caller, arg)
	}

	var cmd Command
	implicit := func(name, arg string) {
		if !seen[name] {
			cmd.Args = append(cmd.Args, arg)
		}
	}
	implicit("no-first-run", "--no-first-run")
	if !seen["user-data-dir"] && userDataDir != "" {
		cmd.UserDataDir = userDataDir
		cmd.Args = append(cmd.Args, "--user-data-dir="+userDataDir)
	}
	implicit("allow-file-access-from-files", "--allow-file-access-from-files")
	implicit("enable-logging", "--enable-logging=stderr")
	implicit("v", "--v="+strconv.Itoa(MinVerbosity))

	cmd.Args = append(cmd.Args, caller...)
	return cmd
}

func verboseEnough(v string) bool {
	n, err := strconv.Atoi(v)
	return err == nil && n >= MinVerbosity
}
