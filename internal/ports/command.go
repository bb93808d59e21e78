// Package ports defines interfaces for external dependencies.
package ports

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrCommandTimeout is returned by a CommandRunner when the context deadline
// expired and the process was terminated before it exited on its own.
var ErrCommandTimeout = errors.New("command timed out")

// CommandResult represents the result of executing a command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Success returns true if the command exited with code 0.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// CommandCall records a command invocation.
type CommandCall struct {
	Command string
	Args    []string
}

// String renders the call as a single command line.
func (c CommandCall) String() string {
	if len(c.Args) == 0 {
		return c.Command
	}
	return c.Command + " " + strings.Join(c.Args, " ")
}

// CommandRunner executes external commands. It is the only boundary through
// which the reconciler spawns processes.
//
// Implementations must terminate the process when ctx is done and return an
// error wrapping ErrCommandTimeout when the deadline was exceeded. A non-zero
// exit status is reported through CommandResult.ExitCode, not as an error.
type CommandRunner interface {
	Run(ctx context.Context, command string, args ...string) (CommandResult, error)
}
