package execution

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors carried by failed results.
var (
	ErrExecutionFailed = errors.New("execution failed")
	ErrTimeoutExceeded = errors.New("timeout exceeded")
	ErrSkipped         = errors.New("skipped after an earlier failure")
)

// ExecutionError describes a command that ran and exited with a failure
// code.
type ExecutionError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ExecutionError) Unwrap() error {
	return ErrExecutionFailed
}
