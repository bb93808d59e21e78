package execution

import (
	"time"

	"github.com/felixgeelhaar/chocostate/internal/domain/reconcile"
)

// Result captures the outcome of executing a single action. It is read-only
// after creation; the With* methods return modified copies.
type Result struct {
	action   reconcile.Action
	class    Classification
	err      error
	command  string
	exitCode int
	stdout   string
	stderr   string
	duration time.Duration
}

// NewResult creates a Result for an action.
func NewResult(action reconcile.Action, class Classification, err error) Result {
	return Result{
		action: action,
		class:  class,
		err:    err,
	}
}

// Action returns the action that produced the result.
func (r Result) Action() reconcile.Action {
	return r.action
}

// Package returns the package the action targeted.
func (r Result) Package() string {
	return r.action.Spec.Name
}

// Class returns the classification.
func (r Result) Class() Classification {
	return r.class
}

// Error returns any error that occurred during execution.
func (r Result) Error() error {
	return r.err
}

// Command returns the redacted command line that was executed, or "" when
// no process was spawned.
func (r Result) Command() string {
	return r.command
}

// ExitCode returns the process exit code.
func (r Result) ExitCode() int {
	return r.exitCode
}

// Stdout returns captured standard output.
func (r Result) Stdout() string {
	return r.stdout
}

// Stderr returns captured standard error.
func (r Result) Stderr() string {
	return r.stderr
}

// Duration returns how long the action took.
func (r Result) Duration() time.Duration {
	return r.duration
}

// Outcome derives changed/unchanged/failed/skipped from the action kind and
// classification.
func (r Result) Outcome() Outcome {
	switch {
	case r.class.IsFailure():
		return OutcomeFailed
	case r.class == ClassSkipped:
		return OutcomeSkipped
	case r.action.Kind.Mutates() && (r.class == ClassSuccess || r.class == ClassRebootRequired):
		return OutcomeChanged
	default:
		return OutcomeUnchanged
	}
}

// Changed reports whether the result changed the host.
func (r Result) Changed() bool {
	return r.Outcome() == OutcomeChanged
}

// Failed reports whether the result fails the run.
func (r Result) Failed() bool {
	return r.class.IsFailure()
}

// WithProcess returns a new Result carrying process details.
func (r Result) WithProcess(command string, exitCode int, stdout, stderr string) Result {
	r.command = command
	r.exitCode = exitCode
	r.stdout = stdout
	r.stderr = stderr
	return r
}

// WithDuration returns a new Result with duration set.
func (r Result) WithDuration(d time.Duration) Result {
	r.duration = d
	return r
}
