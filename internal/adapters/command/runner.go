// Package command provides command execution adapters.
package command

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/felixgeelhaar/chocostate/internal/ports"
)

// defaultWaitDelay bounds how long Run waits for output pipes to close after
// the process was killed. Installers frequently leave child processes holding
// the inherited stdout handle.
const defaultWaitDelay = 5 * time.Second

// RealRunner executes commands on the local host.
type RealRunner struct {
	waitDelay time.Duration
}

// NewRealRunner creates a new RealRunner.
func NewRealRunner() *RealRunner {
	return &RealRunner{waitDelay: defaultWaitDelay}
}

// Run executes a command and returns the result. When ctx expires the process
// is killed and the returned error wraps ports.ErrCommandTimeout.
func (r *RealRunner) Run(ctx context.Context, command string, args ...string) (ports.CommandResult, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.WaitDelay = r.waitDelay

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	result := ports.CommandResult{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return result, fmt.Errorf("%w after %s: %s", ports.ErrCommandTimeout, result.Duration.Round(time.Millisecond), command)
		}
		return result, ctxErr
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, err
	}

	return result, nil
}

// Ensure RealRunner implements ports.CommandRunner.
var _ ports.CommandRunner = (*RealRunner)(nil)
