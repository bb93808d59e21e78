package chocolatey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/chocostate/internal/domain/desired"
	"github.com/felixgeelhaar/chocostate/internal/domain/execution"
	"github.com/felixgeelhaar/chocostate/internal/domain/reconcile"
	"github.com/felixgeelhaar/chocostate/internal/ports"
	"github.com/felixgeelhaar/chocostate/internal/provider/commandutil"
)

// CLIVersioner reports the installed choco version.
type CLIVersioner interface {
	CLIVersion(ctx context.Context) (string, error)
}

// Executor turns planned actions into choco invocations. It is the only
// component that spawns package manager processes.
type Executor struct {
	runner   ports.CommandRunner
	versions CLIVersioner
	command  string
	table    execution.ExitCodeTable
	timeout  time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithCommand overrides the choco executable.
func WithCommand(command string) ExecutorOption {
	return func(e *Executor) {
		if command != "" {
			e.command = command
		}
	}
}

// WithExitCodes replaces the exit-code classification table.
func WithExitCodes(table execution.ExitCodeTable) ExecutorOption {
	return func(e *Executor) {
		e.table = table
	}
}

// WithDefaultTimeout sets the timeout for specs that carry none.
func WithDefaultTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewExecutor creates an executor. versions may be nil, in which case CLI
// version gates are not checked.
func NewExecutor(runner ports.CommandRunner, versions CLIVersioner, opts ...ExecutorOption) *Executor {
	e := &Executor{
		runner:   runner,
		versions: versions,
		command:  DefaultCommand,
		table:    execution.DefaultExitCodeTable(),
		timeout:  desired.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs a single action and classifies the outcome. It never returns
// an error; failures are carried by the Result.
func (e *Executor) Execute(ctx context.Context, action reconcile.Action) execution.Result {
	logger := ports.LoggerFromContext(ctx)

	if action.Kind == reconcile.KindNoOp {
		return execution.NewResult(action, execution.ClassSuccessNoop, nil)
	}

	if action.Kind == reconcile.KindUninstall && action.Reinstall && len(action.Installed) == 0 {
		return execution.NewResult(action, execution.ClassSuccessNoop, nil)
	}

	if err := e.checkGates(ctx, action); err != nil {
		return execution.NewResult(action, execution.ClassPreconditionFailed, err)
	}

	args := BuildArgs(action)
	cmdline := CommandLine(e.command, args)

	timeout := action.Spec.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if logger != nil {
		logger.Debug(ctx, "running choco", ports.F("package", action.Package()), ports.F("command", cmdline))
	}

	start := time.Now()
	res, err := e.runner.Run(runCtx, e.command, args...)
	elapsed := res.Duration
	if elapsed == 0 {
		elapsed = time.Since(start)
	}

	result := e.classify(runCtx, action, cmdline, res, err).
		WithProcess(cmdline, res.ExitCode, res.Stdout, res.Stderr).
		WithDuration(elapsed)

	if logger != nil {
		fields := []ports.Field{
			ports.F("package", action.Package()),
			ports.F("action", string(action.Kind)),
			ports.F("exit_code", res.ExitCode),
			ports.F("class", string(result.Class())),
			ports.F("duration", elapsed.Round(time.Millisecond).String()),
		}
		if result.Failed() {
			logger.Error(ctx, "choco command failed", append(fields, ports.Err(result.Error()))...)
		} else {
			logger.Info(ctx, "choco command finished", fields...)
		}
	}

	return result
}

func (e *Executor) classify(runCtx context.Context, action reconcile.Action, cmdline string, res ports.CommandResult, err error) execution.Result {
	if err != nil {
		if errors.Is(err, ports.ErrCommandTimeout) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return execution.NewResult(action, execution.ClassTimeoutExceeded,
				fmt.Errorf("%w: %s: %w", execution.ErrTimeoutExceeded, cmdline, err))
		}
		if commandutil.IsCommandNotFound(err) {
			return execution.NewResult(action, execution.ClassFailure, fmt.Errorf("%w: %w", ErrRuntimeMissing, err))
		}
		return execution.NewResult(action, execution.ClassFailure, fmt.Errorf("%w: %s: %w", execution.ErrExecutionFailed, cmdline, err))
	}

	class := e.table.Classify(res.ExitCode)
	if class.IsFailure() {
		return execution.NewResult(action, class, &execution.ExecutionError{
			Command:  cmdline,
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
		})
	}
	return execution.NewResult(action, class, nil)
}

// checkGates rejects actions the installed CLI cannot carry out.
func (e *Executor) checkGates(ctx context.Context, action reconcile.Action) error {
	if e.versions == nil || !action.Spec.AllowMultiple {
		return nil
	}
	if action.Kind != reconcile.KindInstall && action.Kind != reconcile.KindUpgrade {
		return nil
	}

	cli, err := e.versions.CLIVersion(ctx)
	if err != nil {
		return fmt.Errorf("cannot check chocolatey version: %w", err)
	}
	if SupportsAllowMultiple(cli) {
		return nil
	}
	return &reconcile.PreconditionError{
		Package: action.Package(),
		Reason:  fmt.Sprintf("allow_multiple is not supported by chocolatey %s (removed in %s)", cli, v2CLIVersion),
	}
}
