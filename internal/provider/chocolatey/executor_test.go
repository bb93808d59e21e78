package chocolatey

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/felixgeelhaar/chocostate/internal/domain/desired"
	"github.com/felixgeelhaar/chocostate/internal/domain/execution"
	"github.com/felixgeelhaar/chocostate/internal/domain/installed"
	"github.com/felixgeelhaar/chocostate/internal/domain/reconcile"
	"github.com/felixgeelhaar/chocostate/internal/ports"
	"github.com/felixgeelhaar/chocostate/internal/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedVersion string

func (v fixedVersion) CLIVersion(context.Context) (string, error) {
	return string(v), nil
}

func installAction(name string) reconcile.Action {
	return reconcile.Action{
		Kind: reconcile.KindInstall,
		Spec: desired.PackageSpec{Name: name, State: desired.StatePresent, Timeout: desired.DefaultTimeout},
	}
}

func TestExecutor_Classification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		exitCode  int
		wantClass execution.Classification
		changed   bool
		failed    bool
	}{
		{"success", 0, execution.ClassSuccess, true, false},
		{"nothing to do", 2, execution.ClassSuccessNoop, false, false},
		{"reboot 3010", 3010, execution.ClassRebootRequired, true, false},
		{"reboot 1641", 1641, execution.ClassRebootRequired, true, false},
		{"reboot 350", 350, execution.ClassRebootRequired, true, false},
		{"failure", 1, execution.ClassFailure, false, true},
		{"msi failure", 1603, execution.ClassFailure, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			action := installAction("git")
			runner := mocks.NewCommandRunner()
			runner.AddResult("choco", BuildArgs(action), ports.CommandResult{
				ExitCode: tt.exitCode,
				Stdout:   "out",
				Stderr:   "err",
			})

			result := NewExecutor(runner, nil).Execute(context.Background(), action)

			assert.Equal(t, tt.wantClass, result.Class())
			assert.Equal(t, tt.changed, result.Changed())
			assert.Equal(t, tt.failed, result.Failed())
			assert.Equal(t, tt.exitCode, result.ExitCode())
			assert.Equal(t, "out", result.Stdout())
			assert.Contains(t, result.Command(), "choco install git")
			if tt.failed {
				assert.ErrorIs(t, result.Error(), execution.ErrExecutionFailed)
			} else {
				assert.NoError(t, result.Error())
			}
		})
	}
}

func TestExecutor_NoOpNeverSpawns(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	action := reconcile.Action{Kind: reconcile.KindNoOp, Spec: desired.PackageSpec{Name: "git"}}

	result := NewExecutor(runner, nil).Execute(context.Background(), action)

	assert.Empty(t, runner.Calls())
	assert.Equal(t, execution.OutcomeUnchanged, result.Outcome())
	assert.False(t, result.Failed())
}

func TestExecutor_ReinstallUninstallLegWhenNotInstalled(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	action := reconcile.Action{
		Kind:      reconcile.KindUninstall,
		Reinstall: true,
		Spec:      desired.PackageSpec{Name: "git", State: desired.StateReinstalled},
	}

	result := NewExecutor(runner, nil).Execute(context.Background(), action)

	assert.Empty(t, runner.Calls())
	assert.Equal(t, execution.OutcomeUnchanged, result.Outcome())
}

func TestExecutor_ReinstallUninstallLegWhenInstalled(t *testing.T) {
	t.Parallel()

	action := reconcile.Action{
		Kind:      reconcile.KindUninstall,
		Reinstall: true,
		Spec:      desired.PackageSpec{Name: "git", State: desired.StateReinstalled},
		Installed: []installed.Package{{Name: "git", Version: "2.40.0"}},
	}
	runner := mocks.NewCommandRunner()
	runner.AddResult("choco", BuildArgs(action), ports.CommandResult{})

	result := NewExecutor(runner, nil).Execute(context.Background(), action)

	require.Len(t, runner.Calls(), 1)
	assert.True(t, result.Changed())
}

func TestExecutor_Timeout(t *testing.T) {
	t.Parallel()

	action := installAction("slow")
	action.Spec.Timeout = 20 * time.Millisecond

	runner := mocks.NewCommandRunner()
	runner.AddBlocking("choco", BuildArgs(action))

	start := time.Now()
	result := NewExecutor(runner, nil).Execute(context.Background(), action)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, execution.ClassTimeoutExceeded, result.Class())
	assert.True(t, result.Failed())
	assert.ErrorIs(t, result.Error(), execution.ErrTimeoutExceeded)
	assert.Equal(t, -1, result.ExitCode())
}

func TestExecutor_DefaultTimeoutOption(t *testing.T) {
	t.Parallel()

	action := installAction("slow")
	action.Spec.Timeout = 0

	runner := mocks.NewCommandRunner()
	runner.AddBlocking("choco", BuildArgs(action))

	result := NewExecutor(runner, nil, WithDefaultTimeout(20*time.Millisecond)).Execute(context.Background(), action)
	assert.Equal(t, execution.ClassTimeoutExceeded, result.Class())
}

func TestExecutor_RunnerErrors(t *testing.T) {
	t.Parallel()

	t.Run("command not found", func(t *testing.T) {
		t.Parallel()

		action := installAction("git")
		runner := mocks.NewCommandRunner()
		runner.AddError("choco", BuildArgs(action), &exec.Error{Name: "choco", Err: exec.ErrNotFound})

		result := NewExecutor(runner, nil).Execute(context.Background(), action)
		assert.Equal(t, execution.ClassFailure, result.Class())
		assert.ErrorIs(t, result.Error(), ErrRuntimeMissing)
	})

	t.Run("transport error", func(t *testing.T) {
		t.Parallel()

		action := installAction("git")
		runner := mocks.NewCommandRunner()
		runner.AddError("choco", BuildArgs(action), errors.New("session closed"))

		result := NewExecutor(runner, nil).Execute(context.Background(), action)
		assert.Equal(t, execution.ClassFailure, result.Class())
		assert.ErrorIs(t, result.Error(), execution.ErrExecutionFailed)
		assert.Contains(t, result.Error().Error(), "session closed")
	})
}

func TestExecutor_AllowMultipleGate(t *testing.T) {
	t.Parallel()

	action := installAction("dotnetfx")
	action.Spec.AllowMultiple = true
	action.Version = "4.7.2"

	t.Run("rejected on v2", func(t *testing.T) {
		t.Parallel()

		runner := mocks.NewCommandRunner()
		result := NewExecutor(runner, fixedVersion("2.2.2")).Execute(context.Background(), action)

		assert.Empty(t, runner.Calls())
		assert.Equal(t, execution.ClassPreconditionFailed, result.Class())
		assert.ErrorIs(t, result.Error(), reconcile.ErrPreconditionFailed)
	})

	t.Run("accepted on v1", func(t *testing.T) {
		t.Parallel()

		runner := mocks.NewCommandRunner()
		runner.AddResult("choco", BuildArgs(action), ports.CommandResult{})
		result := NewExecutor(runner, fixedVersion("1.4.0")).Execute(context.Background(), action)

		assert.Equal(t, execution.ClassSuccess, result.Class())
		require.Len(t, runner.Calls(), 1)
		assert.Contains(t, runner.Calls()[0].Args, "--allow-multiple-versions")
	})
}

func TestExecutor_CustomExitCodes(t *testing.T) {
	t.Parallel()

	table, err := execution.ParseExitCodeTable(map[string]string{
		"0":    "success",
		"1605": "success_noop",
	})
	require.NoError(t, err)

	action := reconcile.Action{Kind: reconcile.KindUninstall, Spec: desired.PackageSpec{Name: "git"}}
	runner := mocks.NewCommandRunner()
	runner.AddResult("choco.exe", BuildArgs(action), ports.CommandResult{ExitCode: 1605})

	result := NewExecutor(runner, nil, WithCommand("choco.exe"), WithExitCodes(table)).
		Execute(context.Background(), action)

	assert.Equal(t, execution.ClassSuccessNoop, result.Class())
	assert.False(t, result.Changed())
}

func TestExecutor_RedactsCredentials(t *testing.T) {
	t.Parallel()

	action := installAction("git")
	action.Spec.Source = desired.Source{
		Location:    "https://feed.example.com/nuget",
		Credentials: desired.Credentials{Username: "ci", Password: "hunter2"},
	}
	runner := mocks.NewCommandRunner()
	runner.AddResult("choco", BuildArgs(action), ports.CommandResult{ExitCode: 1})

	result := NewExecutor(runner, nil).Execute(context.Background(), action)

	assert.NotContains(t, result.Command(), "hunter2")
	assert.NotContains(t, result.Error().Error(), "hunter2")
	assert.Contains(t, runner.Calls()[0].Args, "--password=hunter2")
}
