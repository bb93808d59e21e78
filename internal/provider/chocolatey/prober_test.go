package chocolatey

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/felixgeelhaar/chocostate/internal/ports"
	"github.com/felixgeelhaar/chocostate/internal/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProbeRunner(cli string) *mocks.CommandRunner {
	runner := mocks.NewCommandRunner()
	runner.AddResult("choco", []string{"--version"}, ports.CommandResult{Stdout: cli + "\n"})
	runner.AddResult("choco", PinListArgs(), ports.CommandResult{})
	return runner
}

func TestProber_Probe_SideBySide(t *testing.T) {
	t.Parallel()

	runner := newProbeRunner("1.4.0")
	runner.AddResult("choco", ListArgs("1.4.0", "dotnetfx"), ports.CommandResult{
		Stdout: "dotnetfx|4.8.0\ndotnetfx|4.7.2\n",
	})
	runner.AddResult("choco", PinListArgs(), ports.CommandResult{Stdout: "DotNetFx|4.8.0\n"})

	snap, err := NewProber(runner, "").Probe(context.Background(), []string{"dotnetfx"}, false)
	require.NoError(t, err)

	assert.Equal(t, "1.4.0", snap.CLIVersion())
	pkgs := snap.Lookup("dotnetfx")
	require.Len(t, pkgs, 2)
	assert.Equal(t, "4.7.2", pkgs[0].Version)
	assert.False(t, pkgs[0].Pinned)
	assert.Equal(t, "4.8.0", pkgs[1].Version)
	assert.True(t, pkgs[1].Pinned)
}

func TestProber_Probe_NotInstalled(t *testing.T) {
	t.Parallel()

	runner := newProbeRunner("2.2.2")
	runner.AddResult("choco", ListArgs("2.2.2", "git"), ports.CommandResult{ExitCode: 2})

	snap, err := NewProber(runner, "").Probe(context.Background(), []string{"git"}, false)
	require.NoError(t, err)
	assert.Empty(t, snap.Lookup("git"))
	assert.Equal(t, 0, snap.Len())
}

func TestProber_Probe_FiltersBannersAndNonExactNames(t *testing.T) {
	t.Parallel()

	runner := newProbeRunner("2.2.2")
	runner.AddResult("choco", ListArgs("2.2.2", "git"), ports.CommandResult{
		Stdout: "Chocolatey v2.2.2\ngit|2.43.0\ngit.install|2.43.0\nWARNING: something\n",
	})

	snap, err := NewProber(runner, "").Probe(context.Background(), []string{"git"}, false)
	require.NoError(t, err)
	require.Len(t, snap.Lookup("git"), 1)
	assert.Empty(t, snap.Lookup("git.install"))
}

func TestProber_Probe_AllWithOutdated(t *testing.T) {
	t.Parallel()

	runner := newProbeRunner("2.2.2")
	runner.AddResult("choco", ListArgs("2.2.2", ""), ports.CommandResult{
		Stdout: "git|2.40.0\n7zip|23.1.0\n",
	})
	runner.AddResult("choco", OutdatedArgs(true), ports.CommandResult{
		ExitCode: 2,
		Stdout:   "git|2.40.0|2.43.0|false\n",
	})

	snap, err := NewProber(runner, "").Probe(context.Background(), []string{"all"}, true, WithPrerelease(true))
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Len())
	assert.Equal(t, "2.43.0", snap.Available("git"))
	assert.Equal(t, "", snap.Available("7zip"))
}

func TestProber_Probe_DeduplicatesNames(t *testing.T) {
	t.Parallel()

	runner := newProbeRunner("2.2.2")
	runner.AddResult("choco", ListArgs("2.2.2", "git"), ports.CommandResult{Stdout: "git|2.40.0\n"})

	_, err := NewProber(runner, "").Probe(context.Background(), []string{"git", "GIT"}, false)
	require.NoError(t, err)
	assert.Len(t, runner.CallsTo("list"), 1)
}

func TestProber_RuntimeMissing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(*mocks.CommandRunner)
	}{
		{
			name: "executable not found",
			setup: func(r *mocks.CommandRunner) {
				r.AddError("choco", []string{"--version"}, &exec.Error{Name: "choco", Err: exec.ErrNotFound})
			},
		},
		{
			name: "remote shell does not recognize",
			setup: func(r *mocks.CommandRunner) {
				r.AddResult("choco", []string{"--version"}, ports.CommandResult{
					ExitCode: 1,
					Stderr:   "'choco' is not recognized as an internal or external command",
				})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := mocks.NewCommandRunner()
			tt.setup(runner)

			_, err := NewProber(runner, "").Probe(context.Background(), []string{"git"}, false)
			assert.ErrorIs(t, err, ErrRuntimeMissing)
		})
	}
}

func TestProber_ProbeFailure(t *testing.T) {
	t.Parallel()

	runner := newProbeRunner("2.2.2")
	runner.AddResult("choco", ListArgs("2.2.2", "git"), ports.CommandResult{ExitCode: 1, Stderr: "access denied"})

	_, err := NewProber(runner, "").Probe(context.Background(), []string{"git"}, false)
	require.Error(t, err)

	var probeErr *ProbeError
	require.True(t, errors.As(err, &probeErr))
	assert.Equal(t, 1, probeErr.Result.ExitCode)
	assert.Contains(t, err.Error(), "access denied")
	assert.NotErrorIs(t, err, ErrRuntimeMissing)
}

func TestProber_UnsupportedCLI(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddResult("choco", []string{"--version"}, ports.CommandResult{Stdout: "0.9.9"})

	_, err := NewProber(runner, "").CLIVersion(context.Background())
	assert.ErrorIs(t, err, ErrUnsupportedCLI)
}

func TestProber_CLIVersionCached(t *testing.T) {
	t.Parallel()

	runner := newProbeRunner("2.2.2")
	prober := NewProber(runner, "")

	_, err := prober.CLIVersion(context.Background())
	require.NoError(t, err)
	_, err = prober.CLIVersion(context.Background())
	require.NoError(t, err)
	assert.Len(t, runner.CallsTo("--version"), 1)

	prober.Invalidate()
	_, err = prober.CLIVersion(context.Background())
	require.NoError(t, err)
	assert.Len(t, runner.CallsTo("--version"), 2)
}

func TestProber_CustomCommand(t *testing.T) {
	t.Parallel()

	runner := mocks.NewCommandRunner()
	runner.AddResult("choco.exe", []string{"--version"}, ports.CommandResult{Stdout: "2.2.2"})

	v, err := NewProber(runner, "choco.exe").CLIVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.2.2", v)
}
