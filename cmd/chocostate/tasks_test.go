package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/chocostate/internal/domain/settings"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseTaskFlags(t *testing.T, args ...string) *taskFlags {
	t.Helper()
	var f taskFlags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.register(fs)
	require.NoError(t, fs.Parse(args))
	return &f
}

func TestTaskFlags_FromFlags(t *testing.T) {
	t.Parallel()

	f := parseTaskFlags(t,
		"--name", "git", "-n", "7zip",
		"--version", "2.43.0",
		"--state", "present",
		"--pinned=true",
		"--choco-arg=--cache-location=C:\\cache",
		"--skip-cert-validation",
		"--source", "internal",
	)

	reqs, err := f.requests(settings.Default())
	require.NoError(t, err)
	require.Len(t, reqs, 1)

	req := reqs[0]
	assert.Equal(t, []string{"git", "7zip"}, req.Names)
	assert.Equal(t, "2.43.0", req.Version)
	require.NotNil(t, req.Pinned)
	assert.True(t, *req.Pinned)
	assert.Equal(t, []string{"--cache-location=C:\\cache"}, req.ChocoArgs)
	require.NotNil(t, req.ValidateCerts)
	assert.False(t, *req.ValidateCerts)
	assert.Equal(t, "internal", req.Source)
	assert.Equal(t, 2700, req.Timeout)
}

func TestTaskFlags_TimeoutFromSettings(t *testing.T) {
	t.Parallel()

	s := settings.Default()
	s.DefaultTimeout = 600

	reqs, err := parseTaskFlags(t, "--name", "git").requests(s)
	require.NoError(t, err)
	assert.Equal(t, 600, reqs[0].Timeout)

	reqs, err = parseTaskFlags(t, "--name", "git", "--timeout", "30").requests(s)
	require.NoError(t, err)
	assert.Equal(t, 30, reqs[0].Timeout)
}

func TestTaskFlags_FromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tasks:\n  - git\n  - name: nodejs\n    version: \"20.11.0\"\n    timeout: 90\n"), 0o644))

	reqs, err := parseTaskFlags(t, "-f", path).requests(settings.Default())
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, 2700, reqs[0].Timeout)
	assert.Equal(t, 90, reqs[1].Timeout)
}

func TestTaskFlags_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"nothing given", nil},
		{"both sources", []string{"-f", "tasks.yaml", "--name", "git"}},
		{"bad pinned", []string{"--name", "git", "--pinned", "maybe"}},
		{"missing file", []string{"-f", "does-not-exist.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := parseTaskFlags(t, tt.args...).requests(settings.Default())
			require.Error(t, err)
			assert.Equal(t, 2, exitCode(err))
		})
	}
}
