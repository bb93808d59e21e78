package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinWindowsCommandLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		command string
		args    []string
		want    string
	}{
		{
			name:    "plain args",
			command: "choco",
			args:    []string{"install", "git", "-y"},
			want:    "choco install git -y",
		},
		{
			name:    "arg with space",
			command: "choco",
			args:    []string{"install", "git", "--install-arguments=/DIR=C:\\Program Files\\Git"},
			want:    `choco install git "--install-arguments=/DIR=C:\Program Files\Git"`,
		},
		{
			name:    "embedded quote",
			command: "choco",
			args:    []string{`--params="/NoShortcut"`},
			want:    `choco "--params=\"/NoShortcut\""`,
		},
		{
			name:    "trailing backslash inside quotes",
			command: "choco",
			args:    []string{`C:\some dir\`},
			want:    `choco "C:\some dir\\"`,
		},
		{
			name:    "empty arg",
			command: "choco",
			args:    []string{""},
			want:    `choco ""`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, JoinWindowsCommandLine(tt.command, tt.args...))
		})
	}
}

func TestBuildClientConfig(t *testing.T) {
	t.Parallel()

	t.Run("requires host", func(t *testing.T) {
		t.Parallel()
		_, err := buildClientConfig(SSHConfig{Password: "x"})
		require.Error(t, err)
	})

	t.Run("requires auth", func(t *testing.T) {
		t.Parallel()
		_, err := buildClientConfig(SSHConfig{Host: "win01"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "authentication")
	})

	t.Run("password auth with defaults", func(t *testing.T) {
		t.Parallel()
		cfg, err := buildClientConfig(SSHConfig{Host: "win01", User: "Administrator", Password: "secret"})
		require.NoError(t, err)
		assert.Equal(t, "Administrator", cfg.User)
		assert.Len(t, cfg.Auth, 1)
		assert.NotZero(t, cfg.Timeout)
	})

	t.Run("invalid pinned host key", func(t *testing.T) {
		t.Parallel()
		_, err := buildClientConfig(SSHConfig{Host: "win01", Password: "secret", KnownHostsKey: "not-a-key"})
		require.Error(t, err)
	})
}
