package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkErr(t *testing.T, err, wantErr error) {
	t.Helper()
	if wantErr != nil {
		require.Error(t, err)
		assert.ErrorIs(t, err, wantErr)
		return
	}
	assert.NoError(t, err)
}

func TestValidateChocoPackage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "simple name", input: "git", wantErr: nil},
		{name: "dotted", input: "7zip.install", wantErr: nil},
		{name: "mixed case", input: "GoogleChrome", wantErr: nil},
		{name: "hyphen", input: "dotnet-sdk", wantErr: nil},

		{name: "empty", input: "", wantErr: ErrEmptyInput},
		{name: "semicolon", input: "git;rm", wantErr: ErrInvalidChocoPackage},
		{name: "space", input: "git lfs", wantErr: ErrInvalidChocoPackage},
		{name: "leading hyphen", input: "-y", wantErr: ErrInvalidChocoPackage},
		{name: "too long", input: strings.Repeat("a", 300), wantErr: ErrInvalidChocoPackage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, ValidateChocoPackage(tt.input), tt.wantErr)
		})
	}
}

func TestValidateChocoSource(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "named source", input: "internal", wantErr: nil},
		{name: "feed url", input: "https://nexus.corp:8443/repository/choco/", wantErr: nil},
		{name: "unc path", input: `\\fileserver\packages`, wantErr: nil},
		{name: "drive path", input: `C:\packages`, wantErr: nil},

		{name: "empty", input: "", wantErr: ErrEmptyInput},
		{name: "name with space", input: "my feed", wantErr: ErrInvalidChocoSource},
		{name: "path with pipe", input: `C:\pkgs|calc`, wantErr: ErrCommandInjection},
		{name: "url with backtick", input: "https://feed`whoami`", wantErr: ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, ValidateChocoSource(tt.input), tt.wantErr)
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "community", input: "https://community.chocolatey.org/install.ps1", wantErr: nil},
		{name: "proxy with port", input: "http://proxy.corp:3128", wantErr: nil},
		{name: "empty", input: "", wantErr: ErrEmptyInput},
		{name: "ftp", input: "ftp://example.com/x", wantErr: ErrInvalidURL},
		{name: "injection", input: "https://x.com/;rm", wantErr: ErrInvalidURL},
		{name: "too long", input: "https://" + strings.Repeat("a", 2050), wantErr: ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, ValidateURL(tt.input), tt.wantErr)
		})
	}
}

func TestValidateVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "two part", input: "6.1", wantErr: nil},
		{name: "four part", input: "2.40.0.1", wantErr: nil},
		{name: "prerelease", input: "1.0.0-beta.2", wantErr: nil},
		{name: "build metadata", input: "1.0.0+abc", wantErr: nil},

		{name: "empty", input: "", wantErr: ErrEmptyInput},
		{name: "range", input: "[1.0,2.0)", wantErr: ErrInvalidVersion},
		{name: "comma", input: "1.0,2.0", wantErr: ErrInvalidVersion},
		{name: "whitespace", input: "1.0 ", wantErr: ErrInvalidVersion},
		{name: "word", input: "latest", wantErr: ErrInvalidVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, ValidateVersion(tt.input), tt.wantErr)
		})
	}
}

func TestValidateHostname(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "simple", input: "win01", wantErr: nil},
		{name: "fqdn", input: "win01.corp.example.com", wantErr: nil},
		{name: "ip", input: "192.168.1.10", wantErr: nil},
		{name: "empty", input: "", wantErr: ErrEmptyInput},
		{name: "semicolon", input: "win01;rm", wantErr: ErrInvalidHostname},
		{name: "too long", input: strings.Repeat("a", 300), wantErr: ErrInvalidHostname},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, ValidateHostname(tt.input), tt.wantErr)
		})
	}
}

func TestValidateArgValue(t *testing.T) {
	assert.NoError(t, ValidateArgValue(`/DIR="C:\Program Files\Git" /NoShortcut`))
	assert.NoError(t, ValidateArgValue(""))
	assert.ErrorIs(t, ValidateArgValue("a\nb"), ErrNewlineInjection)
	assert.ErrorIs(t, ValidateArgValue("a\x00b"), ErrCommandInjection)
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "absolute", input: "/var/lib/node_exporter/chocostate.prom", wantErr: nil},
		{name: "relative", input: "reports/run.yaml", wantErr: nil},
		{name: "empty", input: "", wantErr: ErrEmptyInput},
		{name: "traversal", input: "../../etc/passwd", wantErr: ErrPathTraversal},
		{name: "encoded traversal", input: "%2e%2e/etc/passwd", wantErr: ErrPathTraversal},
		{name: "null byte", input: "/tmp/x\x00.txt", wantErr: ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, ValidatePath(tt.input), tt.wantErr)
		})
	}
}

func TestContainsShellMeta(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"safe-string", false},
		{"with;semicolon", true},
		{"with|pipe", true},
		{"with$dollar", true},
		{"with`backtick`", true},
		{"with\nnewline", true},
		{"with\\backslash", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, containsShellMeta(tt.input))
		})
	}
}
