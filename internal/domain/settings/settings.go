// Package settings loads runtime settings for the reconciler. The file
// format is chosen by extension: .toml, .yaml/.yml or .ini.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/chocostate/internal/domain/desired"
	"github.com/felixgeelhaar/chocostate/internal/domain/execution"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for unknown settings file extensions.
var ErrUnsupportedFormat = errors.New("unsupported settings format")

// SSH configures a remote Windows host to reconcile over SSH.
type SSH struct {
	Host           string `toml:"host" yaml:"host" ini:"host"`
	Port           int    `toml:"port" yaml:"port" ini:"port"`
	User           string `toml:"user" yaml:"user" ini:"user"`
	IdentityFile   string `toml:"identity_file" yaml:"identity_file" ini:"identity_file"`
	KnownHostsKey  string `toml:"host_key" yaml:"host_key" ini:"host_key"`
	ConnectTimeout int    `toml:"connect_timeout" yaml:"connect_timeout" ini:"connect_timeout"`
}

// Enabled reports whether a remote host is configured.
func (s SSH) Enabled() bool {
	return s.Host != ""
}

// Settings are the reconciler's runtime knobs.
type Settings struct {
	Concurrency       int               `toml:"concurrency" yaml:"concurrency" ini:"concurrency"`
	FailFast          bool              `toml:"fail_fast" yaml:"fail_fast" ini:"fail_fast"`
	ChocoCommand      string            `toml:"choco_command" yaml:"choco_command" ini:"choco_command"`
	PowerShellCommand string            `toml:"powershell_command" yaml:"powershell_command" ini:"powershell_command"`
	DefaultTimeout    int               `toml:"default_timeout" yaml:"default_timeout" ini:"default_timeout"`
	LogLevel          string            `toml:"log_level" yaml:"log_level" ini:"log_level"`
	LogFormat         string            `toml:"log_format" yaml:"log_format" ini:"log_format"`
	ExitCodes         map[string]string `toml:"exit_codes" yaml:"exit_codes" ini:"-"`
	SSH               SSH               `toml:"ssh" yaml:"ssh" ini:"-"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Concurrency:       1,
		ChocoCommand:      "choco",
		PowerShellCommand: "powershell",
		DefaultTimeout:    int(desired.DefaultTimeout / time.Second),
		LogLevel:          "info",
		LogFormat:         "console",
	}
}

// Load reads settings from path, layered over Default.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}
	return Parse(filepath.Ext(path), data)
}

// Parse decodes settings of the given extension (".toml", ".yaml", ".yml"
// or ".ini") over Default and validates the result.
func Parse(ext string, data []byte) (Settings, error) {
	s := Default()

	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("failed to parse TOML settings: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("failed to parse YAML settings: %w", err)
		}
	case ".ini":
		if err := parseINI(data, &s); err != nil {
			return Settings{}, fmt.Errorf("failed to parse INI settings: %w", err)
		}
	default:
		return Settings{}, fmt.Errorf("%w: %q (want .toml, .yaml or .ini)", ErrUnsupportedFormat, ext)
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// parseINI maps the default section onto Settings, [ssh] onto SSH and every
// key of [exit_codes] onto ExitCodes.
func parseINI(data []byte, s *Settings) error {
	cfg, err := ini.Load(data)
	if err != nil {
		return err
	}

	if err := cfg.Section(ini.DefaultSection).MapTo(s); err != nil {
		return err
	}

	if sec, err := cfg.GetSection("ssh"); err == nil {
		if err := sec.MapTo(&s.SSH); err != nil {
			return err
		}
	}

	if sec, err := cfg.GetSection("exit_codes"); err == nil {
		s.ExitCodes = make(map[string]string, len(sec.Keys()))
		for _, key := range sec.Keys() {
			s.ExitCodes[key.Name()] = key.String()
		}
	}

	return nil
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	var problems []string
	if s.Concurrency < 1 {
		problems = append(problems, "concurrency must be at least 1")
	}
	if s.DefaultTimeout < 0 {
		problems = append(problems, "default_timeout must not be negative")
	}
	if s.ChocoCommand == "" {
		problems = append(problems, "choco_command must not be empty")
	}
	switch strings.ToLower(s.LogFormat) {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("log_format %q must be console or json", s.LogFormat))
	}
	if s.SSH.Port < 0 || s.SSH.Port > 65535 {
		problems = append(problems, "ssh.port must be between 0 and 65535")
	}
	if _, err := s.ExitCodeTable(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid settings: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ExitCodeTable returns the default Chocolatey table with the configured
// entries taking precedence over it. Codes the file does not mention keep
// their default classification.
func (s Settings) ExitCodeTable() (execution.ExitCodeTable, error) {
	if len(s.ExitCodes) == 0 {
		return execution.DefaultExitCodeTable(), nil
	}
	table, err := execution.ParseExitCodeTable(s.ExitCodes)
	if err != nil {
		return execution.ExitCodeTable{}, err
	}
	return table.Then(execution.DefaultExitCodeTable()), nil
}

// Timeout returns DefaultTimeout as a duration.
func (s Settings) Timeout() time.Duration {
	if s.DefaultTimeout <= 0 {
		return desired.DefaultTimeout
	}
	return time.Duration(s.DefaultTimeout) * time.Second
}
