// Package chocolatey drives the Chocolatey CLI: it parses task files,
// probes installed state, builds and runs choco commands and bootstraps the
// runtime when it is missing.
package chocolatey

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/felixgeelhaar/chocostate/internal/domain/desired"
	"github.com/felixgeelhaar/chocostate/internal/validation"
	"gopkg.in/yaml.v3"
)

// ErrTaskFileNotFound is returned when the task file does not exist.
var ErrTaskFileNotFound = errors.New("task file not found")

// Config is a parsed task file.
type Config struct {
	Tasks []desired.Request
}

// keyAliases maps accepted alternative spellings to canonical task keys.
var keyAliases = map[string]string{
	"params":                 "package_params",
	"licensed_args":          "choco_args",
	"execution_timeout":      "timeout",
	"install_ps1":            "bootstrap_script",
	"bootstrap_ps1":          "bootstrap_script",
	"bootstrap_tls_versions": "bootstrap_tls_version",
	"tls_version":            "bootstrap_tls_version",
	"tls_versions":           "bootstrap_tls_version",
}

var knownKeys = map[string]struct{}{
	"name": {}, "version": {}, "state": {}, "architecture": {}, "pinned": {}, "force": {},
	"skip_scripts": {}, "ignore_dependencies": {}, "remove_dependencies": {},
	"allow_prerelease": {}, "allow_multiple": {}, "install_args": {}, "override_args": {},
	"package_params": {}, "choco_args": {}, "proxy_url": {}, "proxy_username": {},
	"proxy_password": {}, "source": {}, "source_username": {}, "source_password": {},
	"checksum": {}, "checksum_type": {}, "checksum64": {}, "checksum_type64": {},
	"ignore_checksums": {}, "allow_empty_checksums": {}, "timeout": {}, "validate_certs": {},
	"bootstrap_script": {}, "bootstrap_tls_version": {},
}

// LoadTaskFile reads and parses the task file at path.
func LoadTaskFile(path string) (*Config, error) {
	if err := validation.ValidatePath(path); err != nil {
		return nil, fmt.Errorf("invalid task file path: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTaskFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}
	return ParseTaskFile(data)
}

// ParseTaskFile parses a YAML task file.
func ParseTaskFile(data []byte) (*Config, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse task file: %w", err)
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	return ParseConfig(raw)
}

// ParseConfig parses the task configuration from a raw map. Keys under
// "defaults" apply to every task unless the task sets them itself.
func ParseConfig(raw map[string]interface{}) (*Config, error) {
	cfg := &Config{Tasks: make([]desired.Request, 0)}

	var defaults map[string]interface{}
	if d, ok := raw["defaults"]; ok {
		m, ok := d.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("defaults must be an object")
		}
		if _, hasName := m["name"]; hasName {
			return nil, fmt.Errorf("defaults cannot set name")
		}
		defaults = m
	}

	if tasks, ok := raw["tasks"]; ok {
		taskList, ok := tasks.([]interface{})
		if !ok {
			return nil, fmt.Errorf("tasks must be a list")
		}
		for i, t := range taskList {
			req, err := parseTask(t, defaults)
			if err != nil {
				return nil, fmt.Errorf("tasks[%d]: %w", i, err)
			}
			cfg.Tasks = append(cfg.Tasks, req)
		}
	}

	for key := range raw {
		if key != "tasks" && key != "defaults" {
			return nil, fmt.Errorf("unknown top-level key %q", key)
		}
	}

	return cfg, nil
}

// parseTask parses a task from either a package name or a map.
func parseTask(raw interface{}, defaults map[string]interface{}) (desired.Request, error) {
	switch v := raw.(type) {
	case string:
		if len(defaults) == 0 {
			return desired.Request{Names: []string{v}}, nil
		}
		return parseTaskMap(map[string]interface{}{"name": v}, defaults)
	case map[string]interface{}:
		return parseTaskMap(v, defaults)
	default:
		return desired.Request{}, fmt.Errorf("task must be a package name or an object")
	}
}

func parseTaskMap(raw, defaults map[string]interface{}) (desired.Request, error) {
	fields, err := canonicalize(defaults)
	if err != nil {
		return desired.Request{}, err
	}
	own, err := canonicalize(raw)
	if err != nil {
		return desired.Request{}, err
	}
	for k, v := range own {
		fields[k] = v
	}

	if _, ok := fields["name"]; !ok {
		return desired.Request{}, fmt.Errorf("task must have a name")
	}

	d := decoder{fields: fields}
	req := desired.Request{
		Names:               d.stringList("name"),
		Version:             d.version(),
		State:               d.str("state"),
		Architecture:        d.str("architecture"),
		Pinned:              d.optBool("pinned"),
		Force:               d.boolean("force"),
		SkipScripts:         d.boolean("skip_scripts"),
		IgnoreDependencies:  d.boolean("ignore_dependencies"),
		RemoveDependencies:  d.boolean("remove_dependencies"),
		AllowPrerelease:     d.boolean("allow_prerelease"),
		AllowMultiple:       d.boolean("allow_multiple"),
		InstallArgs:         d.str("install_args"),
		OverrideArgs:        d.boolean("override_args"),
		PackageParams:       d.str("package_params"),
		ChocoArgs:           d.stringList("choco_args"),
		ProxyURL:            d.str("proxy_url"),
		ProxyUsername:       d.str("proxy_username"),
		ProxyPassword:       d.str("proxy_password"),
		Source:              d.str("source"),
		SourceUsername:      d.str("source_username"),
		SourcePassword:      d.str("source_password"),
		Checksum:            d.str("checksum"),
		ChecksumType:        d.str("checksum_type"),
		Checksum64:          d.str("checksum64"),
		ChecksumType64:      d.str("checksum_type64"),
		IgnoreChecksums:     d.boolean("ignore_checksums"),
		AllowEmptyChecksums: d.boolean("allow_empty_checksums"),
		Timeout:             d.integer("timeout"),
		ValidateCerts:       d.optBool("validate_certs"),
		BootstrapScript:     d.str("bootstrap_script"),
		BootstrapTLSVersion: d.stringList("bootstrap_tls_version"),
	}

	if d.err != nil {
		return desired.Request{}, d.err
	}
	return req, nil
}

// canonicalize resolves aliases and rejects unknown or conflicting keys.
func canonicalize(raw map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(raw))

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := strings.ToLower(k)
		if canonical, ok := keyAliases[key]; ok {
			key = canonical
		}
		if _, ok := knownKeys[key]; !ok {
			return nil, fmt.Errorf("unknown key %q", k)
		}
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("key %q is set more than once (directly or via an alias)", key)
		}
		out[key] = raw[k]
	}
	return out, nil
}

// decoder reads typed values from a task map, keeping the first error.
type decoder struct {
	fields map[string]interface{}
	err    error
}

func (d *decoder) fail(format string, args ...interface{}) {
	if d.err == nil {
		d.err = fmt.Errorf(format, args...)
	}
}

func (d *decoder) str(key string) string {
	v, ok := d.fields[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail("%s must be a string", key)
		return ""
	}
	return s
}

// version keeps the version verbatim. Unquoted YAML numbers are rejected
// because 6.10 would already have been read as the float 6.1.
func (d *decoder) version() string {
	v, ok := d.fields["version"]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case int, int64, uint64, float64:
		d.fail("version must be a quoted string (write version: \"%v\"), numbers lose precision", t)
	default:
		d.fail("version must be a string")
	}
	return ""
}

func (d *decoder) boolean(key string) bool {
	v, ok := d.fields[key]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		d.fail("%s must be a boolean", key)
	}
	return b
}

func (d *decoder) optBool(key string) *bool {
	v, ok := d.fields[key]
	if !ok || v == nil {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		d.fail("%s must be a boolean", key)
		return nil
	}
	return &b
}

func (d *decoder) integer(key string) int {
	v, ok := d.fields[key]
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		// JSON input
		if n == float64(int(n)) {
			return int(n)
		}
		d.fail("%s must be an integer", key)
		return 0
	default:
		d.fail("%s must be an integer", key)
		return 0
	}
}

// stringList accepts a single string or a list of strings.
func (d *decoder) stringList(key string) []string {
	v, ok := d.fields[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				d.fail("%s[%d] must be a string", key, i)
				return nil
			}
			out = append(out, s)
		}
		return out
	default:
		d.fail("%s must be a string or a list of strings", key)
		return nil
	}
}
