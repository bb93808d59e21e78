package chocolatey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/felixgeelhaar/chocostate/internal/domain/desired"
	"github.com/felixgeelhaar/chocostate/internal/domain/installed"
	"github.com/felixgeelhaar/chocostate/internal/domain/version"
	"github.com/felixgeelhaar/chocostate/internal/ports"
	"github.com/felixgeelhaar/chocostate/internal/provider/commandutil"
)

// DefaultCommand is the Chocolatey executable name.
const DefaultCommand = "choco"

// Probe errors.
var (
	// ErrRuntimeMissing means the choco executable could not be found.
	ErrRuntimeMissing = errors.New("chocolatey is not installed")
	// ErrUnsupportedCLI means the installed choco is older than MinimumCLIVersion.
	ErrUnsupportedCLI = errors.New("unsupported chocolatey version")
)

// exit code 2 is "nothing found" / "upgrades available" when enhanced exit
// codes are enabled; the output is still authoritative.
const exitNoResults = 2

// ProbeError reports a query against the package manager that did not
// complete. It is distinct from a query that found nothing.
type ProbeError struct {
	Command string
	Result  ports.CommandResult
	Err     error
}

func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("probe %q failed: %v", e.Command, e.Err)
	}
	msg := strings.TrimSpace(e.Result.Stderr)
	if msg == "" {
		msg = lastLine(e.Result.Stdout)
	}
	return fmt.Sprintf("probe %q failed with exit code %d: %s", e.Command, e.Result.ExitCode, msg)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Prober reads installed state from the package manager. It never changes
// the host.
type Prober struct {
	runner  ports.CommandRunner
	command string

	mu  sync.Mutex
	cli string
}

// NewProber creates a prober that runs command (DefaultCommand when empty).
func NewProber(runner ports.CommandRunner, command string) *Prober {
	if command == "" {
		command = DefaultCommand
	}
	return &Prober{runner: runner, command: command}
}

// ProbeOption adjusts a single probe.
type ProbeOption func(*probeConfig)

type probeConfig struct {
	prerelease bool
}

// WithPrerelease includes pre-release versions in the upgrade what-if.
func WithPrerelease(enabled bool) ProbeOption {
	return func(c *probeConfig) {
		c.prerelease = enabled
	}
}

// CLIVersion returns the installed choco version. A successful answer is
// cached until Invalidate is called.
func (p *Prober) CLIVersion(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cli != "" {
		return p.cli, nil
	}

	args := []string{"--version"}
	result, err := p.runner.Run(ctx, p.command, args...)
	if err != nil {
		if commandutil.IsCommandNotFound(err) {
			return "", ErrRuntimeMissing
		}
		return "", &ProbeError{Command: CommandLine(p.command, args), Result: result, Err: err}
	}
	if commandutil.IsNotRecognized(result) {
		return "", ErrRuntimeMissing
	}
	if !result.Success() {
		return "", &ProbeError{Command: CommandLine(p.command, args), Result: result}
	}

	cli := lastLine(result.Stdout)
	if _, err := version.Parse(cli); err != nil {
		return "", &ProbeError{Command: CommandLine(p.command, args), Result: result, Err: err}
	}
	if !version.AtLeast(cli, MinimumCLIVersion) {
		return "", fmt.Errorf("%w: %s is older than %s", ErrUnsupportedCLI, cli, MinimumCLIVersion)
	}

	p.cli = cli
	return cli, nil
}

// Invalidate forgets the cached CLI version, e.g. after a bootstrap.
func (p *Prober) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cli = ""
}

// Probe captures installed instances of names, all pins and, when
// withOutdated is set, the upgrade what-if. An empty names list or the all
// sentinel lists every installed package. Zero matches is not an error.
func (p *Prober) Probe(ctx context.Context, names []string, withOutdated bool, opts ...ProbeOption) (*installed.Snapshot, error) {
	var cfg probeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	cli, err := p.CLIVersion(ctx)
	if err != nil {
		return nil, err
	}

	pkgs, err := p.listInstalled(ctx, cli, names)
	if err != nil {
		return nil, err
	}

	pins, err := p.listPins(ctx)
	if err != nil {
		return nil, err
	}

	var outdated []installed.Outdated
	if withOutdated {
		outdated, err = p.listOutdated(ctx, cfg.prerelease)
		if err != nil {
			return nil, err
		}
	}

	return installed.NewSnapshot(cli, pkgs, pins, outdated), nil
}

func (p *Prober) listInstalled(ctx context.Context, cli string, names []string) ([]installed.Package, error) {
	if listsAll(names) {
		lines, err := p.query(ctx, ListArgs(cli, ""))
		if err != nil {
			return nil, err
		}
		return parsePackages(lines, ""), nil
	}

	var pkgs []installed.Package
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		lines, err := p.query(ctx, ListArgs(cli, name))
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, parsePackages(lines, name)...)
	}
	return pkgs, nil
}

func (p *Prober) listPins(ctx context.Context) (map[string]string, error) {
	lines, err := p.query(ctx, PinListArgs())
	if err != nil {
		return nil, err
	}

	pins := make(map[string]string)
	for _, line := range lines {
		fields := strings.Split(line, "|")
		name := strings.TrimSpace(fields[0])
		if name == "" {
			continue
		}
		v := ""
		if len(fields) > 1 {
			v = strings.TrimSpace(fields[1])
		}
		pins[strings.ToLower(name)] = v
	}
	return pins, nil
}

func (p *Prober) listOutdated(ctx context.Context, prerelease bool) ([]installed.Outdated, error) {
	lines, err := p.query(ctx, OutdatedArgs(prerelease))
	if err != nil {
		return nil, err
	}

	var out []installed.Outdated
	for _, line := range lines {
		fields := strings.Split(line, "|")
		if len(fields) < 3 {
			continue
		}
		o := installed.Outdated{
			Name:      strings.TrimSpace(fields[0]),
			Current:   strings.TrimSpace(fields[1]),
			Available: strings.TrimSpace(fields[2]),
		}
		if len(fields) > 3 {
			o.Pinned = strings.EqualFold(strings.TrimSpace(fields[3]), "true")
		}
		out = append(out, o)
	}
	return out, nil
}

// query runs a read-only choco command and returns its pipe-separated
// output lines.
func (p *Prober) query(ctx context.Context, args []string) ([]string, error) {
	result, err := p.runner.Run(ctx, p.command, args...)
	if err != nil {
		if commandutil.IsCommandNotFound(err) {
			return nil, ErrRuntimeMissing
		}
		return nil, &ProbeError{Command: CommandLine(p.command, args), Result: result, Err: err}
	}
	if !result.Success() && result.ExitCode != exitNoResults {
		return nil, &ProbeError{Command: CommandLine(p.command, args), Result: result}
	}
	return limitOutputLines(result.Stdout), nil
}

// parsePackages reads name|version lines. When name is set only exact
// (case-insensitive) matches are kept.
func parsePackages(lines []string, name string) []installed.Package {
	var pkgs []installed.Package
	for _, line := range lines {
		fields := strings.Split(line, "|")
		if len(fields) < 2 {
			continue
		}
		pkgName := strings.TrimSpace(fields[0])
		pkgVersion := strings.TrimSpace(fields[1])
		if pkgName == "" || pkgVersion == "" {
			continue
		}
		if name != "" && !strings.EqualFold(pkgName, name) {
			continue
		}
		pkgs = append(pkgs, installed.Package{
			Name:         pkgName,
			Version:      pkgVersion,
			Architecture: desired.ArchDefault,
		})
	}
	return pkgs
}

// limitOutputLines returns the non-empty lines that carry a '|' separator,
// dropping banners and warnings choco prints even with --limit-output.
func limitOutputLines(stdout string) []string {
	var lines []string
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, "|") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func listsAll(names []string) bool {
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		if strings.EqualFold(n, desired.AllPackages) {
			return true
		}
	}
	return false
}
