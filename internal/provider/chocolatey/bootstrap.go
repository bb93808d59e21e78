package chocolatey

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/felixgeelhaar/chocostate/internal/domain/desired"
	"github.com/felixgeelhaar/chocostate/internal/ports"
	"github.com/felixgeelhaar/chocostate/internal/provider/commandutil"
	"github.com/felixgeelhaar/chocostate/internal/validation"
)

// DefaultBootstrapURL is the community install script.
const DefaultBootstrapURL = "https://community.chocolatey.org/install.ps1"

// DefaultPowerShell is the shell used to run the bootstrap script.
const DefaultPowerShell = "powershell"

// tlsProtocolMask maps TLS versions to System.Net.SecurityProtocolType values.
var tlsProtocolMask = map[desired.TLSVersion]int{
	desired.TLS11: 768,
	desired.TLS12: 3072,
	desired.TLS13: 12288,
}

// Bootstrapper installs the Chocolatey runtime. The install runs at most
// once per Bootstrapper; later calls return the first outcome.
type Bootstrapper struct {
	runner     ports.CommandRunner
	powershell string

	mu   sync.Mutex
	done bool
	err  error
}

// NewBootstrapper creates a bootstrapper that runs powershell (DefaultPowerShell
// when empty).
func NewBootstrapper(runner ports.CommandRunner, powershell string) *Bootstrapper {
	if powershell == "" {
		powershell = DefaultPowerShell
	}
	return &Bootstrapper{runner: runner, powershell: powershell}
}

// EnsureRuntime downloads and runs the bootstrap script.
func (b *Bootstrapper) EnsureRuntime(ctx context.Context, opts desired.BootstrapOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return b.err
	}
	b.done = true
	b.err = b.run(ctx, opts)
	return b.err
}

// Attempted reports whether EnsureRuntime has run.
func (b *Bootstrapper) Attempted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

func (b *Bootstrapper) run(ctx context.Context, opts desired.BootstrapOptions) error {
	scriptURL := ResolveBootstrapURL(opts)
	if err := validation.ValidateURL(scriptURL); err != nil {
		return fmt.Errorf("invalid bootstrap script URL %q: %w", scriptURL, err)
	}

	script := BootstrapScript(scriptURL, opts)
	args := []string{"-NoProfile", "-InputFormat", "None", "-ExecutionPolicy", "Bypass", "-Command", script}

	logger := ports.LoggerFromContext(ctx)
	if logger != nil {
		logger.Info(ctx, "bootstrapping chocolatey", ports.F("script", scriptURL))
	}

	result, err := b.runner.Run(ctx, b.powershell, args...)
	if err != nil {
		if commandutil.IsCommandNotFound(err) {
			return fmt.Errorf("%s not found; cannot bootstrap chocolatey: %w", b.powershell, err)
		}
		return fmt.Errorf("chocolatey bootstrap failed: %w", err)
	}
	if !result.Success() {
		msg := strings.TrimSpace(result.Stderr)
		if msg == "" {
			msg = lastLine(result.Stdout)
		}
		return fmt.Errorf("chocolatey bootstrap failed with exit code %d: %s", result.ExitCode, msg)
	}
	return nil
}

// ResolveBootstrapURL picks the install script location: an explicit script
// wins, then a script derived from a URL source, then the community script.
func ResolveBootstrapURL(opts desired.BootstrapOptions) string {
	if opts.Script != "" {
		return opts.Script
	}
	if opts.Source == "" || !validation.IsURL(opts.Source) {
		return DefaultBootstrapURL
	}

	u, err := url.Parse(opts.Source)
	if err != nil || u.Host == "" {
		return DefaultBootstrapURL
	}

	switch {
	case strings.HasSuffix(strings.ToLower(u.Path), ".ps1"):
		return opts.Source
	case strings.Contains(u.Path, "/repository/"):
		return u.Scheme + "://" + u.Host + strings.TrimRight(u.Path, "/") + "/install.ps1"
	default:
		return u.Scheme + "://" + u.Host + "/install.ps1"
	}
}

// SecurityProtocolMask combines the requested TLS versions. Unknown names are
// ignored; an empty list uses the defaults.
func SecurityProtocolMask(versions []desired.TLSVersion) int {
	if len(versions) == 0 {
		versions = desired.DefaultTLSVersions
	}
	mask := 0
	for _, v := range versions {
		mask |= tlsProtocolMask[v]
	}
	return mask
}

// BootstrapScript builds the PowerShell command that installs Chocolatey
// from scriptURL.
func BootstrapScript(scriptURL string, opts desired.BootstrapOptions) string {
	var lines []string
	add := func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	add("$ErrorActionPreference = 'Stop'")
	add("[Net.ServicePointManager]::SecurityProtocol = [Net.ServicePointManager]::SecurityProtocol -bor %s",
		strconv.Itoa(SecurityProtocolMask(opts.TLSVersions)))
	if !opts.ValidateCerts {
		add("[Net.ServicePointManager]::ServerCertificateValidationCallback = { $true }")
	}
	if opts.ChocolateyVersion != "" {
		add("$env:chocolateyVersion = %s", psQuote(opts.ChocolateyVersion))
	}

	add("$client = New-Object -TypeName System.Net.WebClient")
	if opts.Proxy.URL != "" {
		add("$proxy = New-Object -TypeName System.Net.WebProxy -ArgumentList %s, $true", psQuote(opts.Proxy.URL))
		add("$env:chocolateyProxyLocation = %s", psQuote(opts.Proxy.URL))
		if opts.Proxy.IsSet() {
			add("$proxy.Credentials = New-Object -TypeName System.Net.NetworkCredential -ArgumentList %s, %s",
				psQuote(opts.Proxy.Username), psQuote(opts.Proxy.Password))
			add("$env:chocolateyProxyUser = %s", psQuote(opts.Proxy.Username))
			add("$env:chocolateyProxyPassword = %s", psQuote(opts.Proxy.Password))
		}
		add("$client.Proxy = $proxy")
	}
	add("Invoke-Expression -Command $client.DownloadString(%s)", psQuote(scriptURL))

	return strings.Join(lines, "; ")
}

// psQuote renders s as a single-quoted PowerShell string.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
