package chocolatey

import (
	"strconv"
	"strings"

	"github.com/felixgeelhaar/chocostate/internal/domain/desired"
	"github.com/felixgeelhaar/chocostate/internal/domain/reconcile"
	"github.com/felixgeelhaar/chocostate/internal/domain/version"
	"github.com/felixgeelhaar/chocostate/internal/ports"
)

// CLI version gates.
const (
	// MinimumCLIVersion is the oldest choco release whose flags are used here.
	MinimumCLIVersion = "0.10.5"
	// v2CLIVersion dropped --local-only and side-by-side installs.
	v2CLIVersion = "2.0.0"
)

const redacted = "********"

// secretFlags are the flags whose values never appear in reported commands.
var secretFlags = []string{"--password=", "--proxy-password="}

// BuildArgs returns the choco arguments for a mutating action. The order is
// fixed: verb and package name, common flags, version, architecture, behavior
// flags, proxy, source, checksums, timeout and finally the free-form
// choco_args.
func BuildArgs(action reconcile.Action) []string {
	spec := action.Spec

	switch action.Kind {
	case reconcile.KindPin, reconcile.KindUnpin:
		return pinArgs(action)
	case reconcile.KindUninstall:
		return uninstallArgs(action)
	}

	verb := "install"
	if action.Kind == reconcile.KindUpgrade || action.Kind == reconcile.KindDowngrade {
		verb = "upgrade"
	}

	args := []string{verb, spec.Name, "-y", "--no-progress", "--limit-output"}
	if action.Version != "" {
		args = append(args, "--version="+action.Version)
	}
	if spec.Architecture == desired.ArchX86 {
		args = append(args, "--x86")
	}

	if action.Kind == reconcile.KindDowngrade {
		args = append(args, "--allow-downgrade")
	}
	if action.Force {
		args = append(args, "--force")
	}
	if spec.AllowMultiple {
		args = append(args, "--allow-multiple-versions")
	}
	if spec.AllowPrerelease {
		args = append(args, "--prerelease")
	}
	if spec.SkipScripts {
		args = append(args, "--skip-scripts")
	}
	if spec.IgnoreDependencies {
		args = append(args, "--ignore-dependencies")
	}
	if spec.InstallArgs != "" {
		args = append(args, "--install-arguments="+spec.InstallArgs)
	}
	if spec.OverrideArgs {
		args = append(args, "--override-arguments")
	}
	if spec.PackageParams != "" {
		args = append(args, "--package-parameters="+spec.PackageParams)
	}
	if !spec.IsAll() {
		args = append(args, "--fail-on-unfound")
	}

	args = appendProxy(args, spec.Proxy)
	args = appendSource(args, spec.Source)
	args = appendChecksums(args, spec.Checksums)
	args = appendTimeout(args, spec)

	return append(args, spec.ChocoArgs...)
}

func uninstallArgs(action reconcile.Action) []string {
	spec := action.Spec

	args := []string{"uninstall", spec.Name, "-y", "--no-progress", "--limit-output"}
	if action.Version != "" {
		args = append(args, "--version="+action.Version)
	} else {
		args = append(args, "--all-versions")
	}
	if spec.Architecture == desired.ArchX86 {
		args = append(args, "--x86")
	}
	if spec.Force {
		args = append(args, "--force")
	}
	if spec.SkipScripts {
		args = append(args, "--skip-scripts")
	}
	if spec.RemoveDependencies {
		args = append(args, "--force-dependencies")
	}
	if spec.PackageParams != "" {
		args = append(args, "--package-parameters="+spec.PackageParams)
	}

	args = appendProxy(args, spec.Proxy)
	args = appendSource(args, spec.Source)
	args = appendTimeout(args, spec)

	return append(args, spec.ChocoArgs...)
}

func pinArgs(action reconcile.Action) []string {
	sub := "add"
	if action.Kind == reconcile.KindUnpin {
		sub = "remove"
	}
	args := []string{"pin", sub, "--name=" + action.Spec.Name, "--limit-output"}
	if action.Version != "" {
		args = append(args, "--version="+action.Version)
	}
	return args
}

func appendProxy(args []string, p desired.Proxy) []string {
	if p.URL == "" {
		return args
	}
	args = append(args, "--proxy="+p.URL)
	if p.IsSet() {
		args = append(args, "--proxy-user="+p.Username, "--proxy-password="+p.Password)
	}
	return args
}

func appendSource(args []string, s desired.Source) []string {
	if s.Location == "" {
		return args
	}
	args = append(args, "--source="+s.Location)
	if s.IsSet() {
		args = append(args, "--user="+s.Username, "--password="+s.Password)
	}
	return args
}

func appendChecksums(args []string, c desired.Checksums) []string {
	if c.Checksum != "" {
		args = append(args, "--checksum="+c.Checksum)
	}
	if c.ChecksumType != "" {
		args = append(args, "--checksumtype="+c.ChecksumType)
	}
	if c.Checksum64 != "" {
		args = append(args, "--checksum64="+c.Checksum64)
	}
	if c.ChecksumType64 != "" {
		args = append(args, "--checksumtype64="+c.ChecksumType64)
	}
	if c.Ignore {
		args = append(args, "--ignore-checksums")
	}
	if c.AllowEmpty {
		args = append(args, "--allow-empty-checksums")
	}
	return args
}

func appendTimeout(args []string, spec desired.PackageSpec) []string {
	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = desired.DefaultTimeout
	}
	return append(args, "--execution-timeout="+strconv.Itoa(int(timeout.Seconds())))
}

// ListArgs returns the arguments that list installed instances of name, or
// of every package when name is empty or the all sentinel.
func ListArgs(cliVersion, name string) []string {
	args := []string{"list"}
	if !version.AtLeast(cliVersion, v2CLIVersion) {
		args = append(args, "--local-only")
	}
	args = append(args, "--exact", "--all-versions", "--limit-output")
	if name != "" && !strings.EqualFold(name, desired.AllPackages) {
		args = append(args, name)
	}
	return args
}

// OutdatedArgs returns the arguments of the upgrade what-if probe.
func OutdatedArgs(prerelease bool) []string {
	args := []string{"outdated", "--limit-output"}
	if prerelease {
		args = append(args, "--pre")
	}
	return args
}

// PinListArgs returns the arguments that list pins.
func PinListArgs() []string {
	return []string{"pin", "list", "--limit-output"}
}

// SupportsAllowMultiple reports whether the CLI still accepts side-by-side
// installs.
func SupportsAllowMultiple(cliVersion string) bool {
	return !version.AtLeast(cliVersion, v2CLIVersion)
}

// RedactArgs returns a copy of args with credential values masked.
func RedactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = a
		for _, flag := range secretFlags {
			if strings.HasPrefix(a, flag) {
				out[i] = flag + redacted
				break
			}
		}
	}
	return out
}

// CommandLine renders command and args with credentials masked.
func CommandLine(command string, args []string) string {
	return ports.CommandCall{Command: command, Args: RedactArgs(args)}.String()
}
