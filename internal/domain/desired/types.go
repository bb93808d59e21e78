// Package desired models the caller's declared package state: the request
// as it arrives from a task file, CLI flags or the MCP surface, and the
// normalized per-package specs the planner consumes.
package desired

import (
	"fmt"
	"strings"
	"time"
)

// AllPackages is the sentinel name selecting every installed package.
const AllPackages = "all"

// ChocolateyPackage is the name of the package manager's own package.
const ChocolateyPackage = "chocolatey"

// DefaultTimeout is the per-action execution timeout.
const DefaultTimeout = 2700 * time.Second

// State is the normalized target state of a package.
type State string

// Package states. "upgrade" is accepted on input and normalized to StateLatest.
const (
	StateAbsent      State = "absent"
	StatePresent     State = "present"
	StateLatest      State = "latest"
	StateDowngrade   State = "downgrade"
	StateReinstalled State = "reinstalled"
)

// ParseState converts a state name to a State. The empty string means present.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "present":
		return StatePresent, nil
	case "absent":
		return StateAbsent, nil
	case "latest", "upgrade":
		return StateLatest, nil
	case "downgrade":
		return StateDowngrade, nil
	case "reinstalled":
		return StateReinstalled, nil
	default:
		return "", fmt.Errorf("unknown state %q (want absent, present, latest, upgrade, downgrade or reinstalled)", s)
	}
}

// Architecture selects the package architecture.
type Architecture string

// Architectures.
const (
	ArchDefault Architecture = "default"
	ArchX86     Architecture = "x86"
)

// ParseArchitecture converts an architecture name. The empty string means default.
func ParseArchitecture(s string) (Architecture, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return ArchDefault, nil
	case "x86":
		return ArchX86, nil
	default:
		return "", fmt.Errorf("unknown architecture %q (want default or x86)", s)
	}
}

// PinIntent is the tri-state pin request.
type PinIntent int

// Pin intents.
const (
	PinUntouched PinIntent = iota
	PinPinned
	PinUnpinned
)

// ParsePin converts an optional boolean into a PinIntent.
func ParsePin(pinned *bool) PinIntent {
	switch {
	case pinned == nil:
		return PinUntouched
	case *pinned:
		return PinPinned
	default:
		return PinUnpinned
	}
}

// String returns the pin intent name.
func (p PinIntent) String() string {
	switch p {
	case PinPinned:
		return "pinned"
	case PinUnpinned:
		return "unpinned"
	default:
		return "untouched"
	}
}

// Wants reports whether the intent is set and whether it asks for a pin.
func (p PinIntent) Wants() (set bool, pinned bool) {
	return p != PinUntouched, p == PinPinned
}

// TLSVersion is a protocol enabled for the bootstrap download.
type TLSVersion string

// TLS versions accepted for bootstrap_tls_version.
const (
	TLS11 TLSVersion = "tls11"
	TLS12 TLSVersion = "tls12"
	TLS13 TLSVersion = "tls13"
)

// DefaultTLSVersions is used when no TLS version is requested.
var DefaultTLSVersions = []TLSVersion{TLS12, TLS13}

// Credentials is an optional username/password pair.
type Credentials struct {
	Username string
	Password string
}

// IsSet reports whether a username was supplied.
func (c Credentials) IsSet() bool {
	return c.Username != ""
}

// Source is where a package is fetched from: a named source, a feed URL or
// a folder.
type Source struct {
	Location string
	Credentials
}

// Proxy is the HTTP proxy used for downloads.
type Proxy struct {
	URL string
	Credentials
}

// Checksums overrides the package checksums.
type Checksums struct {
	Checksum       string
	ChecksumType   string
	Checksum64     string
	ChecksumType64 string
	Ignore         bool
	AllowEmpty     bool
}

// PackageSpec is the normalized desired state of a single package.
type PackageSpec struct {
	Name               string
	Version            string
	State              State
	Architecture       Architecture
	Pin                PinIntent
	Force              bool
	SkipScripts        bool
	IgnoreDependencies bool
	RemoveDependencies bool
	AllowPrerelease    bool
	AllowMultiple      bool
	InstallArgs        string
	OverrideArgs       bool
	PackageParams      string
	ChocoArgs          []string
	Checksums          Checksums
	Source             Source
	Proxy              Proxy
	Timeout            time.Duration
}

// IsAll reports whether the spec targets every installed package.
func (s PackageSpec) IsAll() bool {
	return strings.EqualFold(s.Name, AllPackages)
}

// HasVersion reports whether a specific version was requested.
func (s PackageSpec) HasVersion() bool {
	return s.Version != ""
}

// BootstrapOptions configures installation of the package manager runtime.
type BootstrapOptions struct {
	Script            string
	Source            string
	TLSVersions       []TLSVersion
	ValidateCerts     bool
	Proxy             Proxy
	ChocolateyVersion string
}
