// Package version orders Chocolatey package versions.
//
// Package versions follow NuGet rules: any number of dot-separated numeric
// components (missing trailing components count as zero), an optional
// pre-release label after "-" and optional build metadata after "+".
// Versions are compared as strings of components and are never parsed as
// floating point numbers, so "6.1" and "6.10" are distinct and 6.1 < 6.10.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrInvalid is returned by Parse for strings that are not versions.
var ErrInvalid = errors.New("invalid version")

// Version is a parsed package version.
type Version struct {
	raw        string
	release    []string
	prerelease []string
}

// Parse parses a NuGet/SemVer-like version string.
func Parse(s string) (Version, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Version{}, fmt.Errorf("%w: empty", ErrInvalid)
	}

	body := raw
	if i := strings.IndexByte(body, '+'); i >= 0 {
		body = body[:i]
	}

	v := Version{raw: raw}
	if i := strings.IndexByte(body, '-'); i >= 0 {
		pre := body[i+1:]
		body = body[:i]
		if pre == "" {
			return Version{}, fmt.Errorf("%w: %q has an empty pre-release label", ErrInvalid, s)
		}
		v.prerelease = strings.Split(pre, ".")
	}

	v.release = strings.Split(body, ".")
	for _, part := range v.release {
		if part == "" || !isNumeric(part) {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
	}

	return v, nil
}

// String returns the version as it was given.
func (v Version) String() string {
	return v.raw
}

// IsPrerelease reports whether the version carries a pre-release label.
func (v Version) IsPrerelease() bool {
	return len(v.prerelease) > 0
}

// Compare returns -1, 0 or 1 when v is lower than, equal to or higher than o.
func (v Version) Compare(o Version) int {
	n := len(v.release)
	if len(o.release) > n {
		n = len(o.release)
	}
	for i := 0; i < n; i++ {
		if c := compareNumeric(component(v.release, i), component(o.release, i)); c != 0 {
			return c
		}
	}

	switch {
	case len(v.prerelease) == 0 && len(o.prerelease) == 0:
		return 0
	case len(v.prerelease) == 0:
		return 1
	case len(o.prerelease) == 0:
		return -1
	}

	for i := 0; i < len(v.prerelease) && i < len(o.prerelease); i++ {
		if c := compareIdentifier(v.prerelease[i], o.prerelease[i]); c != 0 {
			return c
		}
	}
	return sign(len(v.prerelease) - len(o.prerelease))
}

// Compare parses and compares two version strings. Strings that do not
// parse sort below ones that do and are otherwise compared case-insensitively.
func Compare(a, b string) int {
	va, errA := Parse(a)
	vb, errB := Parse(b)
	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA != nil && errB != nil:
		return sign(strings.Compare(strings.ToLower(a), strings.ToLower(b)))
	case errA != nil:
		return -1
	default:
		return 1
	}
}

// Equal reports whether a and b denote the same version ("1.0" == "1.0.0").
func Equal(a, b string) bool {
	return Compare(a, b) == 0
}

// Less reports whether a orders before b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// Canonical converts a CLI version such as "2.2.2" or "0.10.15" into the
// "vMAJOR.MINOR.PATCH" form understood by golang.org/x/mod/semver. It returns
// "" when s has no leading numeric components.
func Canonical(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "v"))
	if i := strings.IndexAny(s, "-+ "); i >= 0 {
		s = s[:i]
	}

	parts := strings.Split(s, ".")
	nums := make([]string, 0, 3)
	for _, p := range parts {
		if len(nums) == 3 {
			break
		}
		if p == "" || !isNumeric(p) {
			break
		}
		n, _ := strconv.Atoi(p)
		nums = append(nums, strconv.Itoa(n))
	}
	if len(nums) == 0 {
		return ""
	}
	for len(nums) < 3 {
		nums = append(nums, "0")
	}

	c := "v" + strings.Join(nums, ".")
	if !semver.IsValid(c) {
		return ""
	}
	return semver.Canonical(c)
}

// AtLeast reports whether the CLI version cli is greater than or equal to
// min. Unparseable versions never satisfy the gate.
func AtLeast(cli, minimum string) bool {
	c, m := Canonical(cli), Canonical(minimum)
	if c == "" || m == "" {
		return false
	}
	return semver.Compare(c, m) >= 0
}

// Major returns the major component of a CLI version ("2" for "2.2.2").
func Major(cli string) string {
	c := Canonical(cli)
	if c == "" {
		return ""
	}
	return strings.TrimPrefix(semver.Major(c), "v")
}

func component(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return "0"
}

func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return sign(len(a) - len(b))
	}
	return sign(strings.Compare(a, b))
}

// compareIdentifier orders pre-release identifiers: numeric identifiers
// numerically and below alphanumeric ones, alphanumerics case-insensitively.
func compareIdentifier(a, b string) int {
	an, bn := isNumeric(a), isNumeric(b)
	switch {
	case an && bn:
		return compareNumeric(a, b)
	case an:
		return -1
	case bn:
		return 1
	default:
		return sign(strings.Compare(strings.ToLower(a), strings.ToLower(b)))
	}
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
