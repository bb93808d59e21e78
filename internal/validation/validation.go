// Package validation hardens caller-supplied values before they reach the
// choco command line: package names, sources, versions, URLs, hostnames and
// free-form argument strings.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

// Common validation errors.
var (
	ErrEmptyInput          = errors.New("input cannot be empty")
	ErrPathTraversal       = errors.New("path traversal detected")
	ErrInvalidPath         = errors.New("invalid path")
	ErrCommandInjection    = errors.New("potential command injection detected")
	ErrInvalidHostname     = errors.New("invalid hostname")
	ErrNewlineInjection    = errors.New("newline injection detected")
	ErrInvalidChocoPackage = errors.New("invalid chocolatey package name")
	ErrInvalidChocoSource  = errors.New("invalid chocolatey source")
	ErrInvalidURL          = errors.New("invalid URL")
	ErrInvalidVersion      = errors.New("invalid package version")
)

var (
	// chocoPackageRegex matches valid Chocolatey package ids.
	// Examples: "git", "nodejs", "vscode", "7zip.install", "python3"
	chocoPackageRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

	// chocoSourceRegex matches named Chocolatey sources.
	// Examples: "chocolatey", "internal", "my-feed"
	chocoSourceRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

	// urlRegex matches HTTP/HTTPS URLs for feeds, proxies and bootstrap scripts.
	// Examples: "https://community.chocolatey.org/api/v2/", "http://proxy:8080"
	urlRegex = regexp.MustCompile(`^https?://[a-zA-Z0-9][a-zA-Z0-9._:/~%+=?@-]*$`)

	// versionRegex matches NuGet/SemVer-like versions.
	// Examples: "6.1", "2.40.0.1", "1.0.0-beta.2", "1.0.0+build.5"
	versionRegex = regexp.MustCompile(`^[0-9][0-9A-Za-z.+-]*$`)

	// hostnameRegex matches SSH target hosts.
	// Examples: "win-build01", "win01.corp.example.com", "192.168.1.10"
	hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

	// shellMetaChars contains shell metacharacters that could enable injection
	shellMetaChars = []string{";", "|", "&", "$", "`", "(", ")", "{", "}", "<", ">", "\n", "\r", "\\"}

	// pathMetaChars is shellMetaChars without the path separators Windows needs.
	pathMetaChars = []string{";", "|", "&", "$", "`", "<", ">", "\n", "\r", "\x00"}
)

// ValidateChocoPackage validates a Chocolatey package name.
func ValidateChocoPackage(name string) error {
	if name == "" {
		return ErrEmptyInput
	}

	if len(name) > 256 {
		return fmt.Errorf("%w: package name too long", ErrInvalidChocoPackage)
	}

	if !chocoPackageRegex.MatchString(name) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidChocoPackage, name)
	}

	if containsShellMeta(name) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, name)
	}

	return nil
}

// ValidateChocoSource validates a --source value. choco accepts a named
// source, a feed URL, or a local/UNC folder.
func ValidateChocoSource(source string) error {
	if source == "" {
		return ErrEmptyInput
	}

	if len(source) > 2048 {
		return fmt.Errorf("%w: source too long", ErrInvalidChocoSource)
	}

	if IsURL(source) {
		return ValidateURL(source)
	}

	if strings.ContainsAny(source, `\/:`) {
		for _, char := range pathMetaChars {
			if strings.Contains(source, char) {
				return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, source)
			}
		}
		return nil
	}

	if !chocoSourceRegex.MatchString(source) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidChocoSource, source)
	}

	return nil
}

// IsURL reports whether s has an http or https scheme.
func IsURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// ValidateURL validates an HTTP/HTTPS URL.
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return ErrEmptyInput
	}

	if len(urlStr) > 2048 {
		return fmt.Errorf("%w: URL too long", ErrInvalidURL)
	}

	if !urlRegex.MatchString(urlStr) {
		return fmt.Errorf("%w: %q must be a valid HTTP/HTTPS URL", ErrInvalidURL, urlStr)
	}

	if containsShellMeta(urlStr) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, urlStr)
	}

	if _, err := url.Parse(urlStr); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	return nil
}

// ValidateVersion validates a package version string. Versions are kept
// verbatim; this only rejects values choco could never resolve.
func ValidateVersion(version string) error {
	if version == "" {
		return ErrEmptyInput
	}

	if len(version) > 64 {
		return fmt.Errorf("%w: version too long", ErrInvalidVersion)
	}

	if !versionRegex.MatchString(version) {
		return fmt.Errorf("%w: %q (versions look like 6.1 or 1.0.0-beta)", ErrInvalidVersion, version)
	}

	return nil
}

// ValidateHostname validates the host of an SSH target.
func ValidateHostname(hostname string) error {
	if hostname == "" {
		return ErrEmptyInput
	}

	if len(hostname) > 253 {
		return fmt.Errorf("%w: hostname too long", ErrInvalidHostname)
	}

	if !hostnameRegex.MatchString(hostname) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidHostname, hostname)
	}

	return nil
}

// ValidateArgValue validates a free-form value passed as a single argv
// element (install args, package params, credentials). Arguments never pass
// through a shell locally, so only line breaks and NUL are refused.
func ValidateArgValue(value string) error {
	if strings.ContainsAny(value, "\n\r") {
		return fmt.Errorf("%w: value contains a line break", ErrNewlineInjection)
	}
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%w: value contains a null byte", ErrCommandInjection)
	}
	return nil
}

// ValidatePath validates a local file path (report, metrics and identity
// files) and rejects traversal sequences.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyInput
	}

	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: path contains null byte", ErrInvalidPath)
	}

	if containsPathTraversal(path) {
		return fmt.Errorf("%w: %q contains traversal sequence", ErrPathTraversal, path)
	}

	return nil
}

// containsShellMeta checks if a string contains shell metacharacters.
func containsShellMeta(s string) bool {
	for _, char := range shellMetaChars {
		if strings.Contains(s, char) {
			return true
		}
	}
	return false
}

// containsPathTraversal checks for common path traversal patterns.
func containsPathTraversal(path string) bool {
	normalized := filepath.Clean(path)

	for _, seg := range strings.Split(normalized, string(filepath.Separator)) {
		if seg == ".." {
			return true
		}
	}

	return strings.Contains(path, "%2e%2e") || strings.Contains(path, "%2E%2E")
}
