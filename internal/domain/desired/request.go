package desired

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/chocostate/internal/validation"
	"github.com/go-playground/validator/v10"
)

// Request is the invocation surface shared by the task file, the CLI and
// the MCP tools. Field names match the task-file keys.
type Request struct {
	Names               []string `yaml:"name" json:"name" validate:"required,min=1,dive,required"`
	Version             string   `yaml:"version,omitempty" json:"version,omitempty"`
	State               string   `yaml:"state,omitempty" json:"state,omitempty" validate:"omitempty,oneof=absent present latest upgrade downgrade reinstalled"`
	Architecture        string   `yaml:"architecture,omitempty" json:"architecture,omitempty" validate:"omitempty,oneof=default x86"`
	Pinned              *bool    `yaml:"pinned,omitempty" json:"pinned,omitempty"`
	Force               bool     `yaml:"force,omitempty" json:"force,omitempty"`
	SkipScripts         bool     `yaml:"skip_scripts,omitempty" json:"skip_scripts,omitempty"`
	IgnoreDependencies  bool     `yaml:"ignore_dependencies,omitempty" json:"ignore_dependencies,omitempty"`
	RemoveDependencies  bool     `yaml:"remove_dependencies,omitempty" json:"remove_dependencies,omitempty"`
	AllowPrerelease     bool     `yaml:"allow_prerelease,omitempty" json:"allow_prerelease,omitempty"`
	AllowMultiple       bool     `yaml:"allow_multiple,omitempty" json:"allow_multiple,omitempty"`
	InstallArgs         string   `yaml:"install_args,omitempty" json:"install_args,omitempty"`
	OverrideArgs        bool     `yaml:"override_args,omitempty" json:"override_args,omitempty"`
	PackageParams       string   `yaml:"package_params,omitempty" json:"package_params,omitempty"`
	ChocoArgs           []string `yaml:"choco_args,omitempty" json:"choco_args,omitempty"`
	ProxyURL            string   `yaml:"proxy_url,omitempty" json:"proxy_url,omitempty" validate:"omitempty,http_url"`
	ProxyUsername       string   `yaml:"proxy_username,omitempty" json:"proxy_username,omitempty"`
	ProxyPassword       string   `yaml:"proxy_password,omitempty" json:"proxy_password,omitempty" validate:"required_with=ProxyUsername"`
	Source              string   `yaml:"source,omitempty" json:"source,omitempty"`
	SourceUsername      string   `yaml:"source_username,omitempty" json:"source_username,omitempty"`
	SourcePassword      string   `yaml:"source_password,omitempty" json:"source_password,omitempty" validate:"required_with=SourceUsername"`
	Checksum            string   `yaml:"checksum,omitempty" json:"checksum,omitempty"`
	ChecksumType        string   `yaml:"checksum_type,omitempty" json:"checksum_type,omitempty" validate:"omitempty,oneof=md5 sha1 sha256 sha512"`
	Checksum64          string   `yaml:"checksum64,omitempty" json:"checksum64,omitempty"`
	ChecksumType64      string   `yaml:"checksum_type64,omitempty" json:"checksum_type64,omitempty" validate:"omitempty,oneof=md5 sha1 sha256 sha512"`
	IgnoreChecksums     bool     `yaml:"ignore_checksums,omitempty" json:"ignore_checksums,omitempty"`
	AllowEmptyChecksums bool     `yaml:"allow_empty_checksums,omitempty" json:"allow_empty_checksums,omitempty"`
	Timeout             int      `yaml:"timeout,omitempty" json:"timeout,omitempty" validate:"gte=0"`
	ValidateCerts       *bool    `yaml:"validate_certs,omitempty" json:"validate_certs,omitempty"`
	BootstrapScript     string   `yaml:"bootstrap_script,omitempty" json:"bootstrap_script,omitempty" validate:"omitempty,http_url"`
	BootstrapTLSVersion []string `yaml:"bootstrap_tls_version,omitempty" json:"bootstrap_tls_version,omitempty" validate:"dive,oneof=tls11 tls12 tls13"`
}

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})

		_ = v.RegisterValidation("http_url", func(fl validator.FieldLevel) bool {
			return validation.ValidateURL(fl.Field().String()) == nil
		})

		validateInst = v
	})

	return validateInst
}

// Validate checks the request without consulting installed state. All
// problems are reported together in a *ValidationError.
func (r *Request) Validate() error {
	verr := &ValidationError{}

	if err := validatorInstance().Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			verr.Add(describeFieldError(fe))
		}
	}

	hasAll := false
	for _, name := range r.Names {
		if name == "" {
			continue
		}
		if strings.EqualFold(name, AllPackages) {
			hasAll = true
			continue
		}
		if err := validation.ValidateChocoPackage(name); err != nil {
			verr.Addf("name %q: %v", name, err)
		}
	}

	state, stateErr := ParseState(r.State)
	if stateErr == nil {
		if hasAll {
			if len(r.Names) > 1 {
				verr.Add(`name "all" cannot be combined with other package names`)
			}
			if state != StateLatest && state != StatePresent {
				verr.Addf(`name "all" is only supported with state latest or upgrade, not %s`, r.State)
			}
		}
		if state == StateDowngrade && r.Version == "" {
			verr.Add("state downgrade requires a version")
		}
	}

	if r.Version != "" {
		if err := validation.ValidateVersion(r.Version); err != nil {
			verr.Addf("version: %v", err)
		}
	}

	if r.Source != "" {
		if err := validation.ValidateChocoSource(r.Source); err != nil {
			verr.Addf("source: %v", err)
		}
	}

	freeform := map[string]string{
		"install_args":    r.InstallArgs,
		"package_params":  r.PackageParams,
		"proxy_username":  r.ProxyUsername,
		"proxy_password":  r.ProxyPassword,
		"source_username": r.SourceUsername,
		"source_password": r.SourcePassword,
		"checksum":        r.Checksum,
		"checksum64":      r.Checksum64,
	}
	for _, key := range sortedKeys(freeform) {
		if err := validation.ValidateArgValue(freeform[key]); err != nil {
			verr.Addf("%s: %v", key, err)
		}
	}
	for i, arg := range r.ChocoArgs {
		if err := validation.ValidateArgValue(arg); err != nil {
			verr.Addf("choco_args[%d]: %v", i, err)
		}
	}

	return verr.errOrNil()
}

// Specs validates the request and expands it into one PackageSpec per name,
// in request order.
func (r *Request) Specs() ([]PackageSpec, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	state, _ := ParseState(r.State)
	arch, _ := ParseArchitecture(r.Architecture)

	timeout := DefaultTimeout
	if r.Timeout > 0 {
		timeout = time.Duration(r.Timeout) * time.Second
	}

	pin := ParsePin(r.Pinned)
	force := r.Force
	if state == StateAbsent {
		pin = PinUntouched
		force = false
	}

	specs := make([]PackageSpec, 0, len(r.Names))
	for _, name := range r.Names {
		specs = append(specs, PackageSpec{
			Name:               name,
			Version:            r.Version,
			State:              state,
			Architecture:       arch,
			Pin:                pin,
			Force:              force,
			SkipScripts:        r.SkipScripts,
			IgnoreDependencies: r.IgnoreDependencies,
			RemoveDependencies: r.RemoveDependencies,
			AllowPrerelease:    r.AllowPrerelease,
			AllowMultiple:      r.AllowMultiple,
			InstallArgs:        r.InstallArgs,
			OverrideArgs:       r.OverrideArgs,
			PackageParams:      r.PackageParams,
			ChocoArgs:          append([]string(nil), r.ChocoArgs...),
			Checksums: Checksums{
				Checksum:       r.Checksum,
				ChecksumType:   r.ChecksumType,
				Checksum64:     r.Checksum64,
				ChecksumType64: r.ChecksumType64,
				Ignore:         r.IgnoreChecksums,
				AllowEmpty:     r.AllowEmptyChecksums,
			},
			Source: Source{
				Location:    r.Source,
				Credentials: Credentials{Username: r.SourceUsername, Password: r.SourcePassword},
			},
			Proxy: Proxy{
				URL:         r.ProxyURL,
				Credentials: Credentials{Username: r.ProxyUsername, Password: r.ProxyPassword},
			},
			Timeout: timeout,
		})
	}

	return specs, nil
}

// Bootstrap returns the options used when the package manager runtime has
// to be installed. A version requested for the chocolatey package itself
// selects the runtime version.
func (r *Request) Bootstrap() BootstrapOptions {
	opts := BootstrapOptions{
		Script:        r.BootstrapScript,
		Source:        r.Source,
		ValidateCerts: r.ValidateCerts == nil || *r.ValidateCerts,
		Proxy: Proxy{
			URL:         r.ProxyURL,
			Credentials: Credentials{Username: r.ProxyUsername, Password: r.ProxyPassword},
		},
	}

	for _, v := range r.BootstrapTLSVersion {
		opts.TLSVersions = append(opts.TLSVersions, TLSVersion(strings.ToLower(v)))
	}
	if len(opts.TLSVersions) == 0 {
		opts.TLSVersions = append(opts.TLSVersions, DefaultTLSVersions...)
	}

	for _, name := range r.Names {
		if strings.EqualFold(name, ChocolateyPackage) {
			opts.ChocolateyVersion = r.Version
		}
	}

	return opts
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.String {
			return field + " must not be empty"
		}
		return field + " is required"
	case "min":
		return field + " must list at least one package"
	case "required_with":
		return field + " is required when " + strings.ToLower(fieldToKey(fe.Param())) + " is set"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "gte":
		return field + " must not be negative"
	case "http_url":
		return field + " must be an http or https URL"
	default:
		return field + " failed validation for tag '" + fe.Tag() + "'"
	}
}

// fieldToKey converts a Go field name (ProxyUsername) to its key (proxy_username).
func fieldToKey(goName string) string {
	var b strings.Builder
	for i, r := range goName {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
