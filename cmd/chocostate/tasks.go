package main

import (
	"fmt"
	"strconv"

	"github.com/felixgeelhaar/chocostate/internal/domain/desired"
	"github.com/felixgeelhaar/chocostate/internal/domain/settings"
	"github.com/felixgeelhaar/chocostate/internal/provider/chocolatey"
	"github.com/spf13/pflag"
)

// taskFlags describes a single task on the command line. It mirrors the
// task file keys.
type taskFlags struct {
	taskFile string

	names        []string
	version      string
	state        string
	architecture string
	pinned       string
	force        bool

	skipScripts        bool
	ignoreDependencies bool
	removeDependencies bool
	allowPrerelease    bool
	allowMultiple      bool

	installArgs   string
	overrideArgs  bool
	packageParams string
	chocoArgs     []string

	source         string
	sourceUsername string
	sourcePassword string
	proxyURL       string
	proxyUsername  string
	proxyPassword  string

	checksum            string
	checksumType        string
	checksum64          string
	checksumType64      string
	ignoreChecksums     bool
	allowEmptyChecksums bool

	timeout             int
	bootstrapScript     string
	bootstrapTLSVersion []string
	skipCertValidation  bool
}

func (f *taskFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.taskFile, "task-file", "f", "", "YAML task file")

	fs.StringSliceVarP(&f.names, "name", "n", nil, "package name (repeatable, or \"all\" with state latest)")
	fs.StringVar(&f.version, "version", "", "exact package version")
	fs.StringVarP(&f.state, "state", "s", "", "absent, present, latest, upgrade, downgrade or reinstalled (default present)")
	fs.StringVar(&f.architecture, "architecture", "", "default or x86")
	fs.StringVar(&f.pinned, "pinned", "", "pin (true) or unpin (false) the package")
	fs.BoolVar(&f.force, "force", false, "force the install, even over a different version")

	fs.BoolVar(&f.skipScripts, "skip-scripts", false, "skip package automation scripts")
	fs.BoolVar(&f.ignoreDependencies, "ignore-dependencies", false, "do not install dependencies")
	fs.BoolVar(&f.removeDependencies, "remove-dependencies", false, "uninstall dependencies too")
	fs.BoolVar(&f.allowPrerelease, "allow-prerelease", false, "allow pre-release versions")
	fs.BoolVar(&f.allowMultiple, "allow-multiple", false, "install versions side by side (choco < 2.0.0)")

	fs.StringVar(&f.installArgs, "install-args", "", "arguments passed to the native installer")
	fs.BoolVar(&f.overrideArgs, "override-args", false, "replace the package's installer arguments with --install-args")
	fs.StringVar(&f.packageParams, "package-params", "", "parameters passed to the package")
	fs.StringArrayVar(&f.chocoArgs, "choco-arg", nil, "extra choco argument (repeatable)")

	fs.StringVar(&f.source, "source", "", "package source name or URL")
	fs.StringVar(&f.sourceUsername, "source-username", "", "source username")
	fs.StringVar(&f.sourcePassword, "source-password", "", "source password")
	fs.StringVar(&f.proxyURL, "proxy-url", "", "proxy URL")
	fs.StringVar(&f.proxyUsername, "proxy-username", "", "proxy username")
	fs.StringVar(&f.proxyPassword, "proxy-password", "", "proxy password")

	fs.StringVar(&f.checksum, "checksum", "", "checksum of the 32-bit installer")
	fs.StringVar(&f.checksumType, "checksum-type", "", "md5, sha1, sha256 or sha512")
	fs.StringVar(&f.checksum64, "checksum64", "", "checksum of the 64-bit installer")
	fs.StringVar(&f.checksumType64, "checksum-type64", "", "md5, sha1, sha256 or sha512")
	fs.BoolVar(&f.ignoreChecksums, "ignore-checksums", false, "do not verify checksums")
	fs.BoolVar(&f.allowEmptyChecksums, "allow-empty-checksums", false, "allow packages without checksums")

	fs.IntVar(&f.timeout, "timeout", 0, "per-command timeout in seconds (default from settings)")
	fs.StringVar(&f.bootstrapScript, "bootstrap-script", "", "URL of the install script used to bootstrap chocolatey")
	fs.StringSliceVar(&f.bootstrapTLSVersion, "bootstrap-tls-version", nil, "TLS versions enabled for the bootstrap download (tls11, tls12, tls13)")
	fs.BoolVar(&f.skipCertValidation, "skip-cert-validation", false, "do not validate certificates during the bootstrap download")
}

// requests resolves the desired state from the task file or the flags.
// The settings' default timeout fills in tasks without one.
func (f *taskFlags) requests(s settings.Settings) ([]desired.Request, error) {
	var reqs []desired.Request

	switch {
	case f.taskFile != "" && len(f.names) > 0:
		return nil, invalidInput(fmt.Errorf("--task-file and --name are mutually exclusive"))
	case f.taskFile != "":
		cfg, err := chocolatey.LoadTaskFile(f.taskFile)
		if err != nil {
			return nil, invalidInput(err)
		}
		reqs = cfg.Tasks
	case len(f.names) > 0:
		req, err := f.request()
		if err != nil {
			return nil, invalidInput(err)
		}
		reqs = []desired.Request{req}
	default:
		return nil, invalidInput(fmt.Errorf("no packages given: pass --task-file or --name"))
	}

	for i := range reqs {
		if reqs[i].Timeout == 0 {
			reqs[i].Timeout = s.DefaultTimeout
		}
	}
	return reqs, nil
}

func (f *taskFlags) request() (desired.Request, error) {
	req := desired.Request{
		Names:               f.names,
		Version:             f.version,
		State:               f.state,
		Architecture:        f.architecture,
		Force:               f.force,
		SkipScripts:         f.skipScripts,
		IgnoreDependencies:  f.ignoreDependencies,
		RemoveDependencies:  f.removeDependencies,
		AllowPrerelease:     f.allowPrerelease,
		AllowMultiple:       f.allowMultiple,
		InstallArgs:         f.installArgs,
		OverrideArgs:        f.overrideArgs,
		PackageParams:       f.packageParams,
		ChocoArgs:           f.chocoArgs,
		ProxyURL:            f.proxyURL,
		ProxyUsername:       f.proxyUsername,
		ProxyPassword:       f.proxyPassword,
		Source:              f.source,
		SourceUsername:      f.sourceUsername,
		SourcePassword:      f.sourcePassword,
		Checksum:            f.checksum,
		ChecksumType:        f.checksumType,
		Checksum64:          f.checksum64,
		ChecksumType64:      f.checksumType64,
		IgnoreChecksums:     f.ignoreChecksums,
		AllowEmptyChecksums: f.allowEmptyChecksums,
		Timeout:             f.timeout,
		BootstrapScript:     f.bootstrapScript,
		BootstrapTLSVersion: f.bootstrapTLSVersion,
	}

	if f.pinned != "" {
		pinned, err := strconv.ParseBool(f.pinned)
		if err != nil {
			return desired.Request{}, fmt.Errorf("--pinned must be true or false, got %q", f.pinned)
		}
		req.Pinned = &pinned
	}
	if f.skipCertValidation {
		validate := false
		req.ValidateCerts = &validate
	}
	return req, nil
}
