package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/felixgeelhaar/chocostate/internal/adapters/command"
	"github.com/felixgeelhaar/chocostate/internal/adapters/logging"
	"github.com/felixgeelhaar/chocostate/internal/app"
	"github.com/felixgeelhaar/chocostate/internal/domain/settings"
	mcptools "github.com/felixgeelhaar/chocostate/internal/mcp"
	"github.com/felixgeelhaar/chocostate/internal/ports"
	"github.com/felixgeelhaar/chocostate/internal/provider/chocolatey"
	"github.com/felixgeelhaar/chocostate/internal/render"
)

// service is the application surface the commands drive.
type service = mcptools.Reconciler

// newService builds the reconciler for the given settings. The returned
// close function releases the command runner.
var newService = func(ctx context.Context, s settings.Settings, logger ports.Logger) (service, func() error, error) {
	runner, closeRunner, err := newRunner(ctx, s)
	if err != nil {
		return nil, nil, err
	}

	table, err := s.ExitCodeTable()
	if err != nil {
		_ = closeRunner()
		return nil, nil, err
	}

	prober := chocolatey.NewProber(runner, s.ChocoCommand)
	executor := chocolatey.NewExecutor(runner, prober,
		chocolatey.WithCommand(s.ChocoCommand),
		chocolatey.WithExitCodes(table),
		chocolatey.WithDefaultTimeout(s.Timeout()),
	)
	bootstrapper := chocolatey.NewBootstrapper(runner, s.PowerShellCommand)

	rec, err := app.NewReconciler(prober, executor, bootstrapper, logger, app.Options{
		Concurrency: s.Concurrency,
		FailFast:    s.FailFast,
	})
	if err != nil {
		_ = closeRunner()
		return nil, nil, err
	}
	return rec, closeRunner, nil
}

// newRunner returns the local runner, or an SSH runner when the settings
// name a remote host.
func newRunner(ctx context.Context, s settings.Settings) (ports.CommandRunner, func() error, error) {
	if !s.SSH.Enabled() {
		return command.NewRealRunner(), func() error { return nil }, nil
	}

	runner, err := command.DialSSH(ctx, command.SSHConfig{
		Host:           s.SSH.Host,
		Port:           s.SSH.Port,
		User:           s.SSH.User,
		IdentityFile:   s.SSH.IdentityFile,
		Password:       os.Getenv("CHOCOSTATE_SSH_PASSWORD"),
		KnownHostsKey:  s.SSH.KnownHostsKey,
		ConnectTimeout: time.Duration(s.SSH.ConnectTimeout) * time.Second,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", s.SSH.Host, err)
	}
	return runner, runner.Close, nil
}

// loadSettings reads the settings file, if any, and applies the global
// flag overrides.
func loadSettings() (settings.Settings, error) {
	s := settings.Default()
	if settingsFile != "" {
		loaded, err := settings.Load(settingsFile)
		if err != nil {
			return settings.Settings{}, invalidInput(err)
		}
		s = loaded
	}

	if logLevel != "" {
		s.LogLevel = logLevel
	}
	if logFormat != "" {
		s.LogFormat = logFormat
	}
	if verbose && logLevel == "" {
		s.LogLevel = "debug"
	}

	if err := s.Validate(); err != nil {
		return settings.Settings{}, invalidInput(err)
	}
	return s, nil
}

// newLogger builds the zerolog logger for s, writing to w.
func newLogger(s settings.Settings, w io.Writer) (ports.Logger, error) {
	level, ok := ports.ParseLevel(s.LogLevel)
	if !ok {
		return nil, invalidInput(fmt.Errorf("unknown log level %q", s.LogLevel))
	}
	return logging.NewZerologLogger(logging.Options{
		Level:   level,
		JSON:    s.LogFormat == "json",
		Writer:  w,
		NoColor: noColor,
	}), nil
}

func renderOptions() render.Options {
	styles := render.DefaultStyles()
	if noColor {
		styles = render.PlainStyles()
	}
	return render.Options{Verbose: verbose, Styles: styles}
}
