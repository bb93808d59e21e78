package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/felixgeelhaar/chocostate/internal/domain/desired"
	"github.com/felixgeelhaar/chocostate/internal/domain/reconcile"
	"github.com/felixgeelhaar/chocostate/internal/provider/chocolatey"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	settingsFile string
	logLevel     string
	logFormat    string
	verbose      bool
	noColor      bool
)

// errRunFailed is returned when a reconciliation finished with failures.
var errRunFailed = errors.New("reconciliation finished with failures")

var rootCmd = &cobra.Command{
	Use:   "chocostate",
	Short: "Declarative Chocolatey package reconciler",
	Long: `chocostate drives the Chocolatey packages on a Windows host to a declared
state. Each run probes what is installed, plans the minimal set of choco
commands and executes only those:
  Validate → Probe → Plan → Execute → Report`,
	SilenceErrors: true, // We handle error formatting ourselves
	SilenceUsage:  true, // Don't show usage on error
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "settings file (.toml, .yaml or .ini)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show executed commands and their output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	registerFlagCompletions()

	rootCmd.AddCommand(versionCmd)
}

// exitCode maps an error to the process exit status: 2 for invalid input,
// 1 for everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, desired.ErrInvalidRequest), errors.Is(err, errInvalidInput):
		return 2
	default:
		return 1
	}
}

// errInvalidInput marks task file and flag problems.
var errInvalidInput = errors.New("invalid input")

func invalidInput(err error) error {
	return fmt.Errorf("%w: %w", errInvalidInput, err)
}

// formatError returns a user-friendly error message.
// With verbose=false: shows only the user message and suggestion.
// With verbose=true: also shows the underlying technical error.
func formatError(err error) string {
	var verr *desired.ValidationError
	if errors.As(err, &verr) {
		var b strings.Builder
		b.WriteString("invalid request:")
		for _, p := range verr.Problems {
			b.WriteString("\n  - " + p)
		}
		return b.String()
	}

	var perr *reconcile.PreconditionError
	if errors.As(err, &perr) {
		return perr.Error() + "\n\nSuggestion: use state latest or downgrade, or set force"
	}

	if errors.Is(err, chocolatey.ErrTaskFileNotFound) {
		msg := "task file not found"
		if verbose {
			msg += fmt.Sprintf("\n\nTechnical details: %v", err)
		}
		return msg + "\n\nSuggestion: pass --task-file or --name"
	}

	if errors.Is(err, chocolatey.ErrRuntimeMissing) {
		return "chocolatey is not installed on the target host"
	}

	return strings.TrimPrefix(err.Error(), errInvalidInput.Error()+": ")
}

// printError prints an error message to stderr with proper formatting.
func printError(err error) {
	printErrorTo(os.Stderr, err)
}

// printErrorTo prints an error message to the given writer.
func printErrorTo(w io.Writer, err error) {
	if errors.Is(err, errRunFailed) {
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %s\n", formatError(err))
}

// registerFlagCompletions sets up custom completions for global flags.
func registerFlagCompletions() {
	_ = rootCmd.RegisterFlagCompletionFunc("settings", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"toml", "yaml", "yml", "ini"}, cobra.ShellCompDirectiveFilterFileExt
	})

	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"console\tHuman readable log lines",
			"json\tNewline-delimited JSON",
		}, cobra.ShellCompDirectiveNoFileComp
	})
}
