package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/felixgeelhaar/chocostate/internal/app"
	"github.com/felixgeelhaar/chocostate/internal/domain/execution"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Options tunes text output.
type Options struct {
	// Verbose includes the executed command and captured output.
	Verbose bool
	Styles  Styles
}

// Label turns an identifier such as "reboot_required" into "Reboot Required".
func Label(id string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(id, "_", " "))
}

// Report writes a run report.
func Report(w io.Writer, r execution.ReportDTO, opts Options) {
	s := opts.Styles

	fmt.Fprintln(w, s.Title.Render("Reconciliation "+r.RunID))
	for _, res := range r.Results {
		line := fmt.Sprintf("  %s %s %s", outcomeStyle(s, res.Outcome).Render(marker(res.Outcome)), s.Package.Render(res.Package), Label(res.Action))
		if res.Version != "" {
			line += " " + res.Version
		}
		line += " " + s.Muted.Render("("+Label(res.Class)+")")
		fmt.Fprintln(w, line)

		if res.Error != "" {
			fmt.Fprintln(w, "      "+s.Failed.Render(res.Error))
		}
		if opts.Verbose {
			if res.Command != "" {
				fmt.Fprintln(w, s.Output.Render(fmt.Sprintf("$ %s (rc %d, %s)", res.Command, res.ExitCode, time.Duration(res.DurationMS)*time.Millisecond)))
			}
			if out := strings.TrimSpace(res.Stdout); out != "" {
				fmt.Fprintln(w, s.Output.Render(out))
			}
			if errOut := strings.TrimSpace(res.Stderr); errOut != "" {
				fmt.Fprintln(w, s.Output.Render(errOut))
			}
		}
	}

	fmt.Fprintln(w)
	summary := fmt.Sprintf("%d changed, %d unchanged, %d failed, %d skipped in %s",
		r.Counts.Changed, r.Counts.Unchanged, r.Counts.Failed, r.Counts.Skipped,
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	switch {
	case r.Failed:
		fmt.Fprintln(w, s.Failed.Render(summary))
	case r.Changed:
		fmt.Fprintln(w, s.Changed.Render(summary))
	default:
		fmt.Fprintln(w, s.Unchanged.Render(summary))
	}
	if r.RebootRequired {
		fmt.Fprintln(w, s.Warning.Render("A reboot is required to complete the changes."))
	}
}

// Plan writes a dry-run plan.
func Plan(w io.Writer, p app.PlanResult, opts Options) {
	s := opts.Styles

	header := "Plan"
	if p.CLIVersion != "" {
		header += " (chocolatey " + p.CLIVersion + ")"
	}
	fmt.Fprintln(w, s.Title.Render(header))
	if p.RuntimeMissing {
		fmt.Fprintln(w, s.Warning.Render("  chocolatey is not installed and will be bootstrapped"))
	}

	for _, e := range p.Entries {
		if e.Err != nil {
			fmt.Fprintf(w, "  %s %s %s\n", s.Failed.Render("✗"), s.Package.Render(e.Spec.Name), s.Failed.Render(e.Err.Error()))
			continue
		}
		for _, a := range e.Actions {
			style := s.Unchanged
			mark := "·"
			if a.Kind.Mutates() {
				style = s.Changed
				mark = "+"
			}
			line := fmt.Sprintf("  %s %s %s", style.Render(mark), s.Package.Render(a.Package()), Label(string(a.Kind)))
			if a.Version != "" {
				line += " " + a.Version
			}
			if a.Reason != "" {
				line += " " + s.Muted.Render("("+a.Reason+")")
			}
			fmt.Fprintln(w, line)
		}
	}

	fmt.Fprintln(w)
	summary := p.Summary()
	fmt.Fprintln(w, s.Muted.Render(summary.String()))
}

func marker(outcome string) string {
	switch execution.Outcome(outcome) {
	case execution.OutcomeChanged:
		return "✓"
	case execution.OutcomeFailed:
		return "✗"
	case execution.OutcomeSkipped:
		return "-"
	default:
		return "·"
	}
}

func outcomeStyle(s Styles, outcome string) lipgloss.Style {
	switch execution.Outcome(outcome) {
	case execution.OutcomeChanged:
		return s.Changed
	case execution.OutcomeFailed:
		return s.Failed
	case execution.OutcomeSkipped:
		return s.Skipped
	default:
		return s.Unchanged
	}
}
