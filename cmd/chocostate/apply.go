package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/felixgeelhaar/chocostate/internal/adapters/metrics"
	"github.com/felixgeelhaar/chocostate/internal/adapters/reportfile"
	"github.com/felixgeelhaar/chocostate/internal/domain/execution"
	"github.com/felixgeelhaar/chocostate/internal/render"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Reconcile packages to the declared state",
	Long: `Apply probes the installed packages, plans the minimal set of choco
commands and executes them. Chocolatey is bootstrapped first when it is
missing and a task needs it.

The desired state comes from a task file (--task-file) or from flags
describing a single task (--name and friends).

Exit status: 0 when every package is in the declared state, 1 when any
action failed, 2 when the input is invalid.`,
	Example: `  chocostate apply -f packages.yaml
  chocostate apply --name git --name 7zip --state latest
  chocostate apply --name nodejs --version 20.11.0 --pinned=true --output json`,
	RunE: runApply,
}

var (
	applyTasks       taskFlags
	applyOutput      string
	applyReportFile  string
	applyMetricsFile string
	applyFailFast    bool
	applyConcurrency int
)

func init() {
	rootCmd.AddCommand(applyCmd)

	applyTasks.register(applyCmd.Flags())
	applyCmd.Flags().StringVarP(&applyOutput, "output", "o", "text", "output format (text, json)")
	applyCmd.Flags().StringVar(&applyReportFile, "report-file", "", "save the report as YAML")
	applyCmd.Flags().StringVar(&applyMetricsFile, "metrics-file", "", "write Prometheus metrics in textfile format")
	applyCmd.Flags().BoolVar(&applyFailFast, "fail-fast", false, "skip remaining packages after the first failure")
	applyCmd.Flags().IntVar(&applyConcurrency, "concurrency", 0, "packages reconciled in parallel (default from settings)")
}

func runApply(cmd *cobra.Command, _ []string) error {
	if applyOutput != "text" && applyOutput != "json" {
		return invalidInput(fmt.Errorf("unknown output format %q (want text or json)", applyOutput))
	}

	s, err := loadSettings()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("fail-fast") {
		s.FailFast = applyFailFast
	}
	if applyConcurrency > 0 {
		s.Concurrency = applyConcurrency
	}

	reqs, err := applyTasks.requests(s)
	if err != nil {
		return err
	}

	logger, err := newLogger(s, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	svc, closeService, err := newService(ctx, s, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeService() }()

	report, err := svc.Apply(ctx, reqs)
	if err != nil {
		return err
	}

	if applyReportFile != "" {
		if err := reportfile.NewYAMLRepository().Save(ctx, applyReportFile, execution.ReportToDTO(report, true)); err != nil {
			return err
		}
	}
	if applyMetricsFile != "" {
		rec := metrics.NewRecorder("")
		rec.Observe(report)
		if err := rec.WriteTextfile(applyMetricsFile); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	dto := execution.ReportToDTO(report, verbose)
	if applyOutput == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(dto); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
	} else {
		render.Report(out, dto, renderOptions())
	}

	if report.Failed {
		return errRunFailed
	}
	return nil
}
