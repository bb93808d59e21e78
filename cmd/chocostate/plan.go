package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/chocostate/internal/render"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the choco commands apply would run",
	Long: `Plan validates the tasks, probes the installed packages and prints the
actions apply would take. Nothing is installed, upgraded or removed.`,
	Example: `  chocostate plan -f packages.yaml
  chocostate plan --name all --state latest`,
	RunE: runPlan,
}

var (
	planTasks  taskFlags
	planOutput string
)

// planEntryJSON is the JSON form of one planned action.
type planEntryJSON struct {
	Package string `json:"package"`
	Action  string `json:"action,omitempty"`
	Version string `json:"version,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

type planJSON struct {
	CLIVersion     string          `json:"cli_version,omitempty"`
	RuntimeMissing bool            `json:"runtime_missing"`
	HasChanges     bool            `json:"has_changes"`
	Entries        []planEntryJSON `json:"entries"`
}

func init() {
	rootCmd.AddCommand(planCmd)

	planTasks.register(planCmd.Flags())
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "text", "output format (text, json)")
}

func runPlan(cmd *cobra.Command, _ []string) error {
	if planOutput != "text" && planOutput != "json" {
		return invalidInput(fmt.Errorf("unknown output format %q (want text or json)", planOutput))
	}

	s, err := loadSettings()
	if err != nil {
		return err
	}
	reqs, err := planTasks.requests(s)
	if err != nil {
		return err
	}
	logger, err := newLogger(s, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := context.Background()
	svc, closeService, err := newService(ctx, s, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeService() }()

	plan, err := svc.Plan(ctx, reqs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if planOutput == "text" {
		render.Plan(out, plan, renderOptions())
	} else {
		doc := planJSON{
			CLIVersion:     plan.CLIVersion,
			RuntimeMissing: plan.RuntimeMissing,
			HasChanges:     plan.HasChanges(),
			Entries:        make([]planEntryJSON, 0, len(plan.Entries)),
		}
		for _, e := range plan.Entries {
			if e.Err != nil {
				doc.Entries = append(doc.Entries, planEntryJSON{Package: e.Spec.Name, Error: e.Err.Error()})
				continue
			}
			for _, a := range e.Actions {
				doc.Entries = append(doc.Entries, planEntryJSON{
					Package: a.Package(),
					Action:  string(a.Kind),
					Version: a.Version,
					Reason:  a.Reason,
				})
			}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
	}

	if plan.HasErrors() {
		return errRunFailed
	}
	return nil
}
