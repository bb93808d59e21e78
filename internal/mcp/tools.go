// Package mcp exposes reconciliation over the Model Context Protocol.
package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/chocostate/internal/adapters/reportfile"
	"github.com/felixgeelhaar/chocostate/internal/app"
	"github.com/felixgeelhaar/chocostate/internal/domain/desired"
	"github.com/felixgeelhaar/chocostate/internal/domain/execution"
	"github.com/felixgeelhaar/chocostate/internal/provider/chocolatey"
	"github.com/felixgeelhaar/mcp-go"
)

// Reconciler is the application service behind the tools.
type Reconciler interface {
	Plan(ctx context.Context, reqs []desired.Request) (app.PlanResult, error)
	Apply(ctx context.Context, reqs []desired.Request) (execution.Report, error)
	State() app.RunState
	Runs() int
}

// TasksInput selects the desired state: inline tasks, a task file, or the
// server's default task file.
type TasksInput struct {
	TaskFile string                   `json:"task_file,omitempty" jsonschema:"description=Path to a task file (default: the server's task file)"`
	Tasks    []map[string]interface{} `json:"tasks,omitempty" jsonschema:"description=Inline tasks using the task file keys (name, version, state, pinned, ...)"`
}

// PlanInput is the input for the chocostate_plan tool.
type PlanInput struct {
	TasksInput
}

// PlanOutput is the output for the chocostate_plan tool.
type PlanOutput struct {
	CLIVersion     string      `json:"cli_version,omitempty"`
	RuntimeMissing bool        `json:"runtime_missing"`
	HasChanges     bool        `json:"has_changes"`
	Summary        PlanSummary `json:"summary"`
	Entries        []PlanStep  `json:"entries"`
}

// PlanSummary contains plan statistics.
type PlanSummary struct {
	Total   int `json:"total"`
	Changes int `json:"changes"`
	Errors  int `json:"errors"`
}

// PlanStep is one planned action, or a spec that could not be planned.
type PlanStep struct {
	Package string `json:"package"`
	State   string `json:"state"`
	Action  string `json:"action,omitempty"`
	Version string `json:"version,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ApplyInput is the input for the chocostate_apply tool.
type ApplyInput struct {
	TasksInput
	Confirm bool `json:"confirm" jsonschema:"required,description=Must be true to change the host (safety confirmation)"`
}

// ApplyOutput is the output for the chocostate_apply tool.
type ApplyOutput struct {
	Applied bool                 `json:"applied"`
	Message string               `json:"message,omitempty"`
	Report  *execution.ReportDTO `json:"report,omitempty"`
}

// ReportInput is the input for the chocostate_report tool.
type ReportInput struct {
	Path string `json:"path,omitempty" jsonschema:"description=Path to a saved report (default: the server's report file)"`
}

// StatusInput is the input for the chocostate_status tool.
type StatusInput struct{}

// StatusOutput is the output for the chocostate_status tool.
type StatusOutput struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	State     string `json:"state"`
	Runs      int    `json:"runs"`
	TaskFile  string `json:"task_file,omitempty"`
}

// VersionInfo contains version metadata for the MCP server.
type VersionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// Defaults are the server-side fallbacks for tool inputs.
type Defaults struct {
	TaskFile   string
	ReportFile string
}

// RegisterAll registers all MCP tools with the server.
func RegisterAll(srv *mcp.Server, rec Reconciler, defaults Defaults, versionInfo VersionInfo) {
	registerPlanTool(srv, rec, defaults)
	registerApplyTool(srv, rec, defaults)
	registerReportTool(srv, defaults)
	registerStatusTool(srv, rec, defaults, versionInfo)
}

func registerPlanTool(srv *mcp.Server, rec Reconciler, defaults Defaults) {
	srv.Tool("chocostate_plan").
		Description("Show which choco commands a reconciliation would run. Probes installed packages without changing anything.").
		ReadOnly().
		Handler(func(ctx context.Context, in PlanInput) (*PlanOutput, error) {
			if err := ValidateTasksInput(&in.TasksInput); err != nil {
				return nil, err
			}
			reqs, err := loadTasks(in.TasksInput, defaults)
			if err != nil {
				return nil, err
			}

			plan, err := rec.Plan(ctx, reqs)
			if err != nil {
				return nil, err
			}
			return toPlanOutput(plan), nil
		})
}

func registerApplyTool(srv *mcp.Server, rec Reconciler, defaults Defaults) {
	srv.Tool("chocostate_apply").
		Description("Install, upgrade, pin or remove Chocolatey packages to match the tasks. REQUIRES confirm=true.").
		Destructive().
		Handler(func(ctx context.Context, in ApplyInput) (*ApplyOutput, error) {
			if !in.Confirm {
				return &ApplyOutput{Message: "confirm must be true to apply changes"}, nil
			}
			if err := ValidateTasksInput(&in.TasksInput); err != nil {
				return nil, err
			}
			reqs, err := loadTasks(in.TasksInput, defaults)
			if err != nil {
				return nil, err
			}

			report, err := rec.Apply(ctx, reqs)
			if err != nil {
				return nil, err
			}

			dto := execution.ReportToDTO(report, false)
			if defaults.ReportFile != "" {
				if err := reportfile.NewYAMLRepository().Save(ctx, defaults.ReportFile, execution.ReportToDTO(report, true)); err != nil {
					return nil, err
				}
			}
			return &ApplyOutput{Applied: true, Report: &dto}, nil
		})
}

func registerReportTool(srv *mcp.Server, defaults Defaults) {
	srv.Tool("chocostate_report").
		Description("Read the report saved by the last reconciliation run.").
		ReadOnly().
		Handler(func(ctx context.Context, in ReportInput) (*execution.ReportDTO, error) {
			path := in.Path
			if path == "" {
				path = defaults.ReportFile
			}
			if err := ValidateReportInput(path); err != nil {
				return nil, err
			}

			dto, err := reportfile.NewYAMLRepository().Load(ctx, path)
			if err != nil {
				return nil, err
			}
			return &dto, nil
		})
}

func registerStatusTool(srv *mcp.Server, rec Reconciler, defaults Defaults, versionInfo VersionInfo) {
	srv.Tool("chocostate_status").
		Description("Get version info and the state of the current or last reconciliation run.").
		ReadOnly().
		Handler(func(_ context.Context, _ StatusInput) (*StatusOutput, error) {
			return &StatusOutput{
				Version:   versionInfo.Version,
				Commit:    versionInfo.Commit,
				BuildDate: versionInfo.BuildDate,
				State:     string(rec.State()),
				Runs:      rec.Runs(),
				TaskFile:  defaults.TaskFile,
			}, nil
		})
}

// loadTasks resolves the desired state for a tool call. Inline tasks take
// precedence over a task file.
func loadTasks(in TasksInput, defaults Defaults) ([]desired.Request, error) {
	if len(in.Tasks) > 0 {
		tasks := make([]interface{}, len(in.Tasks))
		for i, t := range in.Tasks {
			tasks[i] = t
		}
		cfg, err := chocolatey.ParseConfig(map[string]interface{}{"tasks": tasks})
		if err != nil {
			return nil, err
		}
		return cfg.Tasks, nil
	}

	path := in.TaskFile
	if path == "" {
		path = defaults.TaskFile
	}
	if path == "" {
		return nil, fmt.Errorf("no tasks given and no default task file configured")
	}

	cfg, err := chocolatey.LoadTaskFile(path)
	if err != nil {
		return nil, err
	}
	return cfg.Tasks, nil
}

func toPlanOutput(plan app.PlanResult) *PlanOutput {
	summary := plan.Summary()
	out := &PlanOutput{
		CLIVersion:     plan.CLIVersion,
		RuntimeMissing: plan.RuntimeMissing,
		HasChanges:     plan.HasChanges(),
		Summary: PlanSummary{
			Total:   summary.Total,
			Changes: summary.Changes,
		},
		Entries: make([]PlanStep, 0, len(plan.Entries)),
	}

	for _, entry := range plan.Entries {
		if entry.Err != nil {
			out.Summary.Errors++
			out.Entries = append(out.Entries, PlanStep{
				Package: entry.Spec.Name,
				State:   string(entry.Spec.State),
				Error:   entry.Err.Error(),
			})
			continue
		}
		for _, a := range entry.Actions {
			out.Entries = append(out.Entries, PlanStep{
				Package: a.Package(),
				State:   string(entry.Spec.State),
				Action:  string(a.Kind),
				Version: a.Version,
				Reason:  a.Reason,
			})
		}
	}

	return out
}
