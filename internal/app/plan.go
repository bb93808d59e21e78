package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/chocostate/internal/domain/desired"
	"github.com/felixgeelhaar/chocostate/internal/domain/installed"
	"github.com/felixgeelhaar/chocostate/internal/domain/reconcile"
	"github.com/felixgeelhaar/chocostate/internal/ports"
	"github.com/felixgeelhaar/chocostate/internal/provider/chocolatey"
)

// PlanEntry is the planned actions for one package spec. Err is set when the
// spec could not be planned (precondition or probe failure).
type PlanEntry struct {
	Spec    desired.PackageSpec
	Actions []reconcile.Action
	Err     error
}

// PlanResult is the outcome of a dry run.
type PlanResult struct {
	CLIVersion     string
	RuntimeMissing bool
	Entries        []PlanEntry
}

// Summary counts the planned actions across all entries.
func (p PlanResult) Summary() reconcile.Summary {
	var all []reconcile.Action
	for _, e := range p.Entries {
		all = append(all, e.Actions...)
	}
	return reconcile.Summarize(all)
}

// HasErrors reports whether any entry failed to plan.
func (p PlanResult) HasErrors() bool {
	for _, e := range p.Entries {
		if e.Err != nil {
			return true
		}
	}
	return false
}

// HasChanges reports whether applying the plan would modify the host.
func (p PlanResult) HasChanges() bool {
	if p.RuntimeMissing {
		for _, e := range p.Entries {
			if e.Spec.State != desired.StateAbsent {
				return true
			}
		}
	}
	for _, e := range p.Entries {
		if reconcile.HasChanges(e.Actions) {
			return true
		}
	}
	return false
}

// Plan computes the actions Apply would take without executing any of them.
// Specs of the same package are planned against the same probe, so later
// entries do not see the effect of earlier ones.
func (r *Reconciler) Plan(ctx context.Context, reqs []desired.Request) (PlanResult, error) {
	jobs, _, err := prepare(reqs)
	if err != nil {
		return PlanResult{}, err
	}
	ctx = r.withLogger(ctx)

	var result PlanResult
	cli, err := r.prober.CLIVersion(ctx)
	switch {
	case errors.Is(err, chocolatey.ErrRuntimeMissing):
		result.RuntimeMissing = true
	case err != nil:
		return PlanResult{}, fmt.Errorf("failed to detect chocolatey: %w", err)
	default:
		result.CLIVersion = cli
	}

	for _, j := range jobs {
		snap := installed.NewSnapshot(cli, nil, nil, nil)
		var probeErr error
		if !result.RuntimeMissing {
			snap, probeErr = r.prober.Probe(ctx, []string{j.name}, needsOutdated(j.specs), chocolatey.WithPrerelease(anyPrerelease(j.specs)))
			if probeErr != nil {
				r.logger.Warn(ctx, "probe failed", ports.F("package", j.name), ports.Err(probeErr))
			}
		}

		for _, spec := range j.specs {
			if probeErr != nil {
				result.Entries = append(result.Entries, PlanEntry{Spec: spec, Err: probeErr})
				continue
			}
			actions, err := planSpec(spec, snap)
			result.Entries = append(result.Entries, PlanEntry{Spec: spec, Actions: actions, Err: err})
		}
	}

	r.logger.Debug(ctx, "plan computed", ports.F("entries", len(result.Entries)), ports.F("summary", result.Summary().String()))
	return result, nil
}
