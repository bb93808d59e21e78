// Package app orchestrates reconciliation runs: it validates requests,
// bootstraps the package manager when needed, probes, plans and executes
// actions on a bounded worker pool, and aggregates the results.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/chocostate/internal/adapters/logging"
	"github.com/felixgeelhaar/chocostate/internal/domain/desired"
	"github.com/felixgeelhaar/chocostate/internal/domain/execution"
	"github.com/felixgeelhaar/chocostate/internal/domain/installed"
	"github.com/felixgeelhaar/chocostate/internal/domain/reconcile"
	"github.com/felixgeelhaar/chocostate/internal/ports"
	"github.com/felixgeelhaar/chocostate/internal/provider/chocolatey"
	"golang.org/x/sync/errgroup"
)

// Prober reads installed package state.
type Prober interface {
	CLIVersion(ctx context.Context) (string, error)
	Probe(ctx context.Context, names []string, withOutdated bool, opts ...chocolatey.ProbeOption) (*installed.Snapshot, error)
	Invalidate()
}

// Executor carries out a single action.
type Executor interface {
	Execute(ctx context.Context, action reconcile.Action) execution.Result
}

// Bootstrapper installs the package manager runtime.
type Bootstrapper interface {
	EnsureRuntime(ctx context.Context, opts desired.BootstrapOptions) error
}

// Options tunes a Reconciler.
type Options struct {
	// Concurrency is the number of package names reconciled in parallel.
	Concurrency int
	// FailFast skips the remaining packages after the first failure.
	FailFast bool
}

// Reconciler drives desired package state onto a host.
type Reconciler struct {
	prober       Prober
	executor     Executor
	bootstrapper Bootstrapper
	logger       ports.Logger
	opts         Options
	now          func() time.Time

	runMu     sync.Mutex
	lifecycle *lifecycle
}

// NewReconciler creates a Reconciler. A nil logger discards output.
func NewReconciler(prober Prober, executor Executor, bootstrapper Bootstrapper, logger ports.Logger, opts Options) (*Reconciler, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	lc, err := newLifecycle()
	if err != nil {
		return nil, err
	}
	return &Reconciler{
		prober:       prober,
		executor:     executor,
		bootstrapper: bootstrapper,
		logger:       logger,
		opts:         opts,
		now:          time.Now,
		lifecycle:    lc,
	}, nil
}

// State returns the phase of the current or last run.
func (r *Reconciler) State() RunState {
	return r.lifecycle.state()
}

// Runs returns how many runs were started.
func (r *Reconciler) Runs() int {
	return r.lifecycle.count()
}

// job is every spec for one package name, executed sequentially.
type job struct {
	name  string
	specs []desired.PackageSpec
}

// exclusive reports whether the job acts on every installed package.
func (j job) exclusive() bool {
	for _, s := range j.specs {
		if s.IsAll() {
			return true
		}
	}
	return false
}

// Apply reconciles the requests. A *desired.ValidationError is returned
// before anything runs; every other failure is reported in the Report.
func (r *Reconciler) Apply(ctx context.Context, reqs []desired.Request) (execution.Report, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	ctx = r.withLogger(ctx)
	r.lifecycle.send(EventRun)

	jobs, bootstrap, err := prepare(reqs)
	if err != nil {
		r.lifecycle.send(EventInvalid)
		return execution.Report{}, err
	}
	r.lifecycle.send(EventValidated)

	runID := execution.NewRunID()
	start := r.now()
	r.logger.Info(ctx, "reconciliation started", ports.F("run_id", runID), ports.F("packages", len(jobs)))

	var results []execution.Result

	status, pre := r.ensureRuntime(ctx, jobs, bootstrap)
	results = append(results, pre...)
	switch status {
	case runtimeFailed:
		results = append(results, failAll(jobs, execution.ClassProbeFailure, errorOf(pre))...)
		report := execution.Aggregate(runID, start, r.now(), results)
		r.lifecycle.send(EventFail)
		r.logReport(ctx, report)
		return report, nil
	case runtimeAbsent:
		r.lifecycle.send(EventReady)
		results = append(results, nothingInstalled(jobs)...)
	default:
		r.lifecycle.send(EventReady)
		results = append(results, r.runJobs(ctx, jobs)...)
	}

	report := execution.Aggregate(runID, start, r.now(), results)
	if report.Failed {
		r.lifecycle.send(EventFail)
	} else {
		r.lifecycle.send(EventComplete)
	}
	r.logReport(ctx, report)
	return report, nil
}

// prepare validates every request and groups the specs into jobs keyed by
// package name in first-seen order.
func prepare(reqs []desired.Request) ([]job, desired.BootstrapOptions, error) {
	verr := &desired.ValidationError{}
	if len(reqs) == 0 {
		verr.Add("no packages requested")
		return nil, desired.BootstrapOptions{}, verr
	}

	var jobs []job
	index := make(map[string]int)
	var bootstrap desired.BootstrapOptions
	bootstrapSet := false

	for i, req := range reqs {
		specs, err := req.Specs()
		if err != nil {
			var ve *desired.ValidationError
			if errors.As(err, &ve) {
				for _, p := range ve.Problems {
					if len(reqs) > 1 {
						verr.Addf("tasks[%d]: %s", i, p)
					} else {
						verr.Add(p)
					}
				}
				continue
			}
			return nil, desired.BootstrapOptions{}, err
		}

		if !bootstrapSet || requestsRuntime(req) {
			bootstrap = req.Bootstrap()
			bootstrapSet = true
		}

		for _, spec := range specs {
			key := strings.ToLower(spec.Name)
			if idx, ok := index[key]; ok {
				jobs[idx].specs = append(jobs[idx].specs, spec)
				continue
			}
			index[key] = len(jobs)
			jobs = append(jobs, job{name: spec.Name, specs: []desired.PackageSpec{spec}})
		}
	}

	if verr.HasProblems() {
		return nil, desired.BootstrapOptions{}, verr
	}
	return jobs, bootstrap, nil
}

func requestsRuntime(req desired.Request) bool {
	for _, n := range req.Names {
		if strings.EqualFold(n, desired.ChocolateyPackage) {
			return true
		}
	}
	return false
}

type runtimeStatus int

const (
	runtimeReady runtimeStatus = iota
	// runtimeAbsent means choco is missing and only removals were requested.
	runtimeAbsent
	runtimeFailed
)

// ensureRuntime bootstraps choco when it is missing. Results describing the
// bootstrap attempt are returned alongside the status.
func (r *Reconciler) ensureRuntime(ctx context.Context, jobs []job, opts desired.BootstrapOptions) (runtimeStatus, []execution.Result) {
	cli, err := r.prober.CLIVersion(ctx)
	if err == nil {
		r.logger.Debug(ctx, "chocolatey detected", ports.F("version", cli))
		return runtimeReady, nil
	}

	if !errors.Is(err, chocolatey.ErrRuntimeMissing) {
		r.logger.Error(ctx, "chocolatey probe failed", ports.Err(err))
		return runtimeFailed, []execution.Result{runtimeResult(execution.ClassProbeFailure, err)}
	}

	if onlyRemovals(jobs) {
		r.logger.Info(ctx, "chocolatey is not installed; nothing to remove")
		return runtimeAbsent, nil
	}

	r.lifecycle.send(EventBootstrap)
	r.logger.Info(ctx, "chocolatey is not installed; bootstrapping")

	start := r.now()
	if err := r.bootstrapper.EnsureRuntime(ctx, opts); err != nil {
		r.logger.Error(ctx, "bootstrap failed", ports.Err(err))
		return runtimeFailed, []execution.Result{runtimeResult(execution.ClassFailure, err).WithDuration(r.now().Sub(start))}
	}
	r.prober.Invalidate()

	if _, err := r.prober.CLIVersion(ctx); err != nil {
		err = fmt.Errorf("chocolatey still unavailable after bootstrap: %w", err)
		return runtimeFailed, []execution.Result{runtimeResult(execution.ClassProbeFailure, err)}
	}

	return runtimeReady, []execution.Result{runtimeResult(execution.ClassSuccess, nil).WithDuration(r.now().Sub(start))}
}

// runtimeResult records the bootstrap of the package manager itself.
func runtimeResult(class execution.Classification, err error) execution.Result {
	action := reconcile.Action{
		Kind:   reconcile.KindInstall,
		Spec:   desired.PackageSpec{Name: desired.ChocolateyPackage, State: desired.StatePresent},
		Reason: "bootstrap package manager runtime",
	}
	if class == execution.ClassProbeFailure {
		action.Kind = reconcile.KindNoOp
		action.Reason = "package manager unavailable"
	}
	return execution.NewResult(action, class, err)
}

func nothingInstalled(jobs []job) []execution.Result {
	var out []execution.Result
	for _, j := range jobs {
		for _, spec := range j.specs {
			out = append(out, execution.NewResult(noopFor(spec, "not installed"), execution.ClassSuccessNoop, nil))
		}
	}
	return out
}

func onlyRemovals(jobs []job) bool {
	for _, j := range jobs {
		for _, s := range j.specs {
			if s.State != desired.StateAbsent {
				return false
			}
		}
	}
	return true
}

// runJobs executes jobs on the worker pool and returns their results in job
// order. Jobs targeting every installed package run alone once the pool has
// drained, so they never overlap a named package.
func (r *Reconciler) runJobs(ctx context.Context, jobs []job) []execution.Result {
	perJob := make([][]execution.Result, len(jobs))

	var shared, exclusive []int
	for i, j := range jobs {
		if j.exclusive() {
			exclusive = append(exclusive, i)
		} else {
			shared = append(shared, i)
		}
	}

	stopped := r.runPool(ctx, jobs, shared, perJob)

	for _, i := range exclusive {
		switch {
		case ctx.Err() != nil:
			perJob[i] = skipAll(jobs[i], ctx.Err())
		case stopped != nil:
			perJob[i] = skipAll(jobs[i], stopped)
		default:
			perJob[i] = r.runJob(ctx, ctx, jobs[i])
			if r.opts.FailFast && anyFailed(perJob[i]) {
				stopped = fmt.Errorf("%s failed", jobs[i].name)
			}
		}
	}

	var results []execution.Result
	for _, rs := range perJob {
		results = append(results, rs...)
	}
	return results
}

// runPool runs the jobs at the given indexes concurrently. With fail-fast the
// first failing job stops jobs and actions that have not started yet; the
// returned error names it. Commands already running are left to finish.
func (r *Reconciler) runPool(ctx context.Context, jobs []job, indexes []int, perJob [][]execution.Result) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for _, i := range indexes {
		if gctx.Err() != nil {
			perJob[i] = skipAll(jobs[i], gctx.Err())
			continue
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				perJob[i] = skipAll(jobs[i], gctx.Err())
				return nil
			}

			perJob[i] = r.runJob(gctx, ctx, jobs[i])
			if r.opts.FailFast && anyFailed(perJob[i]) {
				return fmt.Errorf("%s failed", jobs[i].name)
			}
			return nil
		})
	}

	return g.Wait()
}

// runJob probes, plans and executes every spec of one package name. gate is
// checked before each probe and action; commands run on ctx, so cancelling
// gate never interrupts a running process.
func (r *Reconciler) runJob(gate, ctx context.Context, j job) []execution.Result {
	logger := r.logger.With(ports.F("package", j.name))
	ctx = ports.ContextWithLogger(ctx, logger)

	var results []execution.Result
	var snap *installed.Snapshot
	stale := true

	for si, spec := range j.specs {
		if gate.Err() != nil {
			for _, rest := range j.specs[si:] {
				results = append(results, skipped(noopFor(rest, "skipped"), gate.Err()))
			}
			break
		}

		if stale {
			var err error
			snap, err = r.prober.Probe(ctx, []string{spec.Name}, needsOutdated(j.specs[si:]), chocolatey.WithPrerelease(anyPrerelease(j.specs[si:])))
			if err != nil {
				logger.Error(ctx, "probe failed", ports.Err(err))
				for _, rest := range j.specs[si:] {
					results = append(results, execution.NewResult(noopFor(rest, "probe failed"), execution.ClassProbeFailure, err))
				}
				break
			}
			stale = false
		}

		actions, err := planSpec(spec, snap)
		if err != nil {
			logger.Warn(ctx, "precondition failed", ports.Err(err))
			results = append(results, execution.NewResult(noopFor(spec, "precondition failed"), execution.ClassPreconditionFailed, err))
			continue
		}

		for ai, action := range actions {
			if gate.Err() != nil {
				for _, rest := range actions[ai:] {
					results = append(results, skipped(rest, gate.Err()))
				}
				break
			}

			res := r.executor.Execute(ctx, action)
			results = append(results, res)
			if action.Kind.Mutates() {
				stale = true
			}
			if res.Failed() {
				for _, rest := range actions[ai+1:] {
					results = append(results, skipped(rest, fmt.Errorf("%s did not succeed", action)))
				}
				break
			}
		}
	}

	return results
}

// planSpec selects the installed instances and available upgrade for a spec
// and runs the planner.
func planSpec(spec desired.PackageSpec, snap *installed.Snapshot) ([]reconcile.Action, error) {
	if spec.IsAll() {
		available := ""
		if snap.HasUpgrades() {
			available = "available"
		}
		return reconcile.Plan(spec, nil, available)
	}
	return reconcile.Plan(spec, snap.Lookup(spec.Name), snap.Available(spec.Name))
}

func needsOutdated(specs []desired.PackageSpec) bool {
	for _, s := range specs {
		if s.State == desired.StateLatest && !s.HasVersion() {
			return true
		}
	}
	return false
}

func anyPrerelease(specs []desired.PackageSpec) bool {
	for _, s := range specs {
		if s.AllowPrerelease {
			return true
		}
	}
	return false
}

func noopFor(spec desired.PackageSpec, reason string) reconcile.Action {
	return reconcile.Action{Kind: reconcile.KindNoOp, Spec: spec, Version: spec.Version, Reason: reason}
}

func skipped(action reconcile.Action, cause error) execution.Result {
	err := execution.ErrSkipped
	if cause != nil {
		err = fmt.Errorf("%w: %w", execution.ErrSkipped, cause)
	}
	return execution.NewResult(action, execution.ClassSkipped, err)
}

func skipAll(j job, cause error) []execution.Result {
	out := make([]execution.Result, 0, len(j.specs))
	for _, spec := range j.specs {
		out = append(out, skipped(noopFor(spec, "skipped"), cause))
	}
	return out
}

func failAll(jobs []job, class execution.Classification, err error) []execution.Result {
	var out []execution.Result
	for _, j := range jobs {
		for _, spec := range j.specs {
			out = append(out, execution.NewResult(noopFor(spec, "package manager unavailable"), class, err))
		}
	}
	return out
}

func anyFailed(results []execution.Result) bool {
	for _, res := range results {
		if res.Failed() {
			return true
		}
	}
	return false
}

func errorOf(results []execution.Result) error {
	for _, res := range results {
		if res.Error() != nil {
			return res.Error()
		}
	}
	return chocolatey.ErrRuntimeMissing
}

func (r *Reconciler) withLogger(ctx context.Context) context.Context {
	return ports.ContextWithLogger(ctx, r.logger)
}

func (r *Reconciler) logReport(ctx context.Context, report execution.Report) {
	fields := []ports.Field{
		ports.F("run_id", report.RunID),
		ports.F("changed", report.Changed),
		ports.F("failed", report.Failed),
		ports.F("results", len(report.Results)),
		ports.F("duration", report.Duration().Round(time.Millisecond).String()),
	}
	if report.Failed {
		r.logger.Warn(ctx, "reconciliation finished with failures", fields...)
		return
	}
	r.logger.Info(ctx, "reconciliation finished", fields...)
}
