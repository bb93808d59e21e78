package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/chocostate/internal/app"
	"github.com/felixgeelhaar/chocostate/internal/domain/desired"
	"github.com/felixgeelhaar/chocostate/internal/domain/execution"
	"github.com/felixgeelhaar/chocostate/internal/domain/reconcile"
	"github.com/felixgeelhaar/chocostate/internal/domain/settings"
	"github.com/felixgeelhaar/chocostate/internal/ports"
	"github.com/spf13/cobra"
)

type fakeService struct {
	plan     app.PlanResult
	planErr  error
	report   execution.Report
	applyErr error

	gotReqs     []desired.Request
	gotSettings settings.Settings
}

func (f *fakeService) Plan(_ context.Context, reqs []desired.Request) (app.PlanResult, error) {
	f.gotReqs = reqs
	return f.plan, f.planErr
}

func (f *fakeService) Apply(_ context.Context, reqs []desired.Request) (execution.Report, error) {
	f.gotReqs = reqs
	return f.report, f.applyErr
}

func (f *fakeService) State() app.RunState { return app.StateIdle }

func (f *fakeService) Runs() int { return 0 }

// overrideNewService swaps the service factory for fake and returns a
// restore function.
func overrideNewService(fake *fakeService) func() {
	orig := newService
	newService = func(_ context.Context, s settings.Settings, _ ports.Logger) (service, func() error, error) {
		fake.gotSettings = s
		return fake, func() error { return nil }, nil
	}
	return func() { newService = orig }
}

// failingService makes the factory itself fail.
func failingService() func() {
	orig := newService
	newService = func(context.Context, settings.Settings, ports.Logger) (service, func() error, error) {
		return nil, nil, errors.New("failed to connect to host")
	}
	return func() { newService = orig }
}

// resetGlobals restores the package level flag variables after a test.
func resetGlobals(t *testing.T) {
	t.Helper()
	noColor = true
	t.Cleanup(func() {
		settingsFile, logLevel, logFormat = "", "", ""
		verbose, noColor = false, false
		applyTasks = taskFlags{}
		applyOutput, applyReportFile, applyMetricsFile = "text", "", ""
		applyFailFast, applyConcurrency = false, 0
		planTasks = taskFlags{}
		planOutput = "text"
	})
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	return cmd, &out
}

func spec(name string) desired.PackageSpec {
	return desired.PackageSpec{Name: name, State: desired.StatePresent}
}

func testReport(results ...execution.Result) execution.Report {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return execution.Aggregate("run-1", start, start.Add(2*time.Second), results)
}

func installResult(name string, class execution.Classification, err error) execution.Result {
	action := reconcile.Action{Kind: reconcile.KindInstall, Spec: spec(name), Version: "1.0.0"}
	return execution.NewResult(action, class, err).WithProcess("choco install "+name, 0, "installed "+name, "")
}
