package main

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/felixgeelhaar/chocostate/internal/app"
	"github.com/felixgeelhaar/chocostate/internal/domain/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlan() app.PlanResult {
	return app.PlanResult{
		CLIVersion: "2.2.2",
		Entries: []app.PlanEntry{
			{
				Spec:    spec("git"),
				Actions: []reconcile.Action{{Kind: reconcile.KindInstall, Spec: spec("git"), Version: "2.43.0", Reason: "not installed"}},
			},
			{
				Spec:    spec("7zip"),
				Actions: []reconcile.Action{{Kind: reconcile.KindNoOp, Spec: spec("7zip"), Reason: "already installed"}},
			},
		},
	}
}

func TestRunPlan_Text(t *testing.T) {
	resetGlobals(t)
	fake := &fakeService{plan: testPlan()}
	defer overrideNewService(fake)()

	planTasks.names = []string{"git", "7zip"}
	cmd, out := testCommand()

	require.NoError(t, runPlan(cmd, nil))
	assert.Contains(t, out.String(), "Plan (chocolatey 2.2.2)")
	assert.Contains(t, out.String(), "git")
	assert.Contains(t, out.String(), "7zip")
}

func TestRunPlan_JSON(t *testing.T) {
	resetGlobals(t)
	fake := &fakeService{plan: testPlan()}
	defer overrideNewService(fake)()

	planTasks.names = []string{"git", "7zip"}
	planOutput = "json"
	cmd, out := testCommand()

	require.NoError(t, runPlan(cmd, nil))

	var doc planJSON
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, "2.2.2", doc.CLIVersion)
	assert.True(t, doc.HasChanges)
	require.Len(t, doc.Entries, 2)
	assert.Equal(t, planEntryJSON{Package: "git", Action: "install", Version: "2.43.0", Reason: "not installed"}, doc.Entries[0])
	assert.Equal(t, "noop", doc.Entries[1].Action)
}

func TestRunPlan_EntryErrors(t *testing.T) {
	resetGlobals(t)
	plan := testPlan()
	plan.Entries = append(plan.Entries, app.PlanEntry{
		Spec: spec("nodejs"),
		Err:  &reconcile.PreconditionError{Package: "nodejs", Reason: "a different version is installed"},
	})
	fake := &fakeService{plan: plan}
	defer overrideNewService(fake)()

	planTasks.names = []string{"git"}
	planOutput = "json"
	cmd, out := testCommand()

	err := runPlan(cmd, nil)
	require.ErrorIs(t, err, errRunFailed)

	var doc planJSON
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	require.Len(t, doc.Entries, 3)
	assert.Equal(t, "nodejs", doc.Entries[2].Package)
	assert.Contains(t, doc.Entries[2].Error, "a different version is installed")
}

func TestRunPlan_ServiceError(t *testing.T) {
	resetGlobals(t)
	fake := &fakeService{planErr: errors.New("failed to detect chocolatey")}
	defer overrideNewService(fake)()

	planTasks.names = []string{"git"}
	cmd, _ := testCommand()

	err := runPlan(cmd, nil)
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
}

func TestRunPlan_BothSources(t *testing.T) {
	resetGlobals(t)
	fake := &fakeService{}
	defer overrideNewService(fake)()

	planTasks.names = []string{"git"}
	planTasks.taskFile = "tasks.yaml"
	cmd, _ := testCommand()

	err := runPlan(cmd, nil)
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))
	assert.Contains(t, formatError(err), "mutually exclusive")
}
