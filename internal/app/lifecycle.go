package app

import (
	"fmt"
	"sync"

	"github.com/felixgeelhaar/statekit"
)

// RunState is the phase of a reconciliation run.
type RunState string

// Run states.
const (
	StateIdle         RunState = "idle"
	StateValidating   RunState = "validating"
	StatePreparing    RunState = "preparing"
	StateBootstrap    RunState = "bootstrapping"
	StateReconciling  RunState = "reconciling"
	StateCompleted    RunState = "completed"
	StateFailed       RunState = "failed"
	StateInvalidInput RunState = "invalid"
)

// Lifecycle events.
const (
	EventRun       = "RUN"
	EventValidated = "VALIDATED"
	EventInvalid   = "INVALID"
	EventBootstrap = "BOOTSTRAP"
	EventReady     = "READY"
	EventComplete  = "COMPLETE"
	EventFail      = "FAIL"
)

// lifecycle tracks a reconciler's run phases with a state machine. Runs are
// serialized by the reconciler, so one machine is reused across runs.
type lifecycle struct {
	mu     sync.Mutex
	interp *statekit.Interpreter[runContext]
	runs   int
}

type runContext struct {
	Runs int
}

func newLifecycle() (*lifecycle, error) {
	l := &lifecycle{}

	machine, err := statekit.NewMachine[runContext]("chocostate-run").
		WithInitial("idle").
		WithContext(runContext{}).
		WithAction("countRun", func(_ *runContext, _ statekit.Event) {
			l.runs++
		}).
		State("idle").
		On(EventRun).Target("validating").Done().
		State("validating").
		OnEntry("countRun").
		On(EventValidated).Target("preparing").
		On(EventInvalid).Target("invalid").Done().
		State("preparing").
		On(EventBootstrap).Target("bootstrapping").
		On(EventReady).Target("reconciling").
		On(EventFail).Target("failed").Done().
		State("bootstrapping").
		On(EventReady).Target("reconciling").
		On(EventFail).Target("failed").Done().
		State("reconciling").
		On(EventComplete).Target("completed").
		On(EventFail).Target("failed").Done().
		State("completed").
		On(EventRun).Target("validating").Done().
		State("failed").
		On(EventRun).Target("validating").Done().
		State("invalid").
		On(EventRun).Target("validating").Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build run state machine: %w", err)
	}

	l.interp = statekit.NewInterpreter(machine)
	l.interp.Start()
	return l, nil
}

func (l *lifecycle) send(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interp.Send(statekit.Event{Type: statekit.EventType(event)})
}

func (l *lifecycle) state() RunState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return RunState(l.interp.State().Value)
}

func (l *lifecycle) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runs
}
