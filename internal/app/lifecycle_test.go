package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle_Transitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		events []string
		want   RunState
		runs   int
	}{
		{"initial", nil, StateIdle, 0},
		{"validating", []string{EventRun}, StateValidating, 1},
		{"invalid input", []string{EventRun, EventInvalid}, StateInvalidInput, 1},
		{"direct completion", []string{EventRun, EventValidated, EventReady, EventComplete}, StateCompleted, 1},
		{"bootstrap then complete", []string{EventRun, EventValidated, EventBootstrap, EventReady, EventComplete}, StateCompleted, 1},
		{"bootstrap failure", []string{EventRun, EventValidated, EventBootstrap, EventFail}, StateFailed, 1},
		{"reconcile failure", []string{EventRun, EventValidated, EventReady, EventFail}, StateFailed, 1},
		{"rerun after failure", []string{EventRun, EventValidated, EventReady, EventFail, EventRun}, StateValidating, 2},
		{"rerun after invalid", []string{EventRun, EventInvalid, EventRun, EventValidated}, StatePreparing, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			lc, err := newLifecycle()
			require.NoError(t, err)

			for _, e := range tt.events {
				lc.send(e)
			}

			assert.Equal(t, tt.want, lc.state())
			assert.Equal(t, tt.runs, lc.count())
		})
	}
}
