package execution

import (
	"time"

	"github.com/google/uuid"
)

// Counts tallies results by outcome.
type Counts struct {
	Changed   int `yaml:"changed" json:"changed"`
	Unchanged int `yaml:"unchanged" json:"unchanged"`
	Failed    int `yaml:"failed" json:"failed"`
	Skipped   int `yaml:"skipped" json:"skipped"`
}

// Report is the terminal artifact of a reconciliation run.
type Report struct {
	RunID          string
	StartedAt      time.Time
	FinishedAt     time.Time
	Results        []Result
	Changed        bool
	Failed         bool
	RebootRequired bool
	Counts         Counts
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Aggregate merges results, preserving their order. The report is changed
// when at least one mutating action succeeded (or succeeded pending a
// reboot) and failed when any result failed.
func Aggregate(runID string, startedAt, finishedAt time.Time, results []Result) Report {
	r := Report{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Results:    append([]Result(nil), results...),
	}

	for _, res := range results {
		switch res.Outcome() {
		case OutcomeChanged:
			r.Changed = true
			r.Counts.Changed++
		case OutcomeFailed:
			r.Failed = true
			r.Counts.Failed++
		case OutcomeSkipped:
			r.Counts.Skipped++
		default:
			r.Counts.Unchanged++
		}
		if res.Class() == ClassRebootRequired {
			r.RebootRequired = true
		}
	}

	return r
}

// Duration returns the wall-clock duration of the run.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Errors returns the errors of failed results in order.
func (r Report) Errors() []error {
	var errs []error
	for _, res := range r.Results {
		if res.Failed() && res.Error() != nil {
			errs = append(errs, res.Error())
		}
	}
	return errs
}
