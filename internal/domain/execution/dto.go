package execution

import (
	"time"
)

// ReportDTO is the serialized form of a Report used by the report file, the
// JSON output and the MCP tools.
type ReportDTO struct {
	RunID          string      `yaml:"run_id" json:"run_id"`
	StartedAt      time.Time   `yaml:"started_at" json:"started_at"`
	FinishedAt     time.Time   `yaml:"finished_at" json:"finished_at"`
	Changed        bool        `yaml:"changed" json:"changed"`
	Failed         bool        `yaml:"failed" json:"failed"`
	RebootRequired bool        `yaml:"reboot_required" json:"reboot_required"`
	Counts         Counts      `yaml:"counts" json:"counts"`
	Results        []ResultDTO `yaml:"results" json:"results"`
}

// ResultDTO is the serialized form of a Result.
type ResultDTO struct {
	Package    string `yaml:"package" json:"package"`
	Action     string `yaml:"action" json:"action"`
	Version    string `yaml:"version,omitempty" json:"version,omitempty"`
	Reason     string `yaml:"reason,omitempty" json:"reason,omitempty"`
	Class      string `yaml:"class" json:"class"`
	Outcome    string `yaml:"outcome" json:"outcome"`
	Command    string `yaml:"command,omitempty" json:"command,omitempty"`
	ExitCode   int    `yaml:"rc" json:"rc"`
	Stdout     string `yaml:"stdout,omitempty" json:"stdout,omitempty"`
	Stderr     string `yaml:"stderr,omitempty" json:"stderr,omitempty"`
	DurationMS int64  `yaml:"duration_ms" json:"duration_ms"`
	Error      string `yaml:"error,omitempty" json:"error,omitempty"`
}

// ReportToDTO converts a report. Process output is included only when
// withOutput is set.
func ReportToDTO(r Report, withOutput bool) ReportDTO {
	dto := ReportDTO{
		RunID:          r.RunID,
		StartedAt:      r.StartedAt.UTC(),
		FinishedAt:     r.FinishedAt.UTC(),
		Changed:        r.Changed,
		Failed:         r.Failed,
		RebootRequired: r.RebootRequired,
		Counts:         r.Counts,
		Results:        make([]ResultDTO, 0, len(r.Results)),
	}

	for _, res := range r.Results {
		a := res.Action()
		rd := ResultDTO{
			Package:    res.Package(),
			Action:     string(a.Kind),
			Version:    a.Version,
			Reason:     a.Reason,
			Class:      string(res.Class()),
			Outcome:    string(res.Outcome()),
			Command:    res.Command(),
			ExitCode:   res.ExitCode(),
			DurationMS: res.Duration().Milliseconds(),
		}
		if withOutput {
			rd.Stdout = res.Stdout()
			rd.Stderr = res.Stderr()
		}
		if err := res.Error(); err != nil {
			rd.Error = err.Error()
		}
		dto.Results = append(dto.Results, rd)
	}

	return dto
}
