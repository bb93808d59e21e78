// Package execution models the outcome of running reconciliation actions:
// exit-code classification, per-action results and the aggregated run report.
package execution

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Classification is the interpretation of how an action ended.
type Classification string

// Classifications.
const (
	ClassSuccess            Classification = "success"
	ClassSuccessNoop        Classification = "success_noop"
	ClassRebootRequired     Classification = "reboot_required"
	ClassFailure            Classification = "failure"
	ClassTimeoutExceeded    Classification = "timeout_exceeded"
	ClassPreconditionFailed Classification = "precondition_failed"
	ClassProbeFailure       Classification = "probe_failure"
	ClassSkipped            Classification = "skipped"
)

// IsFailure reports whether the classification fails the run.
func (c Classification) IsFailure() bool {
	switch c {
	case ClassFailure, ClassTimeoutExceeded, ClassPreconditionFailed, ClassProbeFailure:
		return true
	default:
		return false
	}
}

// ParseClassification converts a name used in the settings file. Only the
// classes an exit code can map to are accepted.
func ParseClassification(s string) (Classification, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success", "ok":
		return ClassSuccess, nil
	case "success_noop", "noop", "nothing_to_do":
		return ClassSuccessNoop, nil
	case "reboot_required", "reboot":
		return ClassRebootRequired, nil
	case "failure", "failed":
		return ClassFailure, nil
	default:
		return "", fmt.Errorf("unknown exit code class %q (want success, success_noop, reboot_required or failure)", s)
	}
}

// Outcome is what a result means to the caller.
type Outcome string

// Outcomes.
const (
	OutcomeChanged   Outcome = "changed"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// ExitCodeRule maps an inclusive exit-code range to a classification.
type ExitCodeRule struct {
	Min   int            `yaml:"min" json:"min"`
	Max   int            `yaml:"max" json:"max"`
	Class Classification `yaml:"class" json:"class"`
}

// ExitCodeTable classifies process exit codes. The first matching rule
// wins; unmatched codes are failures.
type ExitCodeTable struct {
	rules []ExitCodeRule
}

// NewExitCodeTable creates a table from rules, evaluated in order.
func NewExitCodeTable(rules ...ExitCodeRule) ExitCodeTable {
	return ExitCodeTable{rules: append([]ExitCodeRule(nil), rules...)}
}

// DefaultExitCodeTable is Chocolatey's exit-code contract: 0 success, 2
// nothing to do (enhanced exit codes), 350, 1641 and 3010 reboot required.
func DefaultExitCodeTable() ExitCodeTable {
	return NewExitCodeTable(
		ExitCodeRule{Min: 0, Max: 0, Class: ClassSuccess},
		ExitCodeRule{Min: 2, Max: 2, Class: ClassSuccessNoop},
		ExitCodeRule{Min: 350, Max: 350, Class: ClassRebootRequired},
		ExitCodeRule{Min: 1641, Max: 1641, Class: ClassRebootRequired},
		ExitCodeRule{Min: 3010, Max: 3010, Class: ClassRebootRequired},
	)
}

// Classify returns the classification of an exit code.
func (t ExitCodeTable) Classify(code int) Classification {
	for _, r := range t.rules {
		if code >= r.Min && code <= r.Max {
			return r.Class
		}
	}
	return ClassFailure
}

// Then returns a table that consults t first and falls back to the rules
// of fallback for codes t does not match.
func (t ExitCodeTable) Then(fallback ExitCodeTable) ExitCodeTable {
	rules := make([]ExitCodeRule, 0, len(t.rules)+len(fallback.rules))
	rules = append(rules, t.rules...)
	return ExitCodeTable{rules: append(rules, fallback.rules...)}
}

// Rules returns a copy of the rules.
func (t ExitCodeTable) Rules() []ExitCodeRule {
	return append([]ExitCodeRule(nil), t.rules...)
}

// ParseExitCodeTable builds a table from settings entries such as
// {"0": "success", "2": "noop", "3010": "reboot", "1-1": "success"}.
// Keys are a single code or an inclusive "min-max" range. Single codes are
// evaluated before ranges.
func ParseExitCodeTable(entries map[string]string) (ExitCodeTable, error) {
	var singles, ranges []ExitCodeRule
	for key, class := range entries {
		c, err := ParseClassification(class)
		if err != nil {
			return ExitCodeTable{}, fmt.Errorf("exit code %s: %w", key, err)
		}
		lo, hi, err := parseCodeRange(key)
		if err != nil {
			return ExitCodeTable{}, err
		}
		rule := ExitCodeRule{Min: lo, Max: hi, Class: c}
		if lo == hi {
			singles = append(singles, rule)
		} else {
			ranges = append(ranges, rule)
		}
	}
	sortRules(singles)
	sortRules(ranges)
	return NewExitCodeTable(append(singles, ranges...)...), nil
}

func parseCodeRange(key string) (int, int, error) {
	key = strings.TrimSpace(key)
	// A leading "-" is a negative code, not a range separator.
	sep := strings.Index(key[min(1, len(key)):], "-")
	if sep < 0 {
		n, err := strconv.Atoi(key)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid exit code %q", key)
		}
		return n, n, nil
	}
	sep += min(1, len(key))
	lo, errLo := strconv.Atoi(strings.TrimSpace(key[:sep]))
	hi, errHi := strconv.Atoi(strings.TrimSpace(key[sep+1:]))
	if errLo != nil || errHi != nil || lo > hi {
		return 0, 0, fmt.Errorf("invalid exit code range %q", key)
	}
	return lo, hi, nil
}

func sortRules(rules []ExitCodeRule) {
	sort.Slice(rules, func(i, j int) bool { return rules[i].Min < rules[j].Min })
}
