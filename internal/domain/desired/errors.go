package desired

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest is matched by every ValidationError.
var ErrInvalidRequest = errors.New("invalid request")

// ValidationError collects every problem found in a request. No command is
// run for a request that fails validation.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return e.Problems[0]
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Problems, "; "))
}

// Unwrap lets errors.Is match ErrInvalidRequest.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

// Add adds a problem.
func (e *ValidationError) Add(msg string) {
	e.Problems = append(e.Problems, msg)
}

// Addf adds a formatted problem.
func (e *ValidationError) Addf(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// HasProblems reports whether any problem was recorded.
func (e *ValidationError) HasProblems() bool {
	return len(e.Problems) > 0
}

// errOrNil returns e as an error only when it holds problems.
func (e *ValidationError) errOrNil() error {
	if e.HasProblems() {
		return e
	}
	return nil
}
