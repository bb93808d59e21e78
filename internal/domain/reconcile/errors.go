package reconcile

import (
	"errors"
	"fmt"
)

// ErrPreconditionFailed is matched by every *PreconditionError.
var ErrPreconditionFailed = errors.New("precondition failed")

// PreconditionError reports a desired state that cannot be reached without
// an explicit override. It is raised before any command runs for the package.
type PreconditionError struct {
	Package   string
	Installed string
	Requested string
	Reason    string
}

func (e *PreconditionError) Error() string {
	if e.Installed != "" || e.Requested != "" {
		return fmt.Sprintf("%s: %s (installed %s, requested %s)", e.Package, e.Reason, e.Installed, e.Requested)
	}
	return fmt.Sprintf("%s: %s", e.Package, e.Reason)
}

// Unwrap lets errors.Is match ErrPreconditionFailed.
func (e *PreconditionError) Unwrap() error {
	return ErrPreconditionFailed
}
