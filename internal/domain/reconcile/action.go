// Package reconcile computes the minimal set of package manager actions that
// move installed state to desired state. Planning is pure: it never touches
// the host.
package reconcile

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/chocostate/internal/domain/desired"
	"github.com/felixgeelhaar/chocostate/internal/domain/installed"
)

// Kind identifies what an action does.
type Kind string

// Action kinds.
const (
	KindNoOp      Kind = "noop"
	KindInstall   Kind = "install"
	KindUpgrade   Kind = "upgrade"
	KindDowngrade Kind = "downgrade"
	KindUninstall Kind = "uninstall"
	KindPin       Kind = "pin"
	KindUnpin     Kind = "unpin"
)

// Mutates reports whether the action changes the host when it succeeds.
func (k Kind) Mutates() bool {
	return k != KindNoOp && k != ""
}

// Action is one planned step for one package. It is created by Plan and
// consumed exactly once by the executor.
type Action struct {
	Kind Kind
	Spec desired.PackageSpec
	// Installed is the state the action was computed against.
	Installed []installed.Package
	// Version is the version to act on. Empty means latest for installs and
	// upgrades, and every installed version for uninstall and unpin.
	Version string
	// Force makes the install replace an existing installation.
	Force bool
	// Reinstall marks the two legs of a reinstall chain.
	Reinstall bool
	// Reason is a short human explanation of why the action was chosen.
	Reason string
}

// Package returns the target package name.
func (a Action) Package() string {
	return a.Spec.Name
}

// String renders the action as "kind name [version]".
func (a Action) String() string {
	parts := []string{string(a.Kind), a.Spec.Name}
	if a.Version != "" {
		parts = append(parts, a.Version)
	}
	s := strings.Join(parts, " ")
	if a.Force && a.Kind != KindNoOp {
		s += " (forced)"
	}
	return s
}

// Summary counts planned actions by kind.
type Summary struct {
	Total   int
	Changes int
	ByKind  map[Kind]int
}

// Summarize counts actions.
func Summarize(actions []Action) Summary {
	s := Summary{ByKind: make(map[Kind]int)}
	for _, a := range actions {
		s.Total++
		s.ByKind[a.Kind]++
		if a.Kind.Mutates() {
			s.Changes++
		}
	}
	return s
}

// HasChanges reports whether any action would modify the host.
func HasChanges(actions []Action) bool {
	for _, a := range actions {
		if a.Kind.Mutates() {
			return true
		}
	}
	return false
}

func (s Summary) String() string {
	return fmt.Sprintf("%d action(s), %d change(s)", s.Total, s.Changes)
}
