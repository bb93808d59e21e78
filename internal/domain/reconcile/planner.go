package reconcile

import (
	"github.com/felixgeelhaar/chocostate/internal/domain/desired"
	"github.com/felixgeelhaar/chocostate/internal/domain/installed"
	"github.com/felixgeelhaar/chocostate/internal/domain/version"
)

// Plan computes the actions for one package spec against the installed
// instances of that package. available is the newest version the package
// manager reports as an upgrade ("" when up to date or not checked); for the
// "all" sentinel it is non-empty when at least one package can be upgraded.
//
// Plan is deterministic and has no side effects. A *PreconditionError means
// the spec cannot be satisfied without force and nothing must be executed.
func Plan(spec desired.PackageSpec, pkgs []installed.Package, available string) ([]Action, error) {
	p := planner{spec: spec, installed: pkgs, available: available}

	var primary []Action
	var err error

	switch spec.State {
	case desired.StateAbsent:
		return p.absent(), nil
	case desired.StateLatest:
		primary, err = p.latest()
	case desired.StateDowngrade:
		primary, err = p.downgrade()
	case desired.StateReinstalled:
		primary = p.reinstalled()
	default:
		primary, err = p.present()
	}
	if err != nil {
		return nil, err
	}

	return p.overlayPin(primary), nil
}

type planner struct {
	spec      desired.PackageSpec
	installed []installed.Package
	available string
}

func (p planner) action(kind Kind, v, reason string) Action {
	return Action{
		Kind:      kind,
		Spec:      p.spec,
		Installed: p.installed,
		Version:   v,
		Reason:    reason,
	}
}

func (p planner) absent() []Action {
	if len(p.installed) == 0 {
		return []Action{p.action(KindNoOp, p.spec.Version, "not installed")}
	}

	if p.spec.HasVersion() {
		if _, ok := installed.Find(p.installed, p.spec.Version); !ok {
			return []Action{p.action(KindNoOp, p.spec.Version, "requested version not installed")}
		}
		return []Action{p.action(KindUninstall, p.spec.Version, "remove requested version")}
	}

	return []Action{p.action(KindUninstall, "", "remove all installed versions")}
}

func (p planner) present() ([]Action, error) {
	if p.spec.IsAll() {
		return []Action{p.action(KindNoOp, "", "all installed packages are present")}, nil
	}

	if len(p.installed) == 0 {
		return []Action{p.action(KindInstall, p.spec.Version, "not installed")}, nil
	}

	if !p.spec.HasVersion() {
		if p.spec.Force {
			return []Action{p.forced(KindInstall, "", "forced reinstall of installed package")}, nil
		}
		return []Action{p.action(KindNoOp, "", "already installed")}, nil
	}

	if _, ok := installed.Find(p.installed, p.spec.Version); ok {
		if p.spec.Force {
			return []Action{p.forced(KindInstall, p.spec.Version, "forced reinstall of requested version")}, nil
		}
		return []Action{p.action(KindNoOp, p.spec.Version, "requested version installed")}, nil
	}

	if p.spec.AllowMultiple {
		return []Action{p.action(KindInstall, p.spec.Version, "install side by side")}, nil
	}

	highest := installed.Highest(p.installed)
	if !p.spec.Force {
		return nil, &PreconditionError{
			Package:   p.spec.Name,
			Installed: highest,
			Requested: p.spec.Version,
			Reason:    "a different version is installed; use state latest or downgrade, or set force",
		}
	}

	if version.Less(highest, p.spec.Version) {
		return []Action{p.forced(KindUpgrade, p.spec.Version, "forced upgrade to requested version")}, nil
	}
	return []Action{p.forced(KindDowngrade, p.spec.Version, "forced downgrade to requested version")}, nil
}

func (p planner) forced(kind Kind, v, reason string) Action {
	a := p.action(kind, v, reason)
	a.Force = true
	return a
}

func (p planner) latest() ([]Action, error) {
	if p.spec.IsAll() {
		if len(p.installed) == 0 && p.available == "" {
			return []Action{p.action(KindNoOp, "", "no packages installed")}, nil
		}
		if p.available == "" {
			return []Action{p.action(KindNoOp, "", "all packages up to date")}, nil
		}
		return []Action{p.action(KindUpgrade, "", "upgrades available")}, nil
	}

	if len(p.installed) == 0 {
		return []Action{p.action(KindInstall, p.spec.Version, "not installed")}, nil
	}

	highest := installed.Highest(p.installed)

	if p.spec.HasVersion() {
		switch c := version.Compare(highest, p.spec.Version); {
		case c == 0:
			return []Action{p.action(KindNoOp, p.spec.Version, "requested version installed")}, nil
		case c < 0:
			return p.heldByPin(p.action(KindUpgrade, p.spec.Version, "upgrade to requested version")), nil
		default:
			if !p.spec.Force {
				return nil, &PreconditionError{
					Package:   p.spec.Name,
					Installed: highest,
					Requested: p.spec.Version,
					Reason:    "installed version is newer than requested; use state downgrade or set force",
				}
			}
			return []Action{p.forced(KindDowngrade, p.spec.Version, "forced downgrade to requested version")}, nil
		}
	}

	if p.available != "" && version.Less(highest, p.available) {
		return p.heldByPin(p.action(KindUpgrade, "", "upgrade to "+p.available)), nil
	}

	return []Action{p.action(KindNoOp, "", "up to date")}, nil
}

// heldByPin turns an upgrade of a pinned package into a NoOp unless the
// caller also asked to unpin it.
func (p planner) heldByPin(a Action) []Action {
	if installed.AnyPinned(p.installed) && p.spec.Pin != desired.PinUnpinned {
		return []Action{p.action(KindNoOp, a.Version, "upgrade held by pin")}
	}
	return []Action{a}
}

func (p planner) downgrade() ([]Action, error) {
	if len(p.installed) == 0 {
		return []Action{p.action(KindInstall, p.spec.Version, "not installed")}, nil
	}

	if _, ok := installed.Find(p.installed, p.spec.Version); ok {
		return []Action{p.action(KindNoOp, p.spec.Version, "requested version installed")}, nil
	}

	if version.Less(p.spec.Version, installed.Highest(p.installed)) {
		return []Action{p.action(KindDowngrade, p.spec.Version, "downgrade to requested version")}, nil
	}
	return []Action{p.action(KindUpgrade, p.spec.Version, "upgrade to requested version")}, nil
}

func (p planner) reinstalled() []Action {
	uninstallVersion := ""
	if p.spec.HasVersion() {
		if _, ok := installed.Find(p.installed, p.spec.Version); ok {
			uninstallVersion = p.spec.Version
		}
	}

	remove := p.action(KindUninstall, uninstallVersion, "reinstall: remove")
	remove.Reinstall = true
	add := p.action(KindInstall, p.spec.Version, "reinstall: install")
	add.Reinstall = true

	return []Action{remove, add}
}

// overlayPin appends a Pin after, or prepends an Unpin before, the primary
// actions when the pin intent differs from the current pin state. A NoOp
// primary is dropped when a pin action is emitted.
func (p planner) overlayPin(primary []Action) []Action {
	set, want := p.spec.Pin.Wants()
	if !set || p.spec.IsAll() {
		return primary
	}

	changes := HasChanges(primary)
	current := p.currentlyPinned()
	if want && changes {
		current = false
	}
	if want == current {
		return primary
	}

	if !changes {
		primary = nil
	}

	if want {
		return append(primary, p.action(KindPin, p.spec.Version, "pin requested"))
	}
	return append([]Action{p.action(KindUnpin, p.spec.Version, "unpin requested")}, primary...)
}

func (p planner) currentlyPinned() bool {
	if p.spec.HasVersion() {
		pkg, ok := installed.Find(p.installed, p.spec.Version)
		return ok && pkg.Pinned
	}
	return installed.AnyPinned(p.installed)
}
