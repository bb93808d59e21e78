// Package installed holds the observed package state of a host. Values are
// produced by probing and never mutated; every probe yields a new Snapshot.
package installed

import (
	"sort"
	"strings"

	"github.com/felixgeelhaar/chocostate/internal/domain/desired"
	"github.com/felixgeelhaar/chocostate/internal/domain/version"
)

// Package is one installed instance of a package. Side-by-side installs
// appear as several Packages with the same name.
type Package struct {
	Name         string
	Version      string
	Pinned       bool
	Architecture desired.Architecture
}

// Outdated describes an available upgrade reported by the package manager.
type Outdated struct {
	Name      string
	Current   string
	Available string
	Pinned    bool
}

// Snapshot is an immutable view of installed packages, pins and available
// upgrades at probe time. Names are matched case-insensitively.
type Snapshot struct {
	cliVersion string
	packages   map[string][]Package
	outdated   map[string]Outdated
	order      []string
}

// NewSnapshot builds a snapshot. Pins are applied to the matching installed
// versions; a pin recorded without a version pins every instance.
func NewSnapshot(cliVersion string, packages []Package, pins map[string]string, outdated []Outdated) *Snapshot {
	s := &Snapshot{
		cliVersion: cliVersion,
		packages:   make(map[string][]Package),
		outdated:   make(map[string]Outdated),
	}

	for _, p := range packages {
		key := strings.ToLower(p.Name)
		if _, seen := s.packages[key]; !seen {
			s.order = append(s.order, key)
		}
		if pinVersion, ok := pins[key]; ok && (pinVersion == "" || version.Equal(pinVersion, p.Version)) {
			p.Pinned = true
		}
		if p.Architecture == "" {
			p.Architecture = desired.ArchDefault
		}
		s.packages[key] = append(s.packages[key], p)
	}

	for key := range s.packages {
		list := s.packages[key]
		sort.SliceStable(list, func(i, j int) bool {
			return version.Less(list[i].Version, list[j].Version)
		})
	}

	for _, o := range outdated {
		s.outdated[strings.ToLower(o.Name)] = o
	}

	return s
}

// CLIVersion returns the version of the package manager CLI.
func (s *Snapshot) CLIVersion() string {
	return s.cliVersion
}

// Lookup returns every installed instance of name, ordered by ascending
// version. The returned slice is a copy.
func (s *Snapshot) Lookup(name string) []Package {
	list := s.packages[strings.ToLower(name)]
	if len(list) == 0 {
		return nil
	}
	return append([]Package(nil), list...)
}

// Available returns the newest available version of name, or "" when the
// package is up to date or was not checked.
func (s *Snapshot) Available(name string) string {
	return s.outdated[strings.ToLower(name)].Available
}

// HasUpgrades reports whether any package has an available upgrade that is
// not held by a pin.
func (s *Snapshot) HasUpgrades() bool {
	for _, o := range s.outdated {
		if o.Available != "" && !o.Pinned {
			return true
		}
	}
	return false
}

// Names returns installed package names in probe order.
func (s *Snapshot) Names() []string {
	names := make([]string, 0, len(s.order))
	for _, key := range s.order {
		names = append(names, s.packages[key][0].Name)
	}
	return names
}

// Len returns the number of distinct installed packages.
func (s *Snapshot) Len() int {
	return len(s.order)
}

// Highest returns the highest installed version among pkgs, or "" when
// pkgs is empty.
func Highest(pkgs []Package) string {
	best := ""
	for _, p := range pkgs {
		if best == "" || version.Less(best, p.Version) {
			best = p.Version
		}
	}
	return best
}

// Find returns the instance installed at v.
func Find(pkgs []Package, v string) (Package, bool) {
	for _, p := range pkgs {
		if version.Equal(p.Version, v) {
			return p, true
		}
	}
	return Package{}, false
}

// AnyPinned reports whether any instance is pinned.
func AnyPinned(pkgs []Package) bool {
	for _, p := range pkgs {
		if p.Pinned {
			return true
		}
	}
	return false
}
