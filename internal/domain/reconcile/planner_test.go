package reconcile

import (
	"testing"

	"github.com/felixgeelhaar/chocostate/internal/domain/desired"
	"github.com/felixgeelhaar/chocostate/internal/domain/installed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spec(name string, state desired.State, v string) desired.PackageSpec {
	return desired.PackageSpec{Name: name, State: state, Version: v, Architecture: desired.ArchDefault}
}

func pkg(name, v string, pinned bool) installed.Package {
	return installed.Package{Name: name, Version: v, Pinned: pinned, Architecture: desired.ArchDefault}
}

type step struct {
	kind    Kind
	version string
}

func steps(actions []Action) []step {
	out := make([]step, 0, len(actions))
	for _, a := range actions {
		out = append(out, step{a.Kind, a.Version})
	}
	return out
}

func TestPlan(t *testing.T) {
	t.Parallel()

	pinned := func(s desired.PackageSpec, p desired.PinIntent) desired.PackageSpec {
		s.Pin = p
		return s
	}
	forced := func(s desired.PackageSpec) desired.PackageSpec {
		s.Force = true
		return s
	}

	tests := []struct {
		name      string
		spec      desired.PackageSpec
		installed []installed.Package
		available string
		want      []step
	}{
		// absent
		{name: "absent not installed", spec: spec("appA", desired.StateAbsent, ""),
			want: []step{{KindNoOp, ""}}},
		{name: "absent all versions", spec: spec("appA", desired.StateAbsent, ""),
			installed: []installed.Package{pkg("appA", "1.0", false), pkg("appA", "2.0", false)},
			want:      []step{{KindUninstall, ""}}},
		{name: "absent scoped version", spec: spec("appA", desired.StateAbsent, "1.0"),
			installed: []installed.Package{pkg("appA", "1.0", false), pkg("appA", "2.0", false)},
			want:      []step{{KindUninstall, "1.0"}}},
		{name: "absent version not installed", spec: spec("appA", desired.StateAbsent, "3.0"),
			installed: []installed.Package{pkg("appA", "1.0", false)},
			want:      []step{{KindNoOp, "3.0"}}},
		{name: "absent ignores pin intent", spec: pinned(spec("appA", desired.StateAbsent, ""), desired.PinPinned),
			want: []step{{KindNoOp, ""}}},

		// present
		{name: "present same version", spec: spec("appA", desired.StatePresent, "1.0"),
			installed: []installed.Package{pkg("appA", "1.0", false)},
			want:      []step{{KindNoOp, "1.0"}}},
		{name: "present normalized version match", spec: spec("appA", desired.StatePresent, "1.0"),
			installed: []installed.Package{pkg("appA", "1.0.0", false)},
			want:      []step{{KindNoOp, "1.0"}}},
		{name: "present any version", spec: spec("appA", desired.StatePresent, ""),
			installed: []installed.Package{pkg("appA", "1.0", false)},
			want:      []step{{KindNoOp, ""}}},
		{name: "present not installed", spec: spec("appA", desired.StatePresent, "1.0"),
			want: []step{{KindInstall, "1.0"}}},
		{name: "present force no version", spec: forced(spec("appA", desired.StatePresent, "")),
			installed: []installed.Package{pkg("appA", "1.0", false)},
			want:      []step{{KindInstall, ""}}},
		{name: "present force higher version", spec: forced(spec("appA", desired.StatePresent, "6.10")),
			installed: []installed.Package{pkg("appA", "6.1", false)},
			want:      []step{{KindUpgrade, "6.10"}}},
		{name: "present force lower version", spec: forced(spec("appA", desired.StatePresent, "1.0")),
			installed: []installed.Package{pkg("appA", "2.0", false)},
			want:      []step{{KindDowngrade, "1.0"}}},
		{name: "present pin requested", spec: pinned(spec("appA", desired.StatePresent, "1.0"), desired.PinPinned),
			installed: []installed.Package{pkg("appA", "1.0", false)},
			want:      []step{{KindPin, "1.0"}}},
		{name: "present already pinned", spec: pinned(spec("appA", desired.StatePresent, "1.0"), desired.PinPinned),
			installed: []installed.Package{pkg("appA", "1.0", true)},
			want:      []step{{KindNoOp, "1.0"}}},
		{name: "present unpin all", spec: pinned(spec("appA", desired.StatePresent, ""), desired.PinUnpinned),
			installed: []installed.Package{pkg("appA", "1.0", true)},
			want:      []step{{KindUnpin, ""}}},
		{name: "present install then pin", spec: pinned(spec("appA", desired.StatePresent, ""), desired.PinPinned),
			want: []step{{KindInstall, ""}, {KindPin, ""}}},
		{name: "present unpin on missing package", spec: pinned(spec("appA", desired.StatePresent, ""), desired.PinUnpinned),
			want: []step{{KindInstall, ""}}},
		{name: "present side by side", spec: func() desired.PackageSpec {
			s := spec("appA", desired.StatePresent, "2.0")
			s.AllowMultiple = true
			return s
		}(),
			installed: []installed.Package{pkg("appA", "1.0", false)},
			want:      []step{{KindInstall, "2.0"}}},
		{name: "present all", spec: spec("all", desired.StatePresent, ""),
			want: []step{{KindNoOp, ""}}},

		// latest
		{name: "latest not installed", spec: spec("appA", desired.StateLatest, ""),
			want: []step{{KindInstall, ""}}},
		{name: "latest outdated", spec: spec("appA", desired.StateLatest, ""),
			installed: []installed.Package{pkg("appA", "6.1", false)}, available: "6.10",
			want: []step{{KindUpgrade, ""}}},
		{name: "latest up to date", spec: spec("appA", desired.StateLatest, ""),
			installed: []installed.Package{pkg("appA", "6.10", false)},
			want:      []step{{KindNoOp, ""}}},
		{name: "latest stale available ignored", spec: spec("appA", desired.StateLatest, ""),
			installed: []installed.Package{pkg("appA", "6.10", false)}, available: "6.9",
			want: []step{{KindNoOp, ""}}},
		{name: "latest held by pin", spec: spec("appA", desired.StateLatest, ""),
			installed: []installed.Package{pkg("appA", "1.0", true)}, available: "2.0",
			want: []step{{KindNoOp, ""}}},
		{name: "latest unpin then upgrade", spec: pinned(spec("appA", desired.StateLatest, ""), desired.PinUnpinned),
			installed: []installed.Package{pkg("appA", "1.0", true)}, available: "2.0",
			want: []step{{KindUnpin, ""}, {KindUpgrade, ""}}},
		{name: "latest explicit higher", spec: spec("appA", desired.StateLatest, "2.0"),
			installed: []installed.Package{pkg("appA", "1.0", false)},
			want:      []step{{KindUpgrade, "2.0"}}},
		{name: "latest explicit equal", spec: spec("appA", desired.StateLatest, "2.0"),
			installed: []installed.Package{pkg("appA", "2.0", false)},
			want:      []step{{KindNoOp, "2.0"}}},
		{name: "latest explicit lower forced", spec: forced(spec("appA", desired.StateLatest, "1.0")),
			installed: []installed.Package{pkg("appA", "2.0", false)},
			want:      []step{{KindDowngrade, "1.0"}}},
		{name: "latest all with upgrades", spec: spec("all", desired.StateLatest, ""),
			installed: []installed.Package{pkg("git", "1.0", false)}, available: "2.0",
			want: []step{{KindUpgrade, ""}}},
		{name: "latest all up to date", spec: spec("all", desired.StateLatest, ""),
			installed: []installed.Package{pkg("git", "1.0", false)},
			want:      []step{{KindNoOp, ""}}},

		// downgrade
		{name: "downgrade lower", spec: spec("appA", desired.StateDowngrade, "1.0"),
			installed: []installed.Package{pkg("appA", "2.0", false)},
			want:      []step{{KindDowngrade, "1.0"}}},
		{name: "downgrade equal", spec: spec("appA", desired.StateDowngrade, "2.0"),
			installed: []installed.Package{pkg("appA", "2.0", false)},
			want:      []step{{KindNoOp, "2.0"}}},
		{name: "downgrade actually higher", spec: spec("appA", desired.StateDowngrade, "3.0"),
			installed: []installed.Package{pkg("appA", "2.0", false)},
			want:      []step{{KindUpgrade, "3.0"}}},
		{name: "downgrade not installed", spec: spec("appA", desired.StateDowngrade, "1.0"),
			want: []step{{KindInstall, "1.0"}}},

		// reinstalled
		{name: "reinstall installed", spec: spec("appA", desired.StateReinstalled, ""),
			installed: []installed.Package{pkg("appA", "1.0", false)},
			want:      []step{{KindUninstall, ""}, {KindInstall, ""}}},
		{name: "reinstall not installed", spec: spec("appA", desired.StateReinstalled, ""),
			want: []step{{KindUninstall, ""}, {KindInstall, ""}}},
		{name: "reinstall version present", spec: spec("appA", desired.StateReinstalled, "1.0"),
			installed: []installed.Package{pkg("appA", "1.0", false)},
			want:      []step{{KindUninstall, "1.0"}, {KindInstall, "1.0"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			actions, err := Plan(tt.spec, tt.installed, tt.available)
			require.NoError(t, err)
			assert.Equal(t, tt.want, steps(actions))
			for _, a := range actions {
				assert.Equal(t, tt.spec.Name, a.Package())
				assert.Equal(t, tt.installed, a.Installed)
			}
		})
	}
}

func TestPlan_PreconditionFailed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		spec      desired.PackageSpec
		installed []installed.Package
	}{
		{name: "present different version", spec: spec("appA", desired.StatePresent, "1.0"),
			installed: []installed.Package{pkg("appA", "2.0", false)}},
		{name: "latest explicit lower", spec: spec("appA", desired.StateLatest, "1.0"),
			installed: []installed.Package{pkg("appA", "2.0", false)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			actions, err := Plan(tt.spec, tt.installed, "")
			require.ErrorIs(t, err, ErrPreconditionFailed)
			assert.Nil(t, actions)

			var perr *PreconditionError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "appA", perr.Package)
			assert.Equal(t, "2.0", perr.Installed)
			assert.Equal(t, "1.0", perr.Requested)
			assert.Contains(t, err.Error(), "installed 2.0, requested 1.0")
		})
	}
}

func TestPlan_ForceFlagsAction(t *testing.T) {
	t.Parallel()

	s := spec("appA", desired.StatePresent, "")
	s.Force = true
	actions, err := Plan(s, []installed.Package{pkg("appA", "1.0", false)}, "")
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.True(t, actions[0].Force)
	assert.Equal(t, "install appA (forced)", actions[0].String())
}

func TestPlan_ReinstallMarksBothLegs(t *testing.T) {
	t.Parallel()

	actions, err := Plan(spec("appA", desired.StateReinstalled, ""), nil, "")
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.True(t, actions[0].Reinstall)
	assert.True(t, actions[1].Reinstall)
}

func TestPlan_Deterministic(t *testing.T) {
	t.Parallel()

	s := spec("appA", desired.StateLatest, "")
	s.Pin = desired.PinUnpinned
	in := []installed.Package{pkg("appA", "1.0", true)}

	first, err := Plan(s, in, "2.0")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Plan(s, in, "2.0")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	actions := []Action{{Kind: KindNoOp}, {Kind: KindInstall}, {Kind: KindPin}}
	sum := Summarize(actions)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 2, sum.Changes)
	assert.Equal(t, 1, sum.ByKind[KindPin])
	assert.Equal(t, "3 action(s), 2 change(s)", sum.String())
	assert.True(t, HasChanges(actions))
	assert.False(t, HasChanges([]Action{{Kind: KindNoOp}}))
}
