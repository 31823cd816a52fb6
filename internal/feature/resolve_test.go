// SPDX-License-Identifier: MPL-2.0

package feature

import (
	"errors"
	"slices"
	"testing"
)

const (
	featA ID = "ghcr.io/devcontainers/features/a:1"
	featB ID = "ghcr.io/devcontainers/features/b:1"
	featC ID = "ghcr.io/devcontainers/features/c:1"
	featZ ID = "ghcr.io/devcontainers/features/z:1"
)

func spec(id ID, deps ...ID) FeatureSpec {
	return FeatureSpec{ID: id, DependsOn: deps}
}

func TestResolve_Order(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		stored  []FeatureSpec
		project []FeatureSpec
		want    []ID
	}{
		{
			name:    "no dependencies keeps declaration order",
			stored:  []FeatureSpec{spec(featC), spec(featA)},
			project: []FeatureSpec{spec(featB)},
			want:    []ID{featC, featA, featB},
		},
		{
			name:    "dependency installs first",
			stored:  []FeatureSpec{spec(featA, featB)},
			project: []FeatureSpec{spec(featB)},
			want:    []ID{featB, featA},
		},
		{
			name:   "diamond",
			stored: []FeatureSpec{spec(featA, featB, featC), spec(featB, featZ), spec(featC, featZ), spec(featZ)},
			want:   []ID{featZ, featB, featC, featA},
		},
		{
			name:   "installsAfter orders known features",
			stored: []FeatureSpec{{ID: featA, InstallsAfter: []ID{featB}}, spec(featB)},
			want:   []ID{featB, featA},
		},
		{
			name:   "installsAfter ignores unknown features",
			stored: []FeatureSpec{{ID: featA, InstallsAfter: []ID{featZ}}, spec(featB)},
			want:   []ID{featA, featB},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := Resolve(tt.stored, tt.project)
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if got := res.IDs(); !slices.Equal(got, tt.want) {
				t.Errorf("order = %v, want %v", got, tt.want)
			}

			again, err := Resolve(tt.stored, tt.project)
			if err != nil {
				t.Fatalf("second Resolve() error: %v", err)
			}
			if !slices.Equal(again.IDs(), res.IDs()) {
				t.Errorf("Resolve() is not deterministic: %v vs %v", again.IDs(), res.IDs())
			}
		})
	}
}

func TestResolve_Cycle(t *testing.T) {
	t.Parallel()

	_, err := Resolve([]FeatureSpec{spec(featA, featB), spec(featB, featA), spec(featC)}, nil)
	var cycleErr *CyclicDependencyError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CyclicDependencyError, got %v", err)
	}
	if !slices.Equal(cycleErr.Cycle, []ID{featA, featB}) {
		t.Errorf("Cycle = %v, want [%s %s]", cycleErr.Cycle, featA, featB)
	}
	if !errors.Is(err, ErrCyclicDependency) || !errors.Is(err, ErrFeature) {
		t.Error("CyclicDependencyError should wrap ErrCyclicDependency and ErrFeature")
	}
}

func TestResolve_SelfDependency(t *testing.T) {
	t.Parallel()

	_, err := Resolve([]FeatureSpec{spec(featA, featA)}, nil)
	var cycleErr *CyclicDependencyError
	if !errors.As(err, &cycleErr) || !slices.Equal(cycleErr.Cycle, []ID{featA}) {
		t.Fatalf("expected single-node cycle, got %v", err)
	}
}

func TestResolve_UnknownDependency(t *testing.T) {
	t.Parallel()

	_, err := Resolve([]FeatureSpec{spec(featA, featZ)}, nil)
	var unknown *UnknownDependencyError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownDependencyError, got %v", err)
	}
	if unknown.Feature != featA || unknown.Dependency != featZ {
		t.Errorf("got %+v", unknown)
	}
	if !errors.Is(err, ErrFeature) {
		t.Error("UnknownDependencyError should wrap ErrFeature")
	}
}

func TestResolve_MergeOptions(t *testing.T) {
	t.Parallel()

	stored := []FeatureSpec{
		{ID: featA, Options: map[string]any{"version": "18", "tools": true}},
		spec(featB),
	}
	project := []FeatureSpec{
		spec(featC),
		{ID: featA, Options: map[string]any{"version": "20"}},
	}

	res, err := Resolve(stored, project)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got := res.IDs(); !slices.Equal(got, []ID{featA, featB, featC}) {
		t.Errorf("duplicate should keep its first slot, order = %v", got)
	}
	a, ok := res.Lookup(featA)
	if !ok {
		t.Fatal("featA missing")
	}
	if a.Options["version"] != "20" || a.Options["tools"] != true {
		t.Errorf("options = %v, want project version over stored", a.Options)
	}
	if a.Source != SourceProject {
		t.Errorf("Source = %q, want %q", a.Source, SourceProject)
	}
	if stored[0].Options["version"] != "18" {
		t.Error("Resolve must not mutate its input")
	}
}

func TestResolve_DependencyConflict(t *testing.T) {
	t.Parallel()

	stored := []FeatureSpec{spec(featA, featB), spec(featB)}
	project := []FeatureSpec{spec(featA, featC), spec(featC)}

	res, err := Resolve(stored, project)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(res.Conflicts) != 1 {
		t.Fatalf("Conflicts = %v, want one", res.Conflicts)
	}
	c := res.Conflicts[0]
	if c.ID != featA || !slices.Equal(c.Stored, []ID{featB}) || !slices.Equal(c.Project, []ID{featC}) {
		t.Errorf("conflict = %+v", c)
	}
	a, _ := res.Lookup(featA)
	if !slices.Equal(a.DependsOn, []ID{featC}) {
		t.Errorf("project dependsOn should win, got %v", a.DependsOn)
	}
	if got := res.IDs(); !slices.Equal(got, []ID{featB, featC, featA}) {
		t.Errorf("order = %v", got)
	}
}

func TestResolve_SameClaimIsNotAConflict(t *testing.T) {
	t.Parallel()

	res, err := Resolve([]FeatureSpec{spec(featA, featB), spec(featB)}, []FeatureSpec{spec(featA, featB)})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(res.Conflicts) != 0 {
		t.Errorf("Conflicts = %v, want none", res.Conflicts)
	}
}

func TestResolve_InvalidID(t *testing.T) {
	t.Parallel()

	_, err := Resolve([]FeatureSpec{spec("Not A Reference!")}, nil)
	if !errors.Is(err, ErrInvalidFeatureID) {
		t.Fatalf("expected ErrInvalidFeatureID, got %v", err)
	}
}

func TestPrioritizeOrder(t *testing.T) {
	t.Parallel()

	specs := []FeatureSpec{spec(featA), spec(featB), spec(featC, featB)}
	res, err := Resolve(PrioritizeOrder(specs, []ID{featC, featZ}), nil)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	// featC is prioritized but still has to wait for featB.
	if got := res.IDs(); !slices.Equal(got, []ID{featA, featB, featC}) {
		t.Errorf("order = %v", got)
	}

	res, err = Resolve(PrioritizeOrder([]FeatureSpec{spec(featA), spec(featB)}, []ID{featB}), nil)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got := res.IDs(); !slices.Equal(got, []ID{featB, featA}) {
		t.Errorf("order = %v", got)
	}
}

func TestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id      ID
		local   bool
		short   string
		wantErr bool
	}{
		{"ghcr.io/devcontainers/features/node:1", false, "node", false},
		{"ghcr.io/devcontainers/features/go@sha256:0123456789012345678901234567890123456789012345678901234567890123", false, "go", false},
		{"./local-tool", true, "local-tool", false},
		{"../shared/feature", true, "feature", false},
		{"", false, "feature", true},
		{"ghcr.io/Upper/case", false, "case", true},
	}
	for _, tt := range tests {
		if got := tt.id.IsLocal(); got != tt.local {
			t.Errorf("%q.IsLocal() = %v", tt.id, got)
		}
		if got := tt.id.ShortName(); got != tt.short {
			t.Errorf("%q.ShortName() = %q, want %q", tt.id, got, tt.short)
		}
		if err := tt.id.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("%q.Validate() = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
	}
}
