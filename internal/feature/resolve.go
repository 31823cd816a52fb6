// SPDX-License-Identifier: MPL-2.0

package feature

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/devcon/devcon/internal/dag"
)

var (
	// ErrCyclicDependency is returned when dependsOn/installsAfter form a cycle.
	ErrCyclicDependency = errors.New("cyclic feature dependency")

	// ErrUnknownDependency is returned when a dependsOn target is not declared.
	ErrUnknownDependency = errors.New("unknown feature dependency")
)

type (
	// Resolution is the merged, ordered feature set.
	Resolution struct {
		// Features are in install order: every feature follows its dependencies.
		Features []FeatureSpec
		// Conflicts lists features whose stored and project dependsOn differ.
		// The project claim won in each case.
		Conflicts []Conflict
	}

	// Conflict records contradicting dependency claims for one feature.
	Conflict struct {
		ID      ID
		Stored  []ID
		Project []ID
	}

	// CyclicDependencyError reports the shortest dependency cycle.
	CyclicDependencyError struct {
		// Cycle starts at its earliest-declared member; the edge back to
		// Cycle[0] is implied.
		Cycle []ID
	}

	// UnknownDependencyError is returned when Feature depends on an ID that
	// is not part of the input set.
	UnknownDependencyError struct {
		Feature    ID
		Dependency ID
	}
)

// Error implements the error interface.
func (e *CyclicDependencyError) Error() string {
	parts := make([]string, 0, len(e.Cycle)+1)
	for _, id := range e.Cycle {
		parts = append(parts, string(id))
	}
	if len(parts) > 0 {
		parts = append(parts, parts[0])
	}
	return "cyclic feature dependency: " + strings.Join(parts, " -> ")
}

// Unwrap exposes ErrCyclicDependency and ErrFeature.
func (e *CyclicDependencyError) Unwrap() []error { return []error{ErrCyclicDependency, ErrFeature} }

// Error implements the error interface.
func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("feature %s depends on %s, which is not declared", e.Feature, e.Dependency)
}

// Unwrap exposes ErrUnknownDependency and ErrFeature.
func (e *UnknownDependencyError) Unwrap() []error {
	return []error{ErrUnknownDependency, ErrFeature}
}

// String renders a conflict for log output.
func (c Conflict) String() string {
	return fmt.Sprintf("%s: stored dependsOn %v, project dependsOn %v (project wins)", c.ID, c.Stored, c.Project)
}

// Resolve merges stored and project features and orders them so that each
// feature comes after everything it depends on. Ties keep the merged
// declaration order (stored first, then project).
//
// Duplicate IDs collapse into the slot of their first occurrence. Options are
// merged key by key with the later declaration winning. A non-empty project
// dependsOn replaces the stored one, and a differing claim is reported in
// Resolution.Conflicts. installsAfter lists are unioned.
//
// Resolve performs no I/O.
func Resolve(declared, projectDeclared []FeatureSpec) (*Resolution, error) {
	merged, conflicts, err := merge(declared, projectDeclared)
	if err != nil {
		return nil, err
	}

	g := dag.New()
	index := make(map[ID]int, len(merged))
	for i, spec := range merged {
		g.AddNode(string(spec.ID))
		index[spec.ID] = i
	}
	for _, spec := range merged {
		for _, dep := range spec.DependsOn {
			if _, ok := index[dep]; !ok {
				return nil, &UnknownDependencyError{Feature: spec.ID, Dependency: dep}
			}
			g.AddEdge(string(dep), string(spec.ID))
		}
		for _, after := range spec.InstallsAfter {
			if _, ok := index[after]; ok {
				g.AddEdge(string(after), string(spec.ID))
			}
		}
	}

	order, err := g.TopologicalSort()
	if err != nil {
		var cycleErr *dag.CycleError
		if errors.As(err, &cycleErr) {
			return nil, &CyclicDependencyError{Cycle: IDs(cycleErr.Cycle...)}
		}
		return nil, err
	}

	res := &Resolution{Features: make([]FeatureSpec, 0, len(order)), Conflicts: conflicts}
	for _, name := range order {
		res.Features = append(res.Features, merged[index[ID(name)]])
	}
	return res, nil
}

// IDs returns the resolved feature IDs in install order.
func (r *Resolution) IDs() []ID {
	out := make([]ID, 0, len(r.Features))
	for _, f := range r.Features {
		out = append(out, f.ID)
	}
	return out
}

// Lookup returns the resolved spec for id.
func (r *Resolution) Lookup(id ID) (FeatureSpec, bool) {
	for _, f := range r.Features {
		if f.ID == id {
			return f, true
		}
	}
	return FeatureSpec{}, false
}

// PrioritizeOrder moves the listed IDs to the front of specs, in the given
// order, keeping everything else in place. Since Resolve breaks ties by
// declaration order, this implements devcontainer.json's
// overrideFeatureInstallOrder without ever violating a dependency.
func PrioritizeOrder(specs []FeatureSpec, priority []ID) []FeatureSpec {
	if len(priority) == 0 {
		return specs
	}
	out := make([]FeatureSpec, 0, len(specs))
	taken := make([]bool, len(specs))
	for _, id := range priority {
		for i, spec := range specs {
			if !taken[i] && spec.ID == id {
				out = append(out, spec)
				taken[i] = true
			}
		}
	}
	for i, spec := range specs {
		if !taken[i] {
			out = append(out, spec)
		}
	}
	return out
}

func merge(declared, projectDeclared []FeatureSpec) ([]FeatureSpec, []Conflict, error) {
	var (
		merged    []FeatureSpec
		conflicts []Conflict
		slot      = map[ID]int{}
	)

	add := func(in FeatureSpec, project bool) error {
		if err := in.ID.Validate(); err != nil {
			return err
		}
		in = in.Clone()
		if project && in.Source == "" {
			in.Source = SourceProject
		} else if in.Source == "" {
			in.Source = SourceStored
		}

		i, seen := slot[in.ID]
		if !seen {
			slot[in.ID] = len(merged)
			if in.Options == nil {
				in.Options = map[string]any{}
			}
			merged = append(merged, in)
			return nil
		}

		cur := &merged[i]
		if cur.Options == nil {
			cur.Options = map[string]any{}
		}
		for k, v := range in.Options {
			cur.Options[k] = v
		}
		if len(in.DependsOn) > 0 {
			if project && cur.Source != SourceProject && len(cur.DependsOn) > 0 && !sameIDs(cur.DependsOn, in.DependsOn) {
				conflicts = append(conflicts, Conflict{ID: in.ID, Stored: cur.DependsOn, Project: in.DependsOn})
			}
			cur.DependsOn = in.DependsOn
		}
		for _, after := range in.InstallsAfter {
			if !slices.Contains(cur.InstallsAfter, after) {
				cur.InstallsAfter = append(cur.InstallsAfter, after)
			}
		}
		if project {
			cur.Source = SourceProject
		}
		return nil
	}

	for _, spec := range declared {
		if err := add(spec, false); err != nil {
			return nil, nil, err
		}
	}
	for _, spec := range projectDeclared {
		if err := add(spec, true); err != nil {
			return nil, nil, err
		}
	}
	return merged, conflicts, nil
}

// sameIDs compares two dependency lists as sets.
func sameIDs(a, b []ID) bool {
	if len(a) != len(b) {
		return false
	}
	as, bs := slices.Clone(a), slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}
