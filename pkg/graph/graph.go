// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"sort"
)

// DependencyGraph is the combined node/edge set across every application
// with migrations: the implicit predecessor edge within each sequence, plus
// explicit edges from each unit's DependsOn list.
type DependencyGraph struct {
	sequences map[string]*Sequence
	// dependents is populated lazily by computeDependents: the inverse of
	// the dependency relation, insertion-ordered oldest-first.
	dependents     map[UnitRef][]UnitRef
	dependentsDone bool
}

// NewDependencyGraph validates and builds a DependencyGraph from a set of
// per-application sequences.
func NewDependencyGraph(sequences map[string]*Sequence) (*DependencyGraph, error) {
	g := &DependencyGraph{sequences: sequences}
	if err := g.validateEdges(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *DependencyGraph) validateEdges() error {
	// Deterministic iteration: applications sorted by name, units within an
	// application sorted by name (Sequence already guarantees this).
	apps := g.sortedApps()
	for _, app := range apps {
		seq := g.sequences[app]
		for _, name := range seq.Names() {
			u, _ := seq.Unit(name)
			for _, dep := range u.DependsOn {
				target, ok := g.sequences[dep.App]
				if !ok {
					return DependsOnUnmigratedApplicationError{Unit: u.Ref(), Application: dep.App}
				}
				targetUnit, ok := target.Unit(dep.Name)
				if !ok {
					return DependsOnUnknownMigrationError{Unit: u.Ref(), Target: dep}
				}
				if dep.App == app && !(targetUnit.Name < u.Name) {
					return DependsOnHigherMigrationError{Unit: u.Ref(), Target: dep}
				}
			}
		}
	}
	return nil
}

func (g *DependencyGraph) sortedApps() []string {
	apps := make([]string, 0, len(g.sequences))
	for app := range g.sequences {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	return apps
}

// Sequence returns the sequence for an application, or nil if it has none.
func (g *DependencyGraph) Sequence(app string) *Sequence {
	return g.sequences[app]
}

// Unit looks up a unit by its ref.
func (g *DependencyGraph) Unit(ref UnitRef) (*Unit, error) {
	seq, ok := g.sequences[ref.App]
	if !ok {
		return nil, NoMigrationsError{Application: ref.App}
	}
	u, ok := seq.Unit(ref.Name)
	if !ok {
		return nil, UnknownMigrationError{Application: ref.App, Ref: ref.Name}
	}
	return u, nil
}

// Dependencies returns a unit's direct dependencies: its implicit
// predecessor (if any) followed by each explicit DependsOn target.
func (g *DependencyGraph) Dependencies(ref UnitRef) ([]UnitRef, error) {
	seq, ok := g.sequences[ref.App]
	if !ok {
		return nil, NoMigrationsError{Application: ref.App}
	}
	u, ok := seq.Unit(ref.Name)
	if !ok {
		return nil, UnknownMigrationError{Application: ref.App, Ref: ref.Name}
	}

	var deps []UnitRef
	if pred := seq.Predecessor(ref.Name); pred != nil {
		deps = append(deps, pred.Ref())
	}
	deps = append(deps, u.DependsOn...)
	return deps, nil
}

// Dependents returns the units that directly depend on ref, in
// insertion-discovery order (oldest-registered first), computed once and
// cached.
func (g *DependencyGraph) Dependents(ref UnitRef) []UnitRef {
	g.ensureDependents()
	return g.dependents[ref]
}

func (g *DependencyGraph) ensureDependents() {
	if g.dependentsDone {
		return
	}
	g.dependents = make(map[UnitRef][]UnitRef)
	for _, app := range g.sortedApps() {
		seq := g.sequences[app]
		for _, name := range seq.Names() {
			u, _ := seq.Unit(name)
			ref := u.Ref()
			if pred := seq.Predecessor(name); pred != nil {
				predRef := pred.Ref()
				g.dependents[predRef] = append(g.dependents[predRef], ref)
			}
			for _, dep := range u.DependsOn {
				g.dependents[dep] = append(g.dependents[dep], ref)
			}
		}
	}
	g.dependentsDone = true
}

// Applications returns the set of application labels with a migration
// sequence, sorted.
func (g *DependencyGraph) Applications() []string {
	return g.sortedApps()
}

// Walk performs the shared depth-first traversal used by forwards/backwards
// plan computation: it follows `next` from target, appending each node
// after its own next-set, deduplicating in first-seen order, and detecting
// cycles via the active trace.
func (g *DependencyGraph) walk(target UnitRef, next func(UnitRef) ([]UnitRef, error)) ([]UnitRef, error) {
	var order []UnitRef
	seen := make(map[UnitRef]bool)
	onTrace := make(map[UnitRef]bool)
	var trace []UnitRef

	var visit func(ref UnitRef) error
	visit = func(ref UnitRef) error {
		if onTrace[ref] {
			return CircularDependencyError{Trace: append(append([]UnitRef{}, trace...), ref)}
		}
		if seen[ref] {
			return nil
		}
		onTrace[ref] = true
		trace = append(trace, ref)

		deps, err := next(ref)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			if err := visit(dep); err != nil {
				return err
			}
		}

		trace = trace[:len(trace)-1]
		onTrace[ref] = false

		if !seen[ref] {
			seen[ref] = true
			order = append(order, ref)
		}
		return nil
	}

	if err := visit(target); err != nil {
		return nil, err
	}
	return order, nil
}

// ForwardsPlan returns a depth-first traversal of target's Dependencies:
// each node is appended after its dependencies, duplicates removed in
// first-seen order, with target last.
func (g *DependencyGraph) ForwardsPlan(target UnitRef) ([]UnitRef, error) {
	return g.walk(target, g.Dependencies)
}

// BackwardsPlan returns the symmetric traversal over Dependents, with
// target last.
func (g *DependencyGraph) BackwardsPlan(target UnitRef) ([]UnitRef, error) {
	return g.walk(target, func(ref UnitRef) ([]UnitRef, error) {
		return g.Dependents(ref), nil
	})
}

// String is used in error messages and logs to name the graph's scope.
func (g *DependencyGraph) String() string {
	return fmt.Sprintf("DependencyGraph(%d applications)", len(g.sequences))
}
