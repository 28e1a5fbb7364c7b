// SPDX-License-Identifier: Apache-2.0

package graph

import "sort"

// AppliedSet is the minimal view of History the planner needs: whether a
// given unit is currently recorded as applied.
type AppliedSet interface {
	Applied(ref UnitRef) bool
	// AppliedInApp returns the names of every applied unit belonging to
	// app, in no particular order.
	AppliedInApp(app string) []string
	// All returns every applied unit ref, for ghost detection.
	All() []UnitRef
}

// Step is one (unit, direction) entry in a Plan.
type Step struct {
	Unit      UnitRef
	Direction Direction
}

// Plan is an ordered list of steps without duplicates, satisfying the
// dependency graph's topological constraints and the current History.
type Plan []Step

// ResolveTarget resolves a target reference against an application's
// sequence per spec.md §4.1: empty string means "the last unit of the
// application", ZeroTarget means "unapply everything", otherwise an exact
// name or unique prefix.
func ResolveTarget(g *DependencyGraph, app, ref string) (UnitRef, bool, error) {
	seq := g.Sequence(app)
	if seq == nil {
		return UnitRef{}, false, NoMigrationsError{Application: app}
	}

	if ref == "" {
		last := seq.Last()
		if last == nil {
			return UnitRef{}, false, NoMigrationsError{Application: app}
		}
		return last.Ref(), false, nil
	}

	if ref == ZeroTarget {
		return UnitRef{App: app, Name: ZeroTarget}, false, nil
	}

	name, soft, err := seq.ResolvePrefix(ref)
	if err != nil {
		return UnitRef{}, false, err
	}
	return UnitRef{App: app, Name: name}, soft, nil
}

// SelectDirection implements spec.md §4.1's direction selection: zero means
// backward; an application with nothing applied means forward; otherwise
// the target is compared against the highest applied unit of its
// application.
func SelectDirection(g *DependencyGraph, target UnitRef, applied AppliedSet) Direction {
	if target.Name == ZeroTarget {
		return Backward
	}

	appliedNames := applied.AppliedInApp(target.App)
	if len(appliedNames) == 0 {
		return Forward
	}

	sort.Strings(appliedNames)
	highest := appliedNames[len(appliedNames)-1]

	switch {
	case target.Name > highest:
		return Forward
	case target.Name < highest:
		return Backward
	default:
		return Forward // equal: no-op, caller short-circuits before building a plan
	}
}

// BuildPlan computes the ordered Plan to reach target from the current
// History, validating consistency (unless merge or skip is requested) and
// signalling GhostMigrationsError/InconsistentMigrationHistoryError as
// needed.
func BuildPlan(g *DependencyGraph, target UnitRef, applied AppliedSet, merge, skip bool) (Plan, error) {
	if err := checkGhosts(g, applied); err != nil {
		return nil, err
	}

	if target.Name == ZeroTarget {
		return buildBackwardPlan(g, target, applied, merge, skip)
	}

	dir := SelectDirection(g, target, applied)
	if dir == Forward {
		if applied.Applied(target) {
			return Plan{}, nil // no-op: target equals highest applied unit
		}
		return buildForwardPlan(g, target, applied, merge, skip)
	}
	return buildBackwardPlan(g, target, applied, merge, skip)
}

func buildForwardPlan(g *DependencyGraph, target UnitRef, applied AppliedSet, merge, skip bool) (Plan, error) {
	order, err := g.ForwardsPlan(target)
	if err != nil {
		return nil, err
	}

	var problems []HistoryProblem
	var steps Plan
	for _, ref := range order {
		if applied.Applied(ref) {
			continue
		}
		back, err := g.BackwardsPlan(ref)
		if err != nil {
			return nil, err
		}
		for _, b := range back {
			if b == ref {
				continue
			}
			if applied.Applied(b) {
				problems = append(problems, HistoryProblem{Applied: b, Missing: ref})
			}
		}
		steps = append(steps, Step{Unit: ref, Direction: Forward})
	}

	if len(problems) > 0 && !merge && !skip {
		return nil, InconsistentMigrationHistoryError{Problems: problems}
	}
	return steps, nil
}

func buildBackwardPlan(g *DependencyGraph, target UnitRef, applied AppliedSet, merge, skip bool) (Plan, error) {
	var order []UnitRef
	if target.Name == ZeroTarget {
		seq := g.Sequence(target.App)
		if seq == nil {
			return nil, NoMigrationsError{Application: target.App}
		}
		// Unapply every applied unit of the application, each walked via its
		// own backwards plan so cross-application dependents are included.
		names := seq.Names()
		seen := make(map[UnitRef]bool)
		var combined []UnitRef
		for i := len(names) - 1; i >= 0; i-- {
			ref := UnitRef{App: target.App, Name: names[i]}
			if !applied.Applied(ref) {
				continue
			}
			back, err := g.BackwardsPlan(ref)
			if err != nil {
				return nil, err
			}
			for _, b := range back {
				if !seen[b] {
					seen[b] = true
					combined = append(combined, b)
				}
			}
		}
		order = combined
	} else {
		back, err := g.BackwardsPlan(target)
		if err != nil {
			return nil, err
		}
		order = back
	}

	var problems []HistoryProblem
	var steps Plan
	for _, ref := range order {
		if !applied.Applied(ref) {
			continue
		}
		fwd, err := g.ForwardsPlan(ref)
		if err != nil {
			return nil, err
		}
		for _, f := range fwd {
			if f == ref {
				continue
			}
			if !applied.Applied(f) {
				problems = append(problems, HistoryProblem{Applied: ref, Missing: f})
			}
		}
		steps = append(steps, Step{Unit: ref, Direction: Backward})
	}

	if len(problems) > 0 && !merge && !skip {
		return nil, InconsistentMigrationHistoryError{Problems: problems}
	}
	return steps, nil
}

// checkGhosts signals GhostMigrationsError if History contains a record for
// a unit that cannot be located in the graph.
func checkGhosts(g *DependencyGraph, applied AppliedSet) error {
	var ghosts []UnitRef
	for _, ref := range applied.All() {
		if _, err := g.Unit(ref); err != nil {
			ghosts = append(ghosts, ref)
		}
	}
	if len(ghosts) > 0 {
		return GhostMigrationsError{Records: ghosts}
	}
	return nil
}
