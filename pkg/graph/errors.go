// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"strings"
)

// NoMigrationsError is a soft signal: the named application has no
// migrations container at all. Callers may skip the application.
type NoMigrationsError struct {
	Application string
}

func (e NoMigrationsError) Error() string {
	return fmt.Sprintf("application %q has no migrations", e.Application)
}

// UnknownMigrationError signals that a migration reference (exact name or
// prefix) could not be resolved to any unit.
type UnknownMigrationError struct {
	Application string
	Ref         string
	Cause       error
}

func (e UnknownMigrationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unknown migration %q in application %q: %v", e.Ref, e.Application, e.Cause)
	}
	return fmt.Sprintf("unknown migration %q in application %q", e.Ref, e.Application)
}

func (e UnknownMigrationError) Unwrap() error { return e.Cause }

// BrokenMigrationError signals that a unit file exists but could not be
// loaded for a reason other than a missing symbol; the original cause is
// preserved.
type BrokenMigrationError struct {
	Application string
	UnitName    string
	Cause       error
}

func (e BrokenMigrationError) Error() string {
	return fmt.Sprintf("broken migration %s.%s: %v", e.Application, e.UnitName, e.Cause)
}

func (e BrokenMigrationError) Unwrap() error { return e.Cause }

// MultiplePrefixMatchesError signals that a target prefix matched more than
// one unit name within an application.
type MultiplePrefixMatchesError struct {
	Application string
	Prefix      string
	Matches     []string
}

func (e MultiplePrefixMatchesError) Error() string {
	return fmt.Sprintf("prefix %q matches multiple migrations in %q: %s",
		e.Prefix, e.Application, strings.Join(e.Matches, ", "))
}

// CircularDependencyError signals a cycle found while resolving
// dependencies. Trace holds the full visitation path, ending at the unit
// that closes the cycle.
type CircularDependencyError struct {
	Trace []UnitRef
}

func (e CircularDependencyError) Error() string {
	parts := make([]string, len(e.Trace))
	for i, r := range e.Trace {
		parts[i] = r.String()
	}
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(parts, " -> "))
}

// DependsOnHigherMigrationError signals that a unit's explicit dependency
// points to a lexicographically greater unit in the same application,
// inverting the implicit predecessor order.
type DependsOnHigherMigrationError struct {
	Unit   UnitRef
	Target UnitRef
}

func (e DependsOnHigherMigrationError) Error() string {
	return fmt.Sprintf("%s depends on %s, which is not lower in the same application's sequence",
		e.Unit, e.Target)
}

// DependsOnUnknownMigrationError signals that a unit's explicit dependency
// names a unit that does not exist in the target application's sequence.
type DependsOnUnknownMigrationError struct {
	Unit   UnitRef
	Target UnitRef
}

func (e DependsOnUnknownMigrationError) Error() string {
	return fmt.Sprintf("%s depends on unknown migration %s", e.Unit, e.Target)
}

// DependsOnUnmigratedApplicationError signals that a unit's explicit
// dependency names an application with no migration sequence at all.
type DependsOnUnmigratedApplicationError struct {
	Unit        UnitRef
	Application string
}

func (e DependsOnUnmigratedApplicationError) Error() string {
	return fmt.Sprintf("%s depends on application %q which has no migrations", e.Unit, e.Application)
}

// GhostMigrationsError signals that History contains records whose unit is
// not present on disk. The core never deletes these automatically.
type GhostMigrationsError struct {
	Records []UnitRef
}

func (e GhostMigrationsError) Error() string {
	parts := make([]string, len(e.Records))
	for i, r := range e.Records {
		parts[i] = r.String()
	}
	return fmt.Sprintf("ghost migrations found in history (not present on disk), manual repair required: %s",
		strings.Join(parts, ", "))
}

// InconsistentMigrationHistoryError signals that the planned set of units
// conflicts with the already-applied set: a later-ordered unit was applied
// ahead of an earlier prerequisite (forward), or vice versa (backward).
type InconsistentMigrationHistoryError struct {
	Problems []HistoryProblem
}

// HistoryProblem names one applied-out-of-order pair.
type HistoryProblem struct {
	Applied UnitRef
	Missing UnitRef
}

func (e InconsistentMigrationHistoryError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = fmt.Sprintf("%s applied without prerequisite %s", p.Applied, p.Missing)
	}
	return fmt.Sprintf("inconsistent migration history: %s", strings.Join(parts, "; "))
}
