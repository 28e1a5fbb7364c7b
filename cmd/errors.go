// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"

	"github.com/schemafwd/migrate/pkg/graph"
)

// ExitCode maps err to spec.md §6's taxonomy: 0 for a nil error, 1 for a
// user-correctable error (bad reference, ambiguous prefix, inconsistent
// history, circular dependency), 2 for anything else, treated as an
// infrastructure failure (broken migration file, database error).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var (
		unknown      graph.UnknownMigrationError
		multiMatch   graph.MultiplePrefixMatchesError
		noMigrations graph.NoMigrationsError
		circular     graph.CircularDependencyError
		inconsistent graph.InconsistentMigrationHistoryError
		dependsHigh  graph.DependsOnHigherMigrationError
		dependsUnk   graph.DependsOnUnknownMigrationError
		dependsUnapp graph.DependsOnUnmigratedApplicationError
	)
	switch {
	case errors.As(err, &unknown),
		errors.As(err, &multiMatch),
		errors.As(err, &noMigrations),
		errors.As(err, &circular),
		errors.As(err, &inconsistent),
		errors.As(err, &dependsHigh),
		errors.As(err, &dependsUnk),
		errors.As(err, &dependsUnapp):
		return 1
	default:
		return 2
	}
}
