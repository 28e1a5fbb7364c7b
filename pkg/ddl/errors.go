// SPDX-License-Identifier: Apache-2.0

package ddl

import "fmt"

// TableAlreadyExistsError mirrors the teacher's one-struct-per-condition
// error style for the DDL layer.
type TableAlreadyExistsError struct{ Name string }

func (e TableAlreadyExistsError) Error() string {
	return fmt.Sprintf("table %q already exists", e.Name)
}

type TableDoesNotExistError struct{ Name string }

func (e TableDoesNotExistError) Error() string {
	return fmt.Sprintf("table %q does not exist", e.Name)
}

type ColumnAlreadyExistsError struct{ Table, Name string }

func (e ColumnAlreadyExistsError) Error() string {
	return fmt.Sprintf("column %q already exists on table %q", e.Name, e.Table)
}

type ColumnDoesNotExistError struct{ Table, Name string }

func (e ColumnDoesNotExistError) Error() string {
	return fmt.Sprintf("column %q does not exist on table %q", e.Name, e.Table)
}

// NotNullWithoutDefaultError signals add_column with NOT NULL and no default
// on an engine that cannot backfill one, per spec.md §4.3.
type NotNullWithoutDefaultError struct{ Table, Column string }

func (e NotNullWithoutDefaultError) Error() string {
	return fmt.Sprintf("column %q on table %q is NOT NULL but has no default and the engine cannot supply one",
		e.Column, e.Table)
}

// ConstraintNotFoundError signals that delete_unique/delete_index could not
// find a constraint matching the given column set in the cache.
type ConstraintNotFoundError struct {
	Table   string
	Kind    ConstraintKind
	Columns []string
}

func (e ConstraintNotFoundError) Error() string {
	return fmt.Sprintf("no %s constraint found on table %q for columns %v", e.Kind, e.Table, e.Columns)
}

// UnsupportedOperationError signals that a dialect does not support the
// requested operation at all (e.g. unique constraints on an engine that can
// only emulate them with a warning).
type UnsupportedOperationError struct {
	Dialect   string
	Operation string
}

func (e UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Dialect, e.Operation)
}

// GeneratedSQLInvalidError wraps a parse failure on SQL the DDL layer itself
// generated: a sanity-check failure, never a user input error.
type GeneratedSQLInvalidError struct {
	SQL   string
	Cause error
}

func (e GeneratedSQLInvalidError) Error() string {
	return fmt.Sprintf("generated SQL failed to parse: %v (sql: %s)", e.Cause, e.SQL)
}

func (e GeneratedSQLInvalidError) Unwrap() error { return e.Cause }
