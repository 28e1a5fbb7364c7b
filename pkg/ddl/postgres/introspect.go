// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"fmt"

	"github.com/schemafwd/migrate/pkg/ddl"
)

// constraintQuery mirrors the kind of information_schema join the teacher's
// pkg/state read_schema function runs against pg_catalog, scoped here to
// just the constraint-cache's needs: column name, constraint kind, and
// constraint name for every constraint on one table.
const constraintQuery = `
SELECT
	a.attname AS column_name,
	CASE con.contype
		WHEN 'p' THEN 'PRIMARY_KEY'
		WHEN 'u' THEN 'UNIQUE'
		WHEN 'f' THEN 'FOREIGN_KEY'
		WHEN 'c' THEN 'CHECK'
	END AS kind,
	con.conname AS constraint_name
FROM pg_constraint con
JOIN pg_class rel ON rel.oid = con.conrelid
JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = ANY(con.conkey)
WHERE rel.relname = $1
`

// PopulateConstraintCache queries table's constraints from Postgres's
// catalog and populates sess's constraint cache entry, per spec.md §4.3:
// "populated lazily per (database, table) by querying the dialect's
// information schema once."
func PopulateConstraintCache(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table string) error {
	rows, err := conn.QueryContext(ctx, constraintQuery, table)
	if err != nil {
		return fmt.Errorf("querying constraints for table %q: %w", table, err)
	}
	defer rows.Close()

	columns := make(map[string]map[ddl.ConstraintEntry]bool)
	for rows.Next() {
		var col, kind, name string
		if err := rows.Scan(&col, &kind, &name); err != nil {
			return err
		}
		if columns[col] == nil {
			columns[col] = make(map[ddl.ConstraintEntry]bool)
		}
		columns[col][ddl.ConstraintEntry{Kind: ddl.ConstraintKind(kind), Name: name}] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	sess.Cache.Populate(table, columns)
	return nil
}

// EnsureConstraintCache populates the cache entry for table only if it is
// not already valid, so repeated lookups within one Session don't requery.
func EnsureConstraintCache(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table string) error {
	if sess.Cache.IsValid(table) {
		return nil
	}
	return PopulateConstraintCache(ctx, conn, sess, table)
}
