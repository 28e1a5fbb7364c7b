// SPDX-License-Identifier: Apache-2.0

// Package history is the on-disk record of which migration units have been
// applied: a single Postgres table, queried and written through a Store that
// satisfies pkg/graph.AppliedSet so the planner never depends on storage
// directly.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/schemafwd/migrate/pkg/ddl"
	"github.com/schemafwd/migrate/pkg/graph"
)

// sqlInit mirrors the teacher's versioned-schema-table bootstrap: one
// CREATE SCHEMA/CREATE TABLE pair, idempotent, run once per Store.
const sqlInit = `
CREATE SCHEMA IF NOT EXISTS %[1]s;

CREATE TABLE IF NOT EXISTS %[1]s.migration_history (
	app			TEXT NOT NULL,
	name		TEXT NOT NULL,
	applied_at	TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,

	PRIMARY KEY (app, name)
);
`

// Record is one applied-migration row.
type Record struct {
	App       string
	Name      string
	AppliedAt time.Time
}

// Store is the Postgres-backed implementation of graph.AppliedSet, also
// providing the mutating operations the runner needs: Record and Forget.
type Store struct {
	db     *sql.DB
	schema string

	// cache mirrors the table's current contents so Applied/AppliedInApp/All
	// (consulted once per planning pass, and again per step during apply) do
	// not round-trip to Postgres on every lookup.
	cache map[graph.UnitRef]time.Time
}

var _ graph.AppliedSet = (*Store)(nil)

// Open ensures the history schema/table exist in db under schemaName and
// loads the current applied set into memory.
func Open(ctx context.Context, db *sql.DB, schemaName string) (*Store, error) {
	if schemaName == "" {
		schemaName = "schemafwd"
	}
	init := fmt.Sprintf(sqlInit, pq.QuoteIdentifier(schemaName))
	if _, err := db.ExecContext(ctx, init); err != nil {
		return nil, fmt.Errorf("initializing history table: %w", err)
	}

	s := &Store{db: db, schema: schemaName, cache: make(map[graph.UnitRef]time.Time)}
	if err := s.reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) table() string {
	return pq.QuoteIdentifier(s.schema) + ".migration_history"
}

func (s *Store) reload(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "SELECT app, name, applied_at FROM "+s.table())
	if err != nil {
		return fmt.Errorf("loading migration history: %w", err)
	}
	defer rows.Close()

	cache := make(map[graph.UnitRef]time.Time)
	for rows.Next() {
		var app, name string
		var at time.Time
		if err := rows.Scan(&app, &name, &at); err != nil {
			return err
		}
		cache[graph.UnitRef{App: app, Name: name}] = at
	}
	if err := rows.Err(); err != nil {
		return err
	}
	s.cache = cache
	return nil
}

// Applied reports whether ref has an applied-migration row.
func (s *Store) Applied(ref graph.UnitRef) bool {
	_, ok := s.cache[ref]
	return ok
}

// AppliedInApp returns the names of every applied unit of app.
func (s *Store) AppliedInApp(app string) []string {
	var names []string
	for ref := range s.cache {
		if ref.App == app {
			names = append(names, ref.Name)
		}
	}
	return names
}

// All returns every applied unit ref.
func (s *Store) All() []graph.UnitRef {
	out := make([]graph.UnitRef, 0, len(s.cache))
	for ref := range s.cache {
		out = append(out, ref)
	}
	return out
}

// Record marks ref as applied, via conn so the write participates in the
// runner's outer transaction.
func (s *Store) Record(ctx context.Context, conn ddl.Connection, ref graph.UnitRef) error {
	stmt := fmt.Sprintf("INSERT INTO %s (app, name) VALUES ($1, $2) ON CONFLICT (app, name) DO NOTHING", s.table())
	if _, err := conn.ExecContext(ctx, stmt, ref.App, ref.Name); err != nil {
		return fmt.Errorf("recording applied migration %s: %w", ref, err)
	}
	s.cache[ref] = time.Now()
	return nil
}

// Forget removes ref's applied-migration row, called when a unit is
// unapplied.
func (s *Store) Forget(ctx context.Context, conn ddl.Connection, ref graph.UnitRef) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE app = $1 AND name = $2", s.table())
	if _, err := conn.ExecContext(ctx, stmt, ref.App, ref.Name); err != nil {
		return fmt.Errorf("forgetting applied migration %s: %w", ref, err)
	}
	delete(s.cache, ref)
	return nil
}
