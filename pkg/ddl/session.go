// SPDX-License-Identifier: Apache-2.0

package ddl

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ConstraintKind enumerates the constraint kinds the constraint cache
// tracks, per spec.md §4.3.
type ConstraintKind string

const (
	PrimaryKey ConstraintKind = "PRIMARY_KEY"
	Unique     ConstraintKind = "UNIQUE"
	ForeignKeyConstraint ConstraintKind = "FOREIGN_KEY"
	Check      ConstraintKind = "CHECK"
)

// ConstraintEntry names one constraint touching a column.
type ConstraintEntry struct {
	Kind ConstraintKind
	Name string
}

// tableCache is the per-table constraint cache entry: column -> set of
// constraint entries. A table with no entry (Invalidate deletes it) is
// INVALID, forcing the next lookup to repopulate it from the dialect's
// information schema.
type tableCache struct {
	valid   bool
	columns map[string]map[ConstraintEntry]bool
}

// ConstraintCache is populated lazily per (database, table) by querying the
// dialect's information schema once, per spec.md §4.3. It is private to one
// Session bound to one connection.
type ConstraintCache struct {
	mu     sync.Mutex
	tables map[string]*tableCache
}

func newConstraintCache() *ConstraintCache {
	return &ConstraintCache{tables: make(map[string]*tableCache)}
}

// Populate fills or re-fills the cache entry for table from a freshly
// queried column->entries map, e.g. after Invalidate forced a repopulation.
func (c *ConstraintCache) Populate(table string, columns map[string]map[ConstraintEntry]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[table] = &tableCache{valid: true, columns: columns}
}

// Invalidate marks table's cache entry INVALID; the next Lookup call must
// repopulate it. Any DDL touching the table calls this.
func (c *ConstraintCache) Invalidate(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, table)
}

// IsValid reports whether table currently has a populated cache entry.
func (c *ConstraintCache) IsValid(table string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[table]
	return ok && t.valid
}

// Find looks up a constraint of the given kind whose column set exactly
// matches columns. Returns ConstraintNotFoundError if the cache entry for
// table is populated but has no matching entry; callers must Populate
// before calling Find when IsValid is false.
func (c *ConstraintCache) Find(table string, kind ConstraintKind, columns []string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tables[table]
	if !ok {
		return "", ConstraintNotFoundError{Table: table, Kind: kind, Columns: columns}
	}

	// A constraint's column set is recorded once per involved column; an
	// exact-match search intersects the entries present under every column
	// in the request and requires that the resulting name's full column set
	// equals the request (no subset/superset match).
	counts := make(map[string]int)
	var names []string
	for _, col := range columns {
		for entry := range t.columns[col] {
			if entry.Kind != kind {
				continue
			}
			if counts[entry.Name] == 0 {
				names = append(names, entry.Name)
			}
			counts[entry.Name]++
		}
	}
	for _, name := range names {
		if counts[name] == len(columns) && t.exactColumnSet(kind, name, columns) {
			return name, nil
		}
	}
	return "", ConstraintNotFoundError{Table: table, Kind: kind, Columns: columns}
}

func (t *tableCache) exactColumnSet(kind ConstraintKind, name string, requested []string) bool {
	want := make(map[string]bool, len(requested))
	for _, c := range requested {
		want[c] = true
	}
	got := make(map[string]bool)
	for col, entries := range t.columns {
		for e := range entries {
			if e.Kind == kind && e.Name == name {
				got[col] = true
			}
		}
	}
	if len(got) != len(want) {
		return false
	}
	for c := range want {
		if !got[c] {
			return false
		}
	}
	return true
}

// Session is the per-connection mutable state of spec.md §3's "DDL
// Session": debug flag, dry-run flag, deferred SQL queue, pending
// post-creation signals, and the per-database constraint cache.
type Session struct {
	ID      string
	Debug   bool
	DryRun  bool
	Cache   *ConstraintCache
	deferred *DeferredQueue
	pending  []string // pending post-create signal names
	txDepth  int
}

// TransactionDepth returns the current nesting depth of dialect-level
// transactions/savepoints opened via StartTransaction.
func (s *Session) TransactionDepth() int { return s.txDepth }

// PushTransaction records the start of a nested transaction/savepoint,
// returning nothing; callers read the pre-push depth via TransactionDepth
// before calling this.
func (s *Session) PushTransaction() { s.txDepth++ }

// PopTransaction records the end of the innermost open transaction,
// returning its depth (0 = outermost) and whether one was open at all.
func (s *Session) PopTransaction() (int, bool) {
	if s.txDepth == 0 {
		return 0, false
	}
	s.txDepth--
	return s.txDepth, true
}

// NewSession creates a fresh DDL Session for the duration of one migrate
// operation.
func NewSession() *Session {
	return &Session{
		ID:       uuid.NewString(),
		Cache:    newConstraintCache(),
		deferred: NewDeferredQueue(),
	}
}

// Defer queues a DDL statement (typically a foreign-key constraint) whose
// execution is postponed until all referenced tables exist.
func (s *Session) Defer(id, sql string, run func(context.Context) error) {
	s.deferred.Add(id, sql, run)
}

// ExecuteDeferred drains and runs the deferred queue in insertion order.
func (s *Session) ExecuteDeferred(ctx context.Context) error {
	return s.deferred.Run(ctx)
}

// SignalPendingPostCreate records a post-creation signal to be drained
// before the runner's post_migrate event fires.
func (s *Session) SignalPendingPostCreate(name string) {
	s.pending = append(s.pending, name)
}

// DrainPendingPostCreate returns and clears the pending post-creation
// signal names.
func (s *Session) DrainPendingPostCreate() []string {
	out := s.pending
	s.pending = nil
	return out
}
