// SPDX-License-Identifier: Apache-2.0

package runner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/schemafwd/migrate/pkg/ddl"
	"github.com/schemafwd/migrate/pkg/graph"
	"github.com/schemafwd/migrate/pkg/runner"
	"github.com/schemafwd/migrate/pkg/schema"
)

type fakeConn struct{}

func (fakeConn) ExecContext(ctx context.Context, query string, args ...any) (ddl.Result, error) {
	return fakeResult{}, nil
}
func (fakeConn) QueryContext(ctx context.Context, query string, args ...any) (ddl.Rows, error) {
	return nil, nil
}
func (fakeConn) DialectName() string { return "fake" }
func (fakeConn) Commit() error       { return nil }
func (fakeConn) Rollback() error     { return nil }

type fakeResult struct{}

func (fakeResult) RowsAffected() (int64, error) { return 0, nil }

type fakeOpener struct{}

func (fakeOpener) BeginTx(ctx context.Context) (ddl.Transaction, error) {
	return fakeConn{}, nil
}

type fakeDialect struct{ txns bool }

func (d fakeDialect) Name() string                { return "fake" }
func (d fakeDialect) AllowsCombinedAlters() bool   { return true }
func (d fakeDialect) HasDDLTransactions() bool     { return d.txns }
func (d fakeDialect) HasCheckConstraints() bool    { return true }
func (d fakeDialect) SupportsForeignKeys() bool    { return true }
func (d fakeDialect) AlterStringSetType(c, t string) string  { return "" }
func (d fakeDialect) AlterStringSetNull(c string) string     { return "" }
func (d fakeDialect) AlterStringDropNull(c string) string    { return "" }
func (d fakeDialect) DeleteUniqueSQL(t, c string) string      { return "" }
func (d fakeDialect) DeletePrimaryKeySQL(t string) string     { return "" }
func (d fakeDialect) DeleteForeignKeySQL(t, c string) string  { return "" }
func (d fakeDialect) DropIndexString(i string) string         { return "" }
func (d fakeDialect) AddColumnString(t string, f ddl.Field) (string, error) { return "", nil }
func (d fakeDialect) DeleteColumnString(t, c string) string    { return "" }
func (d fakeDialect) MaxIdentifierLength() int                 { return 63 }

type fakeOps struct{}

func (fakeOps) CreateTable(ctx context.Context, conn ddl.Connection, sess *ddl.Session, name string, fields map[string]ddl.Field) error {
	return nil
}
func (fakeOps) DeleteTable(ctx context.Context, conn ddl.Connection, sess *ddl.Session, name string, cascade bool) error {
	return nil
}
func (fakeOps) RenameTable(ctx context.Context, conn ddl.Connection, sess *ddl.Session, oldName, newName string) error {
	return nil
}
func (fakeOps) AddColumn(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table, name string, field ddl.Field, keepDefault bool) error {
	return nil
}
func (fakeOps) DeleteColumn(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table, name string) error {
	return nil
}
func (fakeOps) RenameColumn(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table, oldName, newName string) error {
	return nil
}
func (fakeOps) AlterColumn(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table, name string, field ddl.Field, explicitName bool) error {
	return nil
}
func (fakeOps) CreateUnique(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table string, columns []string) error {
	return nil
}
func (fakeOps) DeleteUnique(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table string, columns []string) error {
	return nil
}
func (fakeOps) CreateIndex(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table string, columns []string, unique bool) error {
	return nil
}
func (fakeOps) DeleteIndex(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table string, columns []string) error {
	return nil
}
func (fakeOps) AddPrimaryKey(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table string, columns []string) error {
	return nil
}
func (fakeOps) DropPrimaryKey(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table string) error {
	return nil
}
func (fakeOps) ForeignKeySQL(fromTable, fromCol, toTable, toCol string) (string, string) {
	return "", ""
}
func (fakeOps) ExecuteDeferredSQL(ctx context.Context, conn ddl.Connection, sess *ddl.Session) error {
	return sess.ExecuteDeferred(ctx)
}
func (fakeOps) StartTransaction(ctx context.Context, conn ddl.Connection, sess *ddl.Session) error {
	return nil
}
func (fakeOps) CommitTransaction(ctx context.Context, conn ddl.Connection, sess *ddl.Session) error {
	return nil
}
func (fakeOps) RollbackTransaction(ctx context.Context, conn ddl.Connection, sess *ddl.Session) error {
	return nil
}

type fakeHistoryStore struct {
	applied map[graph.UnitRef]bool
}

func (h *fakeHistoryStore) Applied(ref graph.UnitRef) bool { return h.applied[ref] }
func (h *fakeHistoryStore) AppliedInApp(app string) []string {
	var out []string
	for ref := range h.applied {
		if ref.App == app {
			out = append(out, ref.Name)
		}
	}
	return out
}
func (h *fakeHistoryStore) All() []graph.UnitRef {
	out := make([]graph.UnitRef, 0, len(h.applied))
	for ref := range h.applied {
		out = append(out, ref)
	}
	return out
}
func (h *fakeHistoryStore) Record(ctx context.Context, conn ddl.Connection, ref graph.UnitRef) error {
	h.applied[ref] = true
	return nil
}
func (h *fakeHistoryStore) Forget(ctx context.Context, conn ddl.Connection, ref graph.UnitRef) error {
	delete(h.applied, ref)
	return nil
}

type fakeORMBuilder struct{}

func (fakeORMBuilder) Build(snapshot schema.Snapshot) (any, error) { return snapshot, nil }

func buildGraph(t *testing.T, calls *[]string) *graph.DependencyGraph {
	t.Helper()
	u1 := &graph.Unit{
		App:  "accounts",
		Name: "0001_initial",
		Forward: func(orm any, db *ddl.DB) error {
			*calls = append(*calls, "0001_initial:forward")
			return nil
		},
		Backward: func(orm any, db *ddl.DB) error {
			*calls = append(*calls, "0001_initial:backward")
			return nil
		},
	}
	seq, err := graph.NewSequence("accounts", []*graph.Unit{u1})
	require.NoError(t, err)
	g, err := graph.NewDependencyGraph(map[string]*graph.Sequence{"accounts": seq})
	require.NoError(t, err)
	return g
}

func TestRunner_MigrateMany_Forward(t *testing.T) {
	var calls []string
	g := buildGraph(t, &calls)
	hist := &fakeHistoryStore{applied: map[graph.UnitRef]bool{}}

	r := &runner.Runner{
		Opener:  fakeOpener{},
		Ops:     fakeOps{},
		Dialect: fakeDialect{txns: true},
		History: hist,
		Graph:   g,
		ORM:     fakeORMBuilder{},
	}

	plan := graph.Plan{{Unit: graph.UnitRef{App: "accounts", Name: "0001_initial"}, Direction: graph.Forward}}
	results, err := r.MigrateMany(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Applied)
	require.False(t, results[0].Faked)
	require.Equal(t, []string{"0001_initial:forward"}, calls)
	require.True(t, hist.Applied(graph.UnitRef{App: "accounts", Name: "0001_initial"}))
}

func TestRunner_MigrateMany_Fake(t *testing.T) {
	var calls []string
	g := buildGraph(t, &calls)
	hist := &fakeHistoryStore{applied: map[graph.UnitRef]bool{}}

	r := &runner.Runner{
		Opener:  fakeOpener{},
		Ops:     fakeOps{},
		Dialect: fakeDialect{txns: true},
		History: hist,
		Graph:   g,
		ORM:     fakeORMBuilder{},
	}

	plan := graph.Plan{{Unit: graph.UnitRef{App: "accounts", Name: "0001_initial"}, Direction: graph.Forward}}
	results, err := r.MigrateMany(context.Background(), plan, runner.WithFake())
	require.NoError(t, err)
	require.True(t, results[0].Faked)
	require.Empty(t, calls, "fake-applied units must not invoke the procedure")
	require.True(t, hist.Applied(graph.UnitRef{App: "accounts", Name: "0001_initial"}))
}

type recordingLogger struct {
	postMigrate []string
}

func (*recordingLogger) LogPreMigrate(string)                              {}
func (l *recordingLogger) LogPostMigrate(app string)                       { l.postMigrate = append(l.postMigrate, app) }
func (*recordingLogger) LogRanMigration(graph.UnitRef, graph.Direction)     {}
func (*recordingLogger) LogUnitStart(graph.UnitRef, graph.Direction)        {}
func (*recordingLogger) LogUnitComplete(graph.UnitRef, graph.Direction)     {}
func (*recordingLogger) LogUnitFake(graph.UnitRef, graph.Direction)        {}
func (*recordingLogger) LogDryRunStart(graph.UnitRef)                       {}
func (*recordingLogger) LogRecoveryHint(graph.UnitRef, string)              {}
func (*recordingLogger) Info(string, ...any)                                {}

type recordingLoader struct {
	loaded []string
}

func (l *recordingLoader) LoadInitialData(_ context.Context, app string) error {
	l.loaded = append(l.loaded, app)
	return nil
}

func buildInterleavedGraph(t *testing.T, calls *[]string) *graph.DependencyGraph {
	t.Helper()
	mk := func(app, name string) *graph.Unit {
		return &graph.Unit{
			App:  app,
			Name: name,
			Forward: func(orm any, db *ddl.DB) error {
				*calls = append(*calls, app+":"+name)
				return nil
			},
			Backward: func(orm any, db *ddl.DB) error { return nil },
		}
	}

	fakeappSeq, err := graph.NewSequence("fakeapp", []*graph.Unit{
		mk("fakeapp", "0001_spam"), mk("fakeapp", "0002_eggs"), mk("fakeapp", "0003_alter_spam"),
	})
	require.NoError(t, err)
	otherSeq, err := graph.NewSequence("otherfakeapp", []*graph.Unit{
		mk("otherfakeapp", "0001_first"), mk("otherfakeapp", "0002_second"), mk("otherfakeapp", "0003_third"),
	})
	require.NoError(t, err)

	g, err := graph.NewDependencyGraph(map[string]*graph.Sequence{
		"fakeapp":      fakeappSeq,
		"otherfakeapp": otherSeq,
	})
	require.NoError(t, err)
	return g
}

// TestRunner_MigrateMany_PostMigrateFiresOnceAtLastOccurrence exercises an
// interleaved multi-application plan (spec.md §8 scenario 3's shape): an
// application that reappears after another application's units must only
// fire LogPostMigrate/LoadInitialData once, at its last occurrence.
func TestRunner_MigrateMany_PostMigrateFiresOnceAtLastOccurrence(t *testing.T) {
	var calls []string
	g := buildInterleavedGraph(t, &calls)
	hist := &fakeHistoryStore{applied: map[graph.UnitRef]bool{}}

	r := &runner.Runner{
		Opener:  fakeOpener{},
		Ops:     fakeOps{},
		Dialect: fakeDialect{txns: true},
		History: hist,
		Graph:   g,
		ORM:     fakeORMBuilder{},
	}

	plan := graph.Plan{
		{Unit: graph.UnitRef{App: "fakeapp", Name: "0001_spam"}, Direction: graph.Forward},
		{Unit: graph.UnitRef{App: "otherfakeapp", Name: "0001_first"}, Direction: graph.Forward},
		{Unit: graph.UnitRef{App: "otherfakeapp", Name: "0002_second"}, Direction: graph.Forward},
		{Unit: graph.UnitRef{App: "fakeapp", Name: "0002_eggs"}, Direction: graph.Forward},
		{Unit: graph.UnitRef{App: "fakeapp", Name: "0003_alter_spam"}, Direction: graph.Forward},
		{Unit: graph.UnitRef{App: "otherfakeapp", Name: "0003_third"}, Direction: graph.Forward},
	}

	logger := &recordingLogger{}
	loader := &recordingLoader{}
	results, err := r.MigrateMany(context.Background(), plan, runner.WithLogger(logger), runner.WithLoadInitialData(loader))
	require.NoError(t, err)
	require.Len(t, results, 6)

	require.Equal(t, []string{"fakeapp", "otherfakeapp"}, logger.postMigrate,
		"each application's post-migrate event must fire exactly once, after its last step")
	require.ElementsMatch(t, []string{"fakeapp", "otherfakeapp"}, loader.loaded,
		"initial data must load exactly once per application, after its last step")
}

func TestRunner_MigrateMany_DryRunSwallowed(t *testing.T) {
	var calls []string
	g := buildGraph(t, &calls)
	hist := &fakeHistoryStore{applied: map[graph.UnitRef]bool{}}

	r := &runner.Runner{
		Opener:  fakeOpener{},
		Ops:     fakeOps{},
		Dialect: fakeDialect{txns: true},
		History: hist,
		Graph:   g,
		ORM:     fakeORMBuilder{},
	}

	plan := graph.Plan{{Unit: graph.UnitRef{App: "accounts", Name: "0001_initial"}, Direction: graph.Forward}}
	results, err := r.MigrateMany(context.Background(), plan, runner.WithDryRun(false))
	require.NoError(t, err)
	require.False(t, results[0].Applied)
	require.False(t, hist.Applied(graph.UnitRef{App: "accounts", Name: "0001_initial"}), "dry run must not write history")
}
