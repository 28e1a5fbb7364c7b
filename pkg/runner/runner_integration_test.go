// SPDX-License-Identifier: Apache-2.0

package runner_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemafwd/migrate/pkg/connection"
	"github.com/schemafwd/migrate/pkg/ddl"
	"github.com/schemafwd/migrate/pkg/ddl/postgres"
	"github.com/schemafwd/migrate/pkg/graph"
	"github.com/schemafwd/migrate/pkg/history"
	"github.com/schemafwd/migrate/pkg/runner"
	"github.com/schemafwd/migrate/pkg/schema"
	"github.com/schemafwd/migrate/pkg/testutils"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

type identityORMBuilder struct{}

func (identityORMBuilder) Build(snapshot schema.Snapshot) (any, error) { return snapshot, nil }

func createAccountsTable(_ any, db *ddl.DB) error {
	return db.CreateTable("accounts", map[string]ddl.Field{
		"id":    {Column: "id", DBType: "serial", PrimaryKey: true},
		"email": {Column: "email", DBType: "text"},
	})
}

func dropAccountsTable(_ any, db *ddl.DB) error {
	return db.DeleteTable("accounts", false)
}

// TestRunner_MigrateMany_AppliesAndRollsBackAgainstRealDatabase exercises
// the runner's full stack (Opener -> ddl.DB -> postgres.Operations) against
// a live container, rather than the fakes runner_test.go uses for pure
// orchestration logic.
func TestRunner_MigrateMany_AppliesAndRollsBackAgainstRealDatabase(t *testing.T) {
	t.Parallel()

	testutils.WithConnAndConnectionToContainer(t, func(conn *connection.Conn, db *sql.DB) {
		ctx := context.Background()

		hist, err := history.Open(ctx, db, testutils.TestHistorySchema())
		require.NoError(t, err)

		unit := &graph.Unit{
			App:      "accounts",
			Name:     "0001_initial",
			Forward:  createAccountsTable,
			Backward: dropAccountsTable,
		}
		seq, err := graph.NewSequence("accounts", []*graph.Unit{unit})
		require.NoError(t, err)
		g, err := graph.NewDependencyGraph(map[string]*graph.Sequence{"accounts": seq})
		require.NoError(t, err)

		r := &runner.Runner{
			Opener:  conn,
			Ops:     postgres.New(),
			Dialect: postgres.Dialect{},
			History: hist,
			Graph:   g,
			ORM:     identityORMBuilder{},
		}

		forward := graph.Plan{{Unit: graph.UnitRef{App: "accounts", Name: "0001_initial"}, Direction: graph.Forward}}
		results, err := r.MigrateMany(ctx, forward)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.True(t, results[0].Applied)
		assert.True(t, hist.Applied(graph.UnitRef{App: "accounts", Name: "0001_initial"}))

		_, err = db.ExecContext(ctx, `INSERT INTO accounts (email) VALUES ('a@example.com')`)
		require.NoError(t, err, "forward procedure must have created the accounts table")

		backward := graph.Plan{{Unit: graph.UnitRef{App: "accounts", Name: "0001_initial"}, Direction: graph.Backward}}
		results, err = r.MigrateMany(ctx, backward)
		require.NoError(t, err)
		assert.True(t, results[0].Applied)
		assert.False(t, hist.Applied(graph.UnitRef{App: "accounts", Name: "0001_initial"}))

		_, err = db.ExecContext(ctx, `SELECT 1 FROM accounts`)
		assert.Error(t, err, "backward procedure must have dropped the accounts table")
	})
}

func TestRunner_MigrateMany_FakeAgainstRealHistory(t *testing.T) {
	t.Parallel()

	testutils.WithConnAndConnectionToContainer(t, func(conn *connection.Conn, db *sql.DB) {
		ctx := context.Background()

		hist, err := history.Open(ctx, db, testutils.TestHistorySchema())
		require.NoError(t, err)

		unit := &graph.Unit{
			App:      "accounts",
			Name:     "0001_initial",
			Forward:  createAccountsTable,
			Backward: dropAccountsTable,
		}
		seq, err := graph.NewSequence("accounts", []*graph.Unit{unit})
		require.NoError(t, err)
		g, err := graph.NewDependencyGraph(map[string]*graph.Sequence{"accounts": seq})
		require.NoError(t, err)

		r := &runner.Runner{
			Opener:  conn,
			Ops:     postgres.New(),
			Dialect: postgres.Dialect{},
			History: hist,
			Graph:   g,
			ORM:     identityORMBuilder{},
		}

		plan := graph.Plan{{Unit: graph.UnitRef{App: "accounts", Name: "0001_initial"}, Direction: graph.Forward}}
		results, err := r.MigrateMany(ctx, plan, runner.WithFake())
		require.NoError(t, err)
		assert.True(t, results[0].Faked)
		assert.True(t, hist.Applied(graph.UnitRef{App: "accounts", Name: "0001_initial"}))

		_, err = db.ExecContext(ctx, `SELECT 1 FROM accounts`)
		assert.Error(t, err, "fake apply must not have run the forward procedure")
	})
}
