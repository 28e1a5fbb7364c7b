// SPDX-License-Identifier: Apache-2.0

package connection_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemafwd/migrate/pkg/connection"
	"github.com/schemafwd/migrate/pkg/testutils"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func TestOpen_SetsLockTimeoutOnSession(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(_ *sql.DB, connStr string) {
		conn, err := connection.Open(context.Background(), connStr, 250)
		require.NoError(t, err)
		defer conn.Close()

		rows, err := conn.QueryContext(context.Background(), "SHOW lock_timeout")
		require.NoError(t, err)
		defer rows.Close()

		require.True(t, rows.Next())
		var lockTimeout string
		require.NoError(t, rows.Scan(&lockTimeout))
		assert.Equal(t, "250ms", lockTimeout)
	})
}

func TestOpen_ZeroLockTimeoutLeavesDefault(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(_ *sql.DB, connStr string) {
		conn, err := connection.Open(context.Background(), connStr, 0)
		require.NoError(t, err)
		defer conn.Close()

		rows, err := conn.QueryContext(context.Background(), "SHOW lock_timeout")
		require.NoError(t, err)
		defer rows.Close()

		require.True(t, rows.Next())
		var lockTimeout string
		require.NoError(t, rows.Scan(&lockTimeout))
		assert.Equal(t, "0", lockTimeout)
	})
}

func TestBeginTx_CommitAndRollback(t *testing.T) {
	t.Parallel()

	testutils.WithConnAndConnectionToContainer(t, func(conn *connection.Conn, _ *sql.DB) {
		ctx := context.Background()

		tx, err := conn.BeginTx(ctx)
		require.NoError(t, err)

		_, err = tx.ExecContext(ctx, "CREATE TABLE widgets (id int)")
		require.NoError(t, err)
		require.NoError(t, tx.Rollback())

		_, err = conn.ExecContext(ctx, "SELECT 1 FROM widgets")
		require.Error(t, err, "rolled-back transaction must not have created the table")

		tx2, err := conn.BeginTx(ctx)
		require.NoError(t, err)
		_, err = tx2.ExecContext(ctx, "CREATE TABLE widgets (id int)")
		require.NoError(t, err)
		require.NoError(t, tx2.Commit())

		_, err = conn.ExecContext(ctx, "SELECT 1 FROM widgets")
		require.NoError(t, err, "committed transaction must have created the table")
	})
}

func TestConn_DialectName(t *testing.T) {
	t.Parallel()

	testutils.WithConnAndConnectionToContainer(t, func(conn *connection.Conn, _ *sql.DB) {
		assert.Equal(t, "postgres", conn.DialectName())
	})
}

func TestWithDB_SatisfiesDDLConnection(t *testing.T) {
	t.Parallel()

	testutils.WithConnectionToContainer(t, func(db *sql.DB, _ string) {
		conn := connection.WithDB(db)
		assert.Equal(t, "postgres", conn.DialectName())
		assert.Same(t, db, conn.DB())
	})
}
