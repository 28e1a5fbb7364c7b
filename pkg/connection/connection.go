// SPDX-License-Identifier: Apache-2.0

// Package connection wraps a *sql.DB with the retry behavior the runner and
// DDL layer need: lock_timeout errors from Postgres are retried with
// exponential backoff rather than surfaced to the caller, since they are
// almost always transient contention with another session, not a real
// failure of the statement.
package connection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cloudflare/backoff"
	"github.com/lib/pq"

	"github.com/schemafwd/migrate/pkg/ddl"
)

const (
	lockNotAvailableErrorCode pq.ErrorCode = "55P03"
	maxBackoffDuration                     = 1 * time.Minute
	backoffInterval                        = 1 * time.Second
)

// Conn is the narrow capability the migration engine needs from a live
// database connection, satisfying pkg/ddl.Connection.
type Conn struct {
	db *sql.DB
}

var _ ddl.Connection = (*Conn)(nil)

// Open connects to postgresURL and, if lockTimeoutMillis is nonzero, sets
// lock_timeout for every statement issued over the returned connection.
func Open(ctx context.Context, postgresURL string, lockTimeoutMillis int) (*Conn, error) {
	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if lockTimeoutMillis > 0 {
		stmt := fmt.Sprintf("SET lock_timeout = %d", lockTimeoutMillis)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting lock_timeout: %w", err)
		}
	}
	return &Conn{db: db}, nil
}

// WithDB wraps an already-open *sql.DB, e.g. one opened against a
// testcontainers-managed database in tests.
func WithDB(db *sql.DB) *Conn {
	return &Conn{db: db}
}

func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (ddl.Result, error) {
	b := backoff.New(maxBackoffDuration, backoffInterval)
	for {
		res, err := c.db.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		if !isLockTimeout(err) {
			return nil, err
		}
		if err := sleepCtx(ctx, b.Duration()); err != nil {
			return nil, err
		}
	}
}

func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (ddl.Rows, error) {
	b := backoff.New(maxBackoffDuration, backoffInterval)
	for {
		rows, err := c.db.QueryContext(ctx, query, args...)
		if err == nil {
			return rows, nil
		}
		if !isLockTimeout(err) {
			return nil, err
		}
		if err := sleepCtx(ctx, b.Duration()); err != nil {
			return nil, err
		}
	}
}

func (c *Conn) DialectName() string { return "postgres" }

// BeginTx opens a real database/sql transaction; callers adapt it to
// ddl.Connection via Tx below so that DDL issued within the runner's
// transaction boundary uses the same Conn-shaped interface.
func (c *Conn) BeginTx(ctx context.Context) (ddl.Transaction, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (c *Conn) Close() error { return c.db.Close() }

// DB exposes the underlying *sql.DB, for callers (e.g. pkg/history.Open)
// that need database/sql directly rather than the ddl.Connection narrowing.
func (c *Conn) DB() *sql.DB { return c.db }

// Tx adapts a *sql.Tx to ddl.Connection, so one Session's DDL calls run
// inside the runner's outer transaction without any DDL code knowing the
// difference between a bare connection and an open transaction.
type Tx struct {
	tx *sql.Tx
}

var _ ddl.Transaction = (*Tx)(nil)

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (ddl.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (ddl.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *Tx) DialectName() string { return "postgres" }

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

func isLockTimeout(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == lockNotAvailableErrorCode
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
