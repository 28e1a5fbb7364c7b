// SPDX-License-Identifier: Apache-2.0

package ddl

import "context"

// Connection is the narrow capability the DDL layer consumes from the host
// driver/pool, per spec.md §1's external-interfaces boundary: execute
// statement, cursor iteration, transaction control, dialect identity.
type Connection interface {
	ExecContext(ctx context.Context, query string, args ...any) (Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	DialectName() string
}

// Result is the minimal `database/sql`.Result-shaped capability Operations
// need back from ExecContext.
type Result interface {
	RowsAffected() (int64, error)
}

// Rows is the minimal `database/sql`.Rows-shaped capability Operations need
// for cursor iteration (e.g. reading information-schema queries when
// populating the constraint cache).
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Transaction is a Connection that can also be committed or rolled back; the
// runner opens one of these per migrate step and hands it to Operations as
// an ordinary Connection.
type Transaction interface {
	Connection
	Commit() error
	Rollback() error
}

// Operations is the dialect-neutral schema-operation API of spec.md §4.3.
// Each method is an independent observable side effect on conn.
type Operations interface {
	CreateTable(ctx context.Context, conn Connection, sess *Session, name string, fields map[string]Field) error
	DeleteTable(ctx context.Context, conn Connection, sess *Session, name string, cascade bool) error
	RenameTable(ctx context.Context, conn Connection, sess *Session, oldName, newName string) error

	AddColumn(ctx context.Context, conn Connection, sess *Session, table, name string, field Field, keepDefault bool) error
	DeleteColumn(ctx context.Context, conn Connection, sess *Session, table, name string) error
	RenameColumn(ctx context.Context, conn Connection, sess *Session, table, oldName, newName string) error
	AlterColumn(ctx context.Context, conn Connection, sess *Session, table, name string, field Field, explicitName bool) error

	CreateUnique(ctx context.Context, conn Connection, sess *Session, table string, columns []string) error
	DeleteUnique(ctx context.Context, conn Connection, sess *Session, table string, columns []string) error

	CreateIndex(ctx context.Context, conn Connection, sess *Session, table string, columns []string, unique bool) error
	DeleteIndex(ctx context.Context, conn Connection, sess *Session, table string, columns []string) error

	AddPrimaryKey(ctx context.Context, conn Connection, sess *Session, table string, columns []string) error
	DropPrimaryKey(ctx context.Context, conn Connection, sess *Session, table string) error

	ForeignKeySQL(fromTable, fromCol, toTable, toCol string) (id, sql string)

	ExecuteDeferredSQL(ctx context.Context, conn Connection, sess *Session) error

	StartTransaction(ctx context.Context, conn Connection, sess *Session) error
	CommitTransaction(ctx context.Context, conn Connection, sess *Session) error
	RollbackTransaction(ctx context.Context, conn Connection, sess *Session) error
}

// Dialect exposes the tuning knobs of spec.md §4.3 that Operations
// implementations consult to decide how to render SQL for their engine.
type Dialect interface {
	Name() string

	AllowsCombinedAlters() bool
	HasDDLTransactions() bool
	HasCheckConstraints() bool
	SupportsForeignKeys() bool

	AlterStringSetType(column, newType string) string
	AlterStringSetNull(column string) string
	AlterStringDropNull(column string) string

	DeleteUniqueSQL(table, constraint string) string
	DeletePrimaryKeySQL(table string) string
	DeleteForeignKeySQL(table, constraint string) string
	DropIndexString(index string) string
	AddColumnString(table string, field Field) (string, error)
	DeleteColumnString(table, column string) string

	MaxIdentifierLength() int
}
