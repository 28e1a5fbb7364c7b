// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"fmt"

	"github.com/schemafwd/migrate/pkg/ddl"
)

// Operations is the Postgres implementation of pkg/ddl.Operations.
type Operations struct {
	Dialect Dialect
}

var _ ddl.Operations = (*Operations)(nil)

func New() *Operations {
	return &Operations{}
}

func (o *Operations) exec(ctx context.Context, conn ddl.Connection, sql string, args ...any) error {
	if err := validateGeneratedSQL(sql); err != nil {
		return err
	}
	_, err := conn.ExecContext(ctx, sql, args...)
	return err
}

func (o *Operations) CreateTable(ctx context.Context, conn ddl.Connection, sess *ddl.Session, name string, fields map[string]ddl.Field) error {
	var cols []string
	var deferredFKs []ddl.Field
	for _, f := range fields {
		colSQL, err := renderColumn(f, true)
		if err != nil {
			return err
		}
		cols = append(cols, colSQL)
		if f.Rel != nil {
			deferredFKs = append(deferredFKs, f)
		}
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), joinCols(cols))
	if err := o.exec(ctx, conn, stmt); err != nil {
		return err
	}

	sess.Cache.Invalidate(name)

	for _, f := range deferredFKs {
		id, sql := o.ForeignKeySQL(name, f.Column, f.Rel.ToTable, f.Rel.ToColumn)
		sess.Defer(id, sql, func(ctx context.Context) error { return o.exec(ctx, conn, sql) })
	}
	return nil
}

func (o *Operations) DeleteTable(ctx context.Context, conn ddl.Connection, sess *ddl.Session, name string, cascade bool) error {
	stmt := "DROP TABLE " + quoteIdent(name)
	if cascade {
		stmt += " CASCADE"
	}
	if err := o.exec(ctx, conn, stmt); err != nil {
		return err
	}
	sess.Cache.Invalidate(name)
	return nil
}

func (o *Operations) RenameTable(ctx context.Context, conn ddl.Connection, sess *ddl.Session, oldName, newName string) error {
	if oldName == newName {
		return nil
	}
	stmt := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdent(oldName), quoteIdent(newName))
	if err := o.exec(ctx, conn, stmt); err != nil {
		return err
	}
	sess.Cache.Invalidate(oldName)
	sess.Cache.Invalidate(newName)
	return nil
}

func (o *Operations) AddColumn(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table, name string, field ddl.Field, keepDefault bool) error {
	field.Column = name
	if !field.Null && !field.HasDefault() {
		return ddl.NotNullWithoutDefaultError{Table: table, Column: name}
	}

	stmt, err := o.Dialect.AddColumnString(table, field)
	if err != nil {
		return err
	}
	if err := o.exec(ctx, conn, stmt); err != nil {
		return err
	}
	sess.Cache.Invalidate(table)

	if !keepDefault && field.HasDefault() {
		drop := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", quoteIdent(table), quoteIdent(name))
		if err := o.exec(ctx, conn, drop); err != nil {
			return err
		}
	}

	if field.Rel != nil {
		id, sql := o.ForeignKeySQL(table, name, field.Rel.ToTable, field.Rel.ToColumn)
		sess.Defer(id, sql, func(ctx context.Context) error { return o.exec(ctx, conn, sql) })
	}
	return nil
}

func (o *Operations) DeleteColumn(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table, name string) error {
	if err := EnsureConstraintCache(ctx, conn, sess, table); err != nil {
		return err
	}
	if fk, err := sess.Cache.Find(table, ddl.ForeignKeyConstraint, []string{name}); err == nil {
		if err := o.exec(ctx, conn, o.Dialect.DeleteForeignKeySQL(table, fk)); err != nil {
			return err
		}
	}
	if err := o.exec(ctx, conn, o.Dialect.DeleteColumnString(table, name)); err != nil {
		return err
	}
	sess.Cache.Invalidate(table)
	return nil
}

func (o *Operations) RenameColumn(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table, oldName, newName string) error {
	if oldName == newName {
		return nil
	}
	stmt := fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
		quoteIdent(table), quoteIdent(oldName), quoteIdent(newName))
	if err := o.exec(ctx, conn, stmt); err != nil {
		return err
	}
	sess.Cache.Invalidate(table)
	return nil
}

func (o *Operations) AlterColumn(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table, name string, field ddl.Field, explicitName bool) error {
	col := name
	if explicitName && field.Column != "" {
		col = field.Column
	}

	var subAlters []string
	if field.DBType != "" {
		subAlters = append(subAlters, o.Dialect.AlterStringSetType(col, field.DBType))
	}
	if field.Null {
		subAlters = append(subAlters, o.Dialect.AlterStringSetNull(col))
	} else {
		subAlters = append(subAlters, o.Dialect.AlterStringDropNull(col))
	}
	if def, ok := field.EffectiveDefault(); ok {
		subAlters = append(subAlters, fmt.Sprintf("ALTER COLUMN %s SET DEFAULT %s", quoteIdent(col), def))
	}

	if len(subAlters) == 0 {
		return nil
	}

	if o.Dialect.AllowsCombinedAlters() {
		stmt := "ALTER TABLE " + quoteIdent(table) + " " + joinCols(subAlters)
		if err := o.exec(ctx, conn, stmt); err != nil {
			return err
		}
	} else {
		for _, sub := range subAlters {
			if err := o.exec(ctx, conn, "ALTER TABLE "+quoteIdent(table)+" "+sub); err != nil {
				return err
			}
		}
	}
	sess.Cache.Invalidate(table)
	return nil
}

func (o *Operations) CreateUnique(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table string, columns []string) error {
	name := uniqueConstraintName(table, columns)
	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s)",
		quoteIdent(table), quoteIdent(name), quoteIdentList(columns))
	if err := o.exec(ctx, conn, stmt); err != nil {
		return err
	}
	sess.Cache.Invalidate(table)
	return nil
}

func (o *Operations) DeleteUnique(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table string, columns []string) error {
	if err := EnsureConstraintCache(ctx, conn, sess, table); err != nil {
		return err
	}
	name, err := sess.Cache.Find(table, ddl.Unique, columns)
	if err != nil {
		return err
	}
	if err := o.exec(ctx, conn, o.Dialect.DeleteUniqueSQL(table, name)); err != nil {
		return err
	}
	sess.Cache.Invalidate(table)
	return nil
}

func (o *Operations) CreateIndex(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table string, columns []string, unique bool) error {
	name := indexName(table, columns)
	kw := ""
	if unique {
		kw = "UNIQUE "
	}
	stmt := fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", kw, quoteIdent(name), quoteIdent(table), quoteIdentList(columns))
	return o.exec(ctx, conn, stmt)
}

func (o *Operations) DeleteIndex(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table string, columns []string) error {
	name := indexName(table, columns)
	return o.exec(ctx, conn, o.Dialect.DropIndexString(name))
}

func (o *Operations) AddPrimaryKey(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table string, columns []string) error {
	if err := o.exec(ctx, conn, o.Dialect.DeletePrimaryKeySQL(table)); err != nil {
		return err
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s)", quoteIdent(table), quoteIdentList(columns))
	if err := o.exec(ctx, conn, stmt); err != nil {
		return err
	}
	sess.Cache.Invalidate(table)
	return nil
}

func (o *Operations) DropPrimaryKey(ctx context.Context, conn ddl.Connection, sess *ddl.Session, table string) error {
	if err := o.exec(ctx, conn, o.Dialect.DeletePrimaryKeySQL(table)); err != nil {
		return err
	}
	sess.Cache.Invalidate(table)
	return nil
}

func (o *Operations) ForeignKeySQL(fromTable, fromCol, toTable, toCol string) (string, string) {
	name := ddl.ForeignKeyConstraintName(fromTable, fromCol, toTable, toCol, o.Dialect.MaxIdentifierLength())
	sql := fmt.Sprintf(
		"ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) DEFERRABLE INITIALLY DEFERRED",
		quoteIdent(fromTable), quoteIdent(name), quoteIdent(fromCol), quoteIdent(toTable), quoteIdent(toCol),
	)
	return "fk_" + name, sql
}

func (o *Operations) ExecuteDeferredSQL(ctx context.Context, conn ddl.Connection, sess *ddl.Session) error {
	return sess.ExecuteDeferred(ctx)
}

// StartTransaction/CommitTransaction/RollbackTransaction implement nesting
// via savepoints, per spec.md §4.3 ("nestable only where the dialect
// supports savepoints; else flat"). The outer transaction boundary itself
// is owned by the runner (pkg/runner), which holds the *actual* BEGIN/COMMIT
// around a unit's procedure; these calls only ever nest inside that.
func (o *Operations) StartTransaction(ctx context.Context, conn ddl.Connection, sess *ddl.Session) error {
	depth := sess.TransactionDepth()
	sess.PushTransaction()
	if depth == 0 {
		return nil // outer transaction is already open, owned by the runner
	}
	return o.exec(ctx, conn, fmt.Sprintf("SAVEPOINT %s", quoteIdent(savepointName(depth))))
}

func (o *Operations) CommitTransaction(ctx context.Context, conn ddl.Connection, sess *ddl.Session) error {
	depth, ok := sess.PopTransaction()
	if !ok {
		return fmt.Errorf("commit_transaction called with no open transaction")
	}
	if depth == 0 {
		return nil
	}
	return o.exec(ctx, conn, fmt.Sprintf("RELEASE SAVEPOINT %s", quoteIdent(savepointName(depth))))
}

func (o *Operations) RollbackTransaction(ctx context.Context, conn ddl.Connection, sess *ddl.Session) error {
	depth, ok := sess.PopTransaction()
	if !ok {
		return fmt.Errorf("rollback_transaction called with no open transaction")
	}
	if depth == 0 {
		return nil // the runner rolls back the outer transaction itself
	}
	return o.exec(ctx, conn, fmt.Sprintf("ROLLBACK TO SAVEPOINT %s", quoteIdent(savepointName(depth))))
}

func savepointName(depth int) string {
	return fmt.Sprintf("ddl_sp_%d", depth)
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
