// SPDX-License-Identifier: Apache-2.0

package ddl

import "context"

// DB is the handle a unit's forward/backward procedure calls into, binding
// an Operations implementation to one transaction and Session for the
// duration of a single migrate step. It exists so migration authors write
// db.AddColumn(...) rather than threading ctx/conn/sess through every call,
// mirroring the "self.db" accessor South-style migrations call into.
type DB struct {
	ctx  context.Context
	ops  Operations
	conn Connection
	sess *Session
}

// NewDB binds ops to conn and sess for the duration of ctx.
func NewDB(ctx context.Context, ops Operations, conn Connection, sess *Session) *DB {
	return &DB{ctx: ctx, ops: ops, conn: conn, sess: sess}
}

func (d *DB) CreateTable(name string, fields map[string]Field) error {
	return d.ops.CreateTable(d.ctx, d.conn, d.sess, name, fields)
}

func (d *DB) DeleteTable(name string, cascade bool) error {
	return d.ops.DeleteTable(d.ctx, d.conn, d.sess, name, cascade)
}

func (d *DB) RenameTable(oldName, newName string) error {
	return d.ops.RenameTable(d.ctx, d.conn, d.sess, oldName, newName)
}

func (d *DB) AddColumn(table, name string, field Field, keepDefault bool) error {
	return d.ops.AddColumn(d.ctx, d.conn, d.sess, table, name, field, keepDefault)
}

func (d *DB) DeleteColumn(table, name string) error {
	return d.ops.DeleteColumn(d.ctx, d.conn, d.sess, table, name)
}

func (d *DB) RenameColumn(table, oldName, newName string) error {
	return d.ops.RenameColumn(d.ctx, d.conn, d.sess, table, oldName, newName)
}

func (d *DB) AlterColumn(table, name string, field Field, explicitName bool) error {
	return d.ops.AlterColumn(d.ctx, d.conn, d.sess, table, name, field, explicitName)
}

func (d *DB) CreateUnique(table string, columns []string) error {
	return d.ops.CreateUnique(d.ctx, d.conn, d.sess, table, columns)
}

func (d *DB) DeleteUnique(table string, columns []string) error {
	return d.ops.DeleteUnique(d.ctx, d.conn, d.sess, table, columns)
}

func (d *DB) CreateIndex(table string, columns []string, unique bool) error {
	return d.ops.CreateIndex(d.ctx, d.conn, d.sess, table, columns, unique)
}

func (d *DB) DeleteIndex(table string, columns []string) error {
	return d.ops.DeleteIndex(d.ctx, d.conn, d.sess, table, columns)
}

func (d *DB) AddPrimaryKey(table string, columns []string) error {
	return d.ops.AddPrimaryKey(d.ctx, d.conn, d.sess, table, columns)
}

func (d *DB) DropPrimaryKey(table string) error {
	return d.ops.DropPrimaryKey(d.ctx, d.conn, d.sess, table)
}

func (d *DB) ForeignKeySQL(fromTable, fromCol, toTable, toCol string) (id, sql string) {
	return d.ops.ForeignKeySQL(fromTable, fromCol, toTable, toCol)
}

// Session returns the Session bound to this DB, for procedures that need to
// defer a statement directly (e.g. a deferred foreign key).
func (d *DB) Session() *Session { return d.sess }
