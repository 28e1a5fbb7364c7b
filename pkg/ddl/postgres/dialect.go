// SPDX-License-Identifier: Apache-2.0

// Package postgres is the Postgres implementation of the dialect-neutral
// DDL layer (pkg/ddl): it renders pkg/ddl.Operations into Postgres SQL,
// one DBAction per side effect, the way the teacher's pkg/migrations
// op_*.go / dbactions.go pair renders a pgroll Operation into Postgres SQL.
package postgres

import "github.com/schemafwd/migrate/pkg/ddl"

// MaxIdentifierLength is Postgres's NAMEDATALEN-1 limit.
// https://www.postgresql.org/docs/current/sql-syntax-lexical.html#SQL-SYNTAX-IDENTIFIERS
const MaxIdentifierLength = 63

// Dialect is the Postgres tuning-knob set for pkg/ddl.Dialect. Postgres has
// transactional DDL, combinable ALTER TABLE sub-clauses, CHECK constraints,
// and full foreign-key support, so most knobs are simply "yes"; it exists
// mainly so other engines in ddl/<engine> packages (none of which this
// module ships) can override the same small interface.
type Dialect struct{}

var _ ddl.Dialect = Dialect{}

func (Dialect) Name() string                  { return "postgres" }
func (Dialect) AllowsCombinedAlters() bool    { return true }
func (Dialect) HasDDLTransactions() bool      { return true }
func (Dialect) HasCheckConstraints() bool     { return true }
func (Dialect) SupportsForeignKeys() bool     { return true }
func (Dialect) MaxIdentifierLength() int      { return MaxIdentifierLength }

func (Dialect) AlterStringSetType(column, newType string) string {
	return "ALTER COLUMN " + quoteIdent(column) + " TYPE " + newType
}

func (Dialect) AlterStringSetNull(column string) string {
	return "ALTER COLUMN " + quoteIdent(column) + " DROP NOT NULL"
}

func (Dialect) AlterStringDropNull(column string) string {
	return "ALTER COLUMN " + quoteIdent(column) + " SET NOT NULL"
}

func (Dialect) DeleteUniqueSQL(table, constraint string) string {
	return "ALTER TABLE " + quoteIdent(table) + " DROP CONSTRAINT IF EXISTS " + quoteIdent(constraint)
}

func (Dialect) DeletePrimaryKeySQL(table string) string {
	return "ALTER TABLE " + quoteIdent(table) + " DROP CONSTRAINT IF EXISTS " + quoteIdent(table+"_pkey")
}

func (Dialect) DeleteForeignKeySQL(table, constraint string) string {
	return "ALTER TABLE " + quoteIdent(table) + " DROP CONSTRAINT IF EXISTS " + quoteIdent(constraint)
}

func (Dialect) DropIndexString(index string) string {
	return "DROP INDEX IF EXISTS " + quoteIdent(index)
}

func (Dialect) DeleteColumnString(table, column string) string {
	return "ALTER TABLE " + quoteIdent(table) + " DROP COLUMN IF EXISTS " + quoteIdent(column)
}

func (Dialect) AddColumnString(table string, field ddl.Field) (string, error) {
	colSQL, err := renderColumn(field, true)
	if err != nil {
		return "", err
	}
	return "ALTER TABLE " + quoteIdent(table) + " ADD COLUMN " + colSQL, nil
}
