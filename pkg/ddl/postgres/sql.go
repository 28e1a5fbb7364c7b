// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/schemafwd/migrate/pkg/ddl"
)

func quoteIdent(name string) string {
	return pq.QuoteIdentifier(name)
}

// renderColumn renders one column definition, adding a PRIMARY KEY clause
// when withPK is true and the field is a primary key. No column comment is
// rendered.
func renderColumn(f ddl.Field, withPK bool) (string, error) {
	var b strings.Builder
	b.WriteString(quoteIdent(f.Column))
	b.WriteString(" ")
	b.WriteString(f.DBType)

	if withPK && f.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	if !f.Null {
		b.WriteString(" NOT NULL")
	}
	if f.Unique && !f.PrimaryKey {
		b.WriteString(" UNIQUE")
	}
	if def, ok := f.EffectiveDefault(); ok {
		b.WriteString(" DEFAULT ")
		b.WriteString(def)
	}

	return b.String(), nil
}

// validateGeneratedSQL parses sql with pg_query_go as a pre-flight sanity
// check before it is ever sent to the database: the DDL layer must never
// hand the connection a string it cannot even tokenize as Postgres SQL.
// This is a defensive check on OUR OWN generator output, not on user input.
func validateGeneratedSQL(sql string) error {
	if _, err := pg_query.Parse(sql); err != nil {
		return ddl.GeneratedSQLInvalidError{SQL: sql, Cause: err}
	}
	return nil
}

func quoteIdentList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func uniqueConstraintName(table string, columns []string) string {
	return fmt.Sprintf("%s_%s_key", table, strings.Join(columns, "_"))
}

func indexName(table string, columns []string) string {
	return fmt.Sprintf("%s_%s_idx", table, strings.Join(columns, "_"))
}
