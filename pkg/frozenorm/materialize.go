// SPDX-License-Identifier: Apache-2.0

package frozenorm

import (
	"fmt"

	"github.com/oapi-codegen/nullable"

	"github.com/schemafwd/migrate/pkg/ddl"
)

// dbTypeByClass maps a field's short class name to its Postgres column type,
// mirroring the live field object's db_type() that a real migration's
// generated code would call. Field classes with a size parameter (CharField,
// DecimalField) are special-cased in Materialize.
var dbTypeByClass = map[string]string{
	"AutoField":        "serial",
	"BigAutoField":      "bigserial",
	"IntegerField":      "integer",
	"BigIntegerField":   "bigint",
	"SmallIntegerField": "smallint",
	"BooleanField":      "boolean",
	"TextField":         "text",
	"DateField":         "date",
	"DateTimeField":     "timestamptz",
	"TimeField":         "time",
	"FloatField":        "double precision",
	"UUIDField":         "uuid",
	"BinaryField":       "bytea",
	"ForeignKey":        "integer",
	"OneToOneField":     "integer",
}

// Materialize converts a built field prototype into the ddl.Field the DDL
// layer needs to render a column, the way a live field object's db_type()/
// column/null/primary_key/unique/has_default() accessors would be consulted
// by a hand-written migration. column is the field's name within its model,
// used as the fallback column name when no explicit "db_column" keyword was
// recorded.
func (f FieldValue) Materialize(column string) ddl.Field {
	out := ddl.Field{Column: column}

	if v, ok := f.Keyword["db_column"]; ok {
		if s, ok := v.(string); ok {
			out.Column = s
		}
	}

	out.DBType = dbType(f)

	if v, ok := f.Keyword["null"]; ok {
		out.Null, _ = v.(bool)
	}
	if v, ok := f.Keyword["primary_key"]; ok {
		out.PrimaryKey, _ = v.(bool)
	}
	if v, ok := f.Keyword["unique"]; ok {
		out.Unique, _ = v.(bool)
	}
	if v, ok := f.Keyword["db_tablespace"]; ok {
		if s, ok := v.(string); ok {
			out.DBTablespace = s
		}
	}
	if v, ok := f.Keyword["default"]; ok {
		out.Default = nullable.NewNullableWithValue(fmt.Sprintf("%v", v))
	}
	if f.ClassName == "ForeignKey" || f.ClassName == "OneToOneField" {
		out.Rel = foreignKeyOf(f)
	}

	return out
}

func dbType(f FieldValue) string {
	switch f.ClassName {
	case "CharField":
		if n, ok := f.Keyword["max_length"]; ok {
			return fmt.Sprintf("varchar(%v)", n)
		}
		return "varchar"
	case "DecimalField":
		digits, decimals := f.Keyword["max_digits"], f.Keyword["decimal_places"]
		if digits != nil && decimals != nil {
			return fmt.Sprintf("numeric(%v, %v)", digits, decimals)
		}
		return "numeric"
	}
	if t, ok := dbTypeByClass[f.ClassName]; ok {
		return t
	}
	return "text"
}

// ColumnMap materializes every non-Meta field of m into the map CreateTable
// expects.
func (m FrozenModel) ColumnMap() map[string]ddl.Field {
	out := make(map[string]ddl.Field, len(m.Fields))
	for name, fv := range m.Fields {
		out[name] = fv.Materialize(name)
	}
	return out
}

func foreignKeyOf(f FieldValue) *ddl.ForeignKey {
	if len(f.Positional) == 0 {
		return nil
	}
	target, ok := f.Positional[0].(FrozenModel)
	if !ok {
		return nil
	}
	return &ddl.ForeignKey{ToTable: target.Key.AppLabel() + "_" + target.Key.ModelName(), ToColumn: "id"}
}
