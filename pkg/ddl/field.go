// SPDX-License-Identifier: Apache-2.0

package ddl

import "github.com/oapi-codegen/nullable"

// ForeignKey describes the target of a field's relation, enough for
// foreign_key_sql (spec.md §4.3): the referenced table and column.
type ForeignKey struct {
	ToTable  string
	ToColumn string
}

// Field is the live-field-object contract the DDL layer consumes, per
// spec.md §4.3: "a FieldDescriptor or a live field object exposing
// db_type(), column, null, primary_key, unique, has_default(),
// get_default(), db_tablespace, rel (optional foreign reference)".
//
// Default uses nullable.Nullable so the tri-state "no default / explicit
// NULL default / explicit non-NULL default" the spec calls out
// (has_default()/get_default()) is represented directly instead of
// overloading a bare pointer.
type Field struct {
	Column      string
	DBType      string
	Null        bool
	PrimaryKey  bool
	Unique      bool
	Default     nullable.Nullable[string]
	DBTablespace string
	Rel         *ForeignKey
	Comment     string
}

// HasDefault reports whether the field carries an explicit default value,
// mirroring the live field object's has_default().
func (f Field) HasDefault() bool {
	return f.Default.IsSpecified()
}

// GetDefault returns the default expression, or "" if none was set.
func (f Field) GetDefault() string {
	v, _ := f.Default.Get()
	return v
}

// DefaultSuppressedTypes are db_type() values for which the dialect cannot
// carry a DEFAULT clause (text/blob/geometry on certain engines, per
// spec.md §4.3's field-to-SQL contract).
var DefaultSuppressedTypes = map[string]bool{
	"text":     true,
	"bytea":    true,
	"geometry": true,
}

// EffectiveDefault returns the default to render in generated SQL, applying
// the suppression rule for types the dialect cannot default.
func (f Field) EffectiveDefault() (string, bool) {
	if !f.HasDefault() {
		return "", false
	}
	if DefaultSuppressedTypes[f.DBType] {
		return "", false
	}
	return f.GetDefault(), true
}
