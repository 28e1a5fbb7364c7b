// SPDX-License-Identifier: Apache-2.0

package autodetect

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"golang.org/x/tools/imports"

	"github.com/schemafwd/migrate/pkg/schema"
)

// unitTemplate renders one generated migration unit's Go source: the
// embedded post-migration snapshot, a Forward/Backward pair dispatching on
// the detected actions, and the unitregistry.Register call that makes the
// unit visible to pkg/graph.Discover's Loader, the way a hand-written unit
// would wire itself up.
var unitTemplate = template.Must(template.New("unit").Parse(`// Code generated by makemigrations. DO NOT EDIT.

package {{.Package}}

import (
	"fmt"

	"github.com/schemafwd/migrate/pkg/ddl"
	"github.com/schemafwd/migrate/pkg/frozenorm"
	"github.com/schemafwd/migrate/pkg/graph"
	"github.com/schemafwd/migrate/pkg/schema"
	"github.com/schemafwd/migrate/pkg/unitregistry"
)

func init() {
	unitregistry.Register("{{.App}}", "{{.Name}}", func() *graph.Unit {
		return &graph.Unit{
			Models:   {{.Ident}}Models,
			Forward:  {{.Ident}}Forward,
			Backward: {{.Ident}}Backward,
		}
	})
}

var {{.Ident}}Models = schema.Snapshot{
{{.ModelsLiteral}}}

{{range .Actions}}// {{.Comment}}
{{end}}func {{.Ident}}Forward(ormArg any, db *ddl.DB) error {
	orm, ok := ormArg.(*frozenorm.ORM)
	if !ok {
		return fmt.Errorf("{{.Name}}: unexpected orm type %T", ormArg)
	}
	_ = orm

{{range .Actions}}{{.Forward}}
{{end}}	return nil
}

func {{.Ident}}Backward(ormArg any, db *ddl.DB) error {
	orm, ok := ormArg.(*frozenorm.ORM)
	if !ok {
		return fmt.Errorf("{{.Name}}: unexpected orm type %T", ormArg)
	}
	_ = orm

{{range .ReverseActions}}{{.Backward}}
{{end}}	return nil
}
`))

// renderAction is the template-facing view of one Action: the Go statements
// to run it forward and backward, plus a one-line comment describing the
// change. Kept separate from Action so the template has no dependency on
// schema types.
type renderAction struct {
	Comment  string
	Forward  string
	Backward string
}

type renderData struct {
	Package        string
	App            string
	Name           string
	Ident          string // Go-identifier-safe form of Name, since unit names start with a digit
	ModelsLiteral  string
	Actions        []renderAction
	ReverseActions []renderAction // Actions in reverse detection order
}

// Render produces the formatted Go source for a generated migration unit
// named unitName in application app, package pkg, whose frozen model
// universe after this unit is applied is snapshot. actions is the ordered
// change set from Detect. The result has already been run through
// goimports, matching the way a hand-written unit in this codebase would be
// formatted.
func Render(pkg, app, unitName string, snapshot schema.Snapshot, actions []Action) ([]byte, error) {
	data := renderData{
		Package:       pkg,
		App:           app,
		Name:          unitName,
		Ident:         "M" + sanitizeIdent(unitName),
		ModelsLiteral: renderSnapshotLiteral(snapshot),
	}
	for _, a := range actions {
		data.Actions = append(data.Actions, renderActionOf(a))
	}
	for i := len(data.Actions) - 1; i >= 0; i-- {
		data.ReverseActions = append(data.ReverseActions, data.Actions[i])
	}

	var buf bytes.Buffer
	if err := unitTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering migration unit %s: %w", unitName, err)
	}

	formatted, err := imports.Process(unitName+".go", buf.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("formatting generated migration unit %s: %w", unitName, err)
	}
	return formatted, nil
}

func describe(a Action) string {
	switch a.Kind {
	case AddModelKind:
		return fmt.Sprintf("add model %s", a.Model)
	case DeleteModelKind:
		return fmt.Sprintf("delete model %s", a.Model)
	case AddFieldKind:
		return fmt.Sprintf("add field %s.%s", a.Model, a.Field)
	case DeleteFieldKind:
		return fmt.Sprintf("delete field %s.%s", a.Model, a.Field)
	case ChangeFieldKind:
		return fmt.Sprintf("change field %s.%s", a.NewModel, a.Field)
	case AddUniqueKind:
		return fmt.Sprintf("add unique constraint on %s%v", a.Model, a.Fields)
	case DeleteUniqueKind:
		return fmt.Sprintf("delete unique constraint on %s%v", a.Model, a.Fields)
	case AddM2MKind:
		return fmt.Sprintf("add many-to-many %s.%s", a.Model, a.Field)
	case DeleteM2MKind:
		return fmt.Sprintf("delete many-to-many %s.%s", a.Model, a.Field)
	default:
		return string(a.Kind)
	}
}

// renderActionOf translates one detected Action into the Go statements its
// Forward and Backward procedures execute, using the frozen ORM handle to
// materialize field state and *ddl.DB to issue the change, the way a
// hand-written unit's forwards(orm, db)/backwards(orm, db) would.
func renderActionOf(a Action) renderAction {
	switch a.Kind {
	case AddModelKind:
		return renderAction{
			Comment:  describe(a),
			Forward:  createTableStmt(a.Model, a.ModelDef),
			Backward: dropTableStmt(a.Model),
		}
	case DeleteModelKind:
		return renderAction{
			Comment:  describe(a),
			Forward:  dropTableStmt(a.Model),
			Backward: createTableStmt(a.Model, a.ModelDef),
		}
	case AddFieldKind:
		return renderAction{
			Comment:  describe(a),
			Forward:  addColumnStmt(a.Model, a.Field),
			Backward: dropColumnStmt(a.Model, a.Field),
		}
	case DeleteFieldKind:
		return renderAction{
			Comment:  describe(a),
			Forward:  dropColumnStmt(a.Model, a.Field),
			Backward: addColumnStmt(a.Model, a.Field),
		}
	case ChangeFieldKind:
		return renderAction{
			Comment:  describe(a),
			Forward:  alterColumnStmt(a.NewModel, a.Field),
			Backward: alterColumnStmt(a.OldModel, a.Field),
		}
	case AddUniqueKind:
		return renderAction{
			Comment:  describe(a),
			Forward:  createUniqueStmt(a.Model, a.Fields),
			Backward: deleteUniqueStmt(a.Model, a.Fields),
		}
	case DeleteUniqueKind:
		return renderAction{
			Comment:  describe(a),
			Forward:  deleteUniqueStmt(a.Model, a.Fields),
			Backward: createUniqueStmt(a.Model, a.Fields),
		}
	case AddM2MKind, DeleteM2MKind:
		// TODO(schemafwd): many-to-many join-table generation needs a
		// second table plus two foreign keys; ddl.DB exposes no
		// join-table helper yet, so these are surfaced but not applied.
		stmt := fmt.Sprintf("\treturn fmt.Errorf(%q)", describe(a)+" is not supported by the generator yet")
		return renderAction{Comment: describe(a) + " (unsupported, manual migration required)", Forward: stmt, Backward: stmt}
	default:
		return renderAction{Comment: describe(a), Forward: "", Backward: ""}
	}
}

// Each Stmt function renders its statements inside their own braced block,
// so the fixed local names (m, f, ok, err) never collide with another
// action's block earlier or later in the same Forward/Backward function.

func createTableStmt(key schema.ModelKey, def schema.ModelDef) string {
	var b strings.Builder
	b.WriteString("\t{\n")
	fmt.Fprintf(&b, "\t\tm, err := orm.Model(schema.ModelKey(%q))\n", string(key))
	b.WriteString("\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n")
	fmt.Fprintf(&b, "\t\tif err := db.CreateTable(%q, m.ColumnMap()); err != nil {\n", tableName(key, def))
	fmt.Fprintf(&b, "\t\t\treturn fmt.Errorf(\"create table %s: %%w\", err)\n\t\t}\n\t}", string(key))
	return b.String()
}

func dropTableStmt(key schema.ModelKey) string {
	return fmt.Sprintf("\t{\n\t\tif err := db.DeleteTable(%q, true); err != nil {\n\t\t\treturn fmt.Errorf(\"drop table %s: %%w\", err)\n\t\t}\n\t}", defaultTableName(key), string(key))
}

func addColumnStmt(key schema.ModelKey, field string) string {
	var b strings.Builder
	b.WriteString("\t{\n")
	fmt.Fprintf(&b, "\t\tm, err := orm.Model(schema.ModelKey(%q))\n", string(key))
	b.WriteString("\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n")
	fmt.Fprintf(&b, "\t\tf, ok := m.Field(%q)\n", field)
	fmt.Fprintf(&b, "\t\tif !ok {\n\t\t\treturn fmt.Errorf(\"add field %s.%s: not present in frozen ORM\")\n\t\t}\n", string(key), field)
	fmt.Fprintf(&b, "\t\tif err := db.AddColumn(%q, %q, f.Materialize(%q), true); err != nil {\n", defaultTableName(key), field, field)
	fmt.Fprintf(&b, "\t\t\treturn fmt.Errorf(\"add field %s.%s: %%w\", err)\n\t\t}\n\t}", string(key), field)
	return b.String()
}

func dropColumnStmt(key schema.ModelKey, field string) string {
	return fmt.Sprintf("\t{\n\t\tif err := db.DeleteColumn(%q, %q); err != nil {\n\t\t\treturn fmt.Errorf(\"delete field %s.%s: %%w\", err)\n\t\t}\n\t}", defaultTableName(key), field, string(key), field)
}

func alterColumnStmt(key schema.ModelKey, field string) string {
	var b strings.Builder
	b.WriteString("\t{\n")
	fmt.Fprintf(&b, "\t\tm, err := orm.Model(schema.ModelKey(%q))\n", string(key))
	b.WriteString("\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n")
	fmt.Fprintf(&b, "\t\tf, ok := m.Field(%q)\n", field)
	fmt.Fprintf(&b, "\t\tif !ok {\n\t\t\treturn fmt.Errorf(\"change field %s.%s: not present in frozen ORM\")\n\t\t}\n", string(key), field)
	fmt.Fprintf(&b, "\t\tif err := db.AlterColumn(%q, %q, f.Materialize(%q), true); err != nil {\n", defaultTableName(key), field, field)
	fmt.Fprintf(&b, "\t\t\treturn fmt.Errorf(\"change field %s.%s: %%w\", err)\n\t\t}\n\t}", string(key), field)
	return b.String()
}

func createUniqueStmt(key schema.ModelKey, fields []string) string {
	return fmt.Sprintf("\t{\n\t\tif err := db.CreateUnique(%q, %s); err != nil {\n\t\t\treturn fmt.Errorf(\"add unique on %s%v: %%w\", err)\n\t\t}\n\t}", defaultTableName(key), stringSliceLiteral(fields), string(key), fields)
}

func deleteUniqueStmt(key schema.ModelKey, fields []string) string {
	return fmt.Sprintf("\t{\n\t\tif err := db.DeleteUnique(%q, %s); err != nil {\n\t\t\treturn fmt.Errorf(\"delete unique on %s%v: %%w\", err)\n\t\t}\n\t}", defaultTableName(key), stringSliceLiteral(fields), string(key), fields)
}

func stringSliceLiteral(ss []string) string {
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[]string{" + strings.Join(quoted, ", ") + "}"
}

// sanitizeIdent maps any byte outside [0-9A-Za-z_] in a unit name to an
// underscore, so it is safe to splice into a Go identifier once prefixed
// with a leading letter.
func sanitizeIdent(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, name)
}

// defaultTableName resolves a table name with no model definition in hand
// (delete/drop paths, which only carry the key).
func defaultTableName(key schema.ModelKey) string {
	return key.AppLabel() + "_" + key.ModelName()
}

// tableName resolves the Meta db_table override, if the model declares one,
// falling back to Django's default "app_model" naming convention. Read at
// render time directly off the snapshot rather than through the frozenorm
// expression evaluator, since this only ever needs a literal string value.
func tableName(key schema.ModelKey, def schema.ModelDef) string {
	meta := def.Meta()
	if meta == nil {
		return defaultTableName(key)
	}
	d, ok := meta["db_table"]
	if !ok {
		return defaultTableName(key)
	}
	if s, ok := unquoteLiteral(d.ClassPath); ok {
		return s
	}
	return defaultTableName(key)
}

// unquoteLiteral strips a Go ("...") or Python ('...') string literal's
// quotes, since descriptor text may carry either depending on its source.
func unquoteLiteral(raw string) (string, bool) {
	if len(raw) < 2 {
		return "", false
	}
	first, last := raw[0], raw[len(raw)-1]
	if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
		return raw[1 : len(raw)-1], true
	}
	return "", false
}

// renderSnapshotLiteral renders snap as the body of a schema.Snapshot
// composite literal, in stable key order so repeated generation is
// byte-for-byte reproducible.
func renderSnapshotLiteral(snap schema.Snapshot) string {
	keys := make([]schema.ModelKey, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "\tschema.ModelKey(%q): schema.ModelDef{\n", string(k))
		fields := make([]string, 0, len(snap[k]))
		for f := range snap[k] {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			fd := snap[k][f]
			fmt.Fprintf(&b, "\t\t%q: %s,\n", f, fieldDescriptorLiteral(fd))
		}
		b.WriteString("\t},\n")
	}
	return b.String()
}

func fieldDescriptorLiteral(fd schema.FieldDescriptor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "schema.FieldDescriptor{ClassPath: %q", fd.ClassPath)
	if len(fd.PositionalArgs) > 0 {
		b.WriteString(", PositionalArgs: []string{")
		for i, a := range fd.PositionalArgs {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%q", a)
		}
		b.WriteString("}")
	}
	if len(fd.KeywordArgs) > 0 {
		b.WriteString(", KeywordArgs: map[string]string{")
		keys := make([]string, 0, len(fd.KeywordArgs))
		for k := range fd.KeywordArgs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%q: %q", k, fd.KeywordArgs[k])
		}
		b.WriteString("}")
	}
	b.WriteString("}")
	return b.String()
}
