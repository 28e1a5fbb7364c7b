// SPDX-License-Identifier: Apache-2.0

// Package inspector turns a live model class into a schema.ModelSnapshot
// entry: per-field descriptor extraction with a fallback chain, rule
// composition across registered rule-sets, and the dependency-closure walk
// used when freezing a set of applications.
package inspector

import (
	"go/ast"
	"go/parser"
	"reflect"
	"sort"

	"github.com/schemafwd/migrate/pkg/schema"
)

// Model is a live model class: the minimal capability the inspector needs
// to enumerate and describe its fields.
type Model interface {
	// ModelKey identifies the model as "applabel.modelname".
	ModelKey() schema.ModelKey
	// Fields returns the model's fields in declaration order.
	Fields() []Field
	// Meta returns the model's Meta option descriptors (unique_together,
	// db_table, ...), possibly empty.
	Meta() schema.ModelDef
	// Relations returns the ModelKeys this model's relation fields point
	// to, used by the dependency closure.
	Relations() []schema.ModelKey
}

// Field is one live field of a Model.
type Field interface {
	Name() string
	// Type is consulted by the rule registry; a reflect.Type lets rules
	// match by class hierarchy the way spec.md's "field classes" tuple key
	// does, without this package depending on any concrete field types.
	Type() reflect.Type
}

// TripleProducer is a field that can directly produce its own descriptor,
// the highest-priority branch of the fallback chain.
type TripleProducer interface {
	Field
	Describe() schema.FieldDescriptor
}

// SourceTextField is a field whose declaration is available as raw source
// text, the chain's last-resort branch before giving up.
type SourceTextField interface {
	Field
	SourceText() string
}

// Unresolved marks a field the inspector could not describe by any means;
// Describe flags it for manual editing rather than guessing.
type Unresolved struct {
	Field string
}

// Describe builds m's ModelSnapshot entry, applying the descriptor
// extraction fallback chain to every field. Fields that resolve to
// Unresolved are still present in the result with a zero FieldDescriptor,
// so callers can detect and surface them for manual editing.
func Describe(m Model, registry *Registry) (schema.ModelDef, []Unresolved) {
	def := make(schema.ModelDef)
	var unresolved []Unresolved

	for _, f := range m.Fields() {
		fd, ok := describeField(f, registry)
		if !ok {
			unresolved = append(unresolved, Unresolved{Field: f.Name()})
		}
		def[f.Name()] = fd
	}

	if meta := m.Meta(); len(meta) > 0 {
		kwargs := make(map[string]string, len(meta))
		for k, v := range meta {
			kwargs[k] = v.ClassPath
		}
		def[schema.MetaKey] = schema.FieldDescriptor{KeywordArgs: kwargs}
	}

	return def, unresolved
}

func describeField(f Field, registry *Registry) (schema.FieldDescriptor, bool) {
	// 1. Native triple-producing capability.
	if tp, ok := f.(TripleProducer); ok {
		return tp.Describe(), true
	}

	// 2. Registered rule-set matching the field's class hierarchy.
	if registry != nil {
		if fd, ok := registry.Describe(f); ok {
			return fd, true
		}
	}

	// 3. Source-text parse as a last resort.
	if stf, ok := f.(SourceTextField); ok {
		if fd, ok := parseSourceText(stf.SourceText()); ok {
			return fd, true
		}
	}

	// 4. Give up; flag for manual editing.
	return schema.FieldDescriptor{}, false
}

// parseSourceText treats src as a single Go expression (e.g. a struct tag
// or a literal field-construction call captured verbatim) and, if it
// parses as a call expression, extracts a best-effort descriptor from it.
// This is deliberately shallow: it is the fallback of last resort, not a
// full evaluator (that lives in pkg/frozenorm).
func parseSourceText(src string) (schema.FieldDescriptor, bool) {
	expr, err := parser.ParseExpr(src)
	if err != nil {
		return schema.FieldDescriptor{}, false
	}

	call, ok := expr.(*ast.CallExpr)
	if !ok {
		return schema.FieldDescriptor{ClassPath: src}, true
	}

	classPath := exprString(call.Fun)
	var positional []string
	kwargs := make(map[string]string)
	for _, arg := range call.Args {
		if kv, ok := arg.(*ast.KeyValueExpr); ok {
			kwargs[exprString(kv.Key)] = exprString(kv.Value)
			continue
		}
		positional = append(positional, exprString(arg))
	}

	return schema.FieldDescriptor{ClassPath: classPath, PositionalArgs: positional, KeywordArgs: kwargs}, true
}

func exprString(e ast.Expr) string {
	switch v := e.(type) {
	case *ast.Ident:
		return v.Name
	case *ast.SelectorExpr:
		return exprString(v.X) + "." + v.Sel.Name
	case *ast.BasicLit:
		return v.Value
	default:
		return ""
	}
}

// Close computes the dependency closure for freezing apps: every model of
// every requested application, plus every target of every relation field,
// expanded to a fixed point. Models outside the requested apps are stubs.
func Close(apps []string, all map[schema.ModelKey]Model) schema.Snapshot {
	requested := make(map[string]bool, len(apps))
	for _, a := range apps {
		requested[a] = true
	}

	include := make(map[schema.ModelKey]bool)
	for key, m := range all {
		if requested[key.AppLabel()] {
			include[key] = true
			_ = m
		}
	}

	for {
		added := false
		for key := range include {
			m, ok := all[key]
			if !ok {
				continue
			}
			for _, rel := range m.Relations() {
				if !include[rel] {
					include[rel] = true
					added = true
				}
			}
		}
		if !added {
			break
		}
	}

	out := make(schema.Snapshot, len(include))
	registry := DefaultRegistry()
	keys := make([]schema.ModelKey, 0, len(include))
	for k := range include {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, key := range keys {
		m, ok := all[key]
		if !ok || !requested[key.AppLabel()] {
			out[key] = schema.ModelDef{schema.StubMarker: schema.FieldDescriptor{ClassPath: "True"}}
			continue
		}
		def, _ := Describe(m, registry)
		out[key] = def
	}
	return out
}
