// SPDX-License-Identifier: Apache-2.0

// Package schema defines the serialized form of a migration unit's model
// universe: the FieldDescriptor triple and the ModelSnapshot it is embedded
// in.
package schema

import "strings"

// StubMarker is the reserved field name that, when present and true, marks a
// ModelSnapshot entry as a stub: a model included only to terminate a
// cross-application foreign-key reference.
const StubMarker = "_stub"

// MetaKey is the reserved key under which a model's Meta options (
// unique_together, object_name, db_table, ...) are stored within its field
// map.
const MetaKey = "Meta"

// FieldDescriptor is the serialized form of one field: a class path plus its
// positional and keyword constructor arguments, each an unevaluated
// self-contained source expression string.
type FieldDescriptor struct {
	ClassPath      string
	PositionalArgs []string
	KeywordArgs    map[string]string
}

// Bare reports whether the descriptor was serialized as a single bare
// expression string rather than a (class_path, args, kwargs) triple. Bare
// descriptors carry the whole expression in ClassPath and have no args.
func (f FieldDescriptor) Bare() bool {
	return len(f.PositionalArgs) == 0 && len(f.KeywordArgs) == 0
}

// ShortClass returns the last path segment of ClassPath, e.g. "ForeignKey"
// for "django.db.models.ForeignKey" or "models.ForeignKey".
func (f FieldDescriptor) ShortClass() string {
	parts := strings.Split(f.ClassPath, ".")
	return parts[len(parts)-1]
}

// ModelKey identifies a model as "applabel.modelname", always lowercased, as
// required by the on-disk snapshot format (spec.md §6).
type ModelKey string

// NewModelKey builds a ModelKey from an application label and model name.
func NewModelKey(appLabel, modelName string) ModelKey {
	return ModelKey(strings.ToLower(appLabel) + "." + strings.ToLower(modelName))
}

// AppLabel returns the application-label component of the key.
func (k ModelKey) AppLabel() string {
	app, _, _ := strings.Cut(string(k), ".")
	return app
}

// ModelName returns the model-name component of the key.
func (k ModelKey) ModelName() string {
	_, name, _ := strings.Cut(string(k), ".")
	return name
}

// ModelDef is one model's field map within a ModelSnapshot: field name to
// descriptor, plus the reserved Meta entry.
type ModelDef map[string]FieldDescriptor

// IsStub reports whether this model definition is a stub: present only to
// terminate a foreign-key reference from another application.
func (m ModelDef) IsStub() bool {
	d, ok := m[StubMarker]
	return ok && strings.EqualFold(d.ClassPath, "true")
}

// Meta returns the model's Meta options descriptor map, or nil if absent.
func (m ModelDef) Meta() ModelDef {
	d, ok := m[MetaKey]
	if !ok {
		return nil
	}
	// Meta options are themselves stored keyword-only, one entry per option
	// name, folded into a synthetic ModelDef so callers can use the same
	// accessor shape as for field definitions.
	meta := make(ModelDef, len(d.KeywordArgs))
	for k, v := range d.KeywordArgs {
		meta[k] = FieldDescriptor{ClassPath: v}
	}
	return meta
}

// Snapshot is the serialized model universe embedded in one migration unit:
// model key to field definitions.
type Snapshot map[ModelKey]ModelDef

// Clone returns a deep copy of the snapshot, safe for independent mutation.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, def := range s {
		cloned := make(ModelDef, len(def))
		for fname, fd := range def {
			args := append([]string(nil), fd.PositionalArgs...)
			kwargs := make(map[string]string, len(fd.KeywordArgs))
			for kk, vv := range fd.KeywordArgs {
				kwargs[kk] = vv
			}
			cloned[fname] = FieldDescriptor{ClassPath: fd.ClassPath, PositionalArgs: args, KeywordArgs: kwargs}
		}
		out[k] = cloned
	}
	return out
}

// Models returns the snapshot's model keys restricted to a single
// application, in unspecified order.
func (s Snapshot) Models(appLabel string) []ModelKey {
	var out []ModelKey
	for k := range s {
		if k.AppLabel() == strings.ToLower(appLabel) {
			out = append(out, k)
		}
	}
	return out
}
