// SPDX-License-Identifier: Apache-2.0

package autodetect

import (
	"sort"

	"github.com/schemafwd/migrate/pkg/schema"
)

// metaUniqueTogetherKey is the reserved keyword name under which Meta
// carries unique_together.
const metaUniqueTogetherKey = "unique_together"

// Detect diffs old against new and returns the ordered Action sequence per
// spec.md §4.4's fixed detection order: deleted models, added models, then
// per surviving model (in stable key order): deleted fields, added fields,
// changed fields, per-field unique changes, unique_together changes.
func Detect(old, new schema.Snapshot) []Action {
	var actions []Action

	oldKeys := sortedModelKeys(old)
	newKeys := sortedModelKeys(new)
	newSet := toSet(newKeys)
	oldSet := toSet(oldKeys)

	for _, k := range oldKeys {
		if !newSet[k] {
			actions = append(actions, Action{Kind: DeleteModelKind, Model: k, ModelDef: old[k]})
		}
	}
	for _, k := range newKeys {
		if !oldSet[k] {
			actions = append(actions, Action{Kind: AddModelKind, Model: k, ModelDef: new[k]})
		}
	}

	for _, k := range newKeys {
		if !oldSet[k] {
			continue // handled by AddModel above; its fields arrive with the model
		}
		actions = append(actions, detectModel(k, old[k], new[k])...)
	}

	return actions
}

func detectModel(key schema.ModelKey, oldDef, newDef schema.ModelDef) []Action {
	var actions []Action

	oldFields := sortedFieldNames(oldDef)
	newFields := sortedFieldNames(newDef)
	oldSet := toStringSet(oldFields)
	newSet := toStringSet(newFields)

	for _, f := range oldFields {
		if f == schema.MetaKey {
			continue
		}
		if !newSet[f] {
			kind := DeleteFieldKind
			if isM2MField(oldDef[f]) {
				kind = DeleteM2MKind
			}
			actions = append(actions, Action{Kind: kind, Model: key, Field: f, FieldDef: oldDef[f]})
		}
	}
	for _, f := range newFields {
		if f == schema.MetaKey {
			continue
		}
		if !oldSet[f] {
			kind := AddFieldKind
			if isM2MField(newDef[f]) {
				kind = AddM2MKind
			}
			actions = append(actions, Action{Kind: kind, Model: key, Field: f, FieldDef: newDef[f]})
		}
	}

	for _, f := range newFields {
		if f == schema.MetaKey {
			continue
		}
		if !oldSet[f] {
			continue
		}
		oldFD, newFD := oldDef[f], newDef[f]

		// A many-to-many field is backed by a join table, not a column, so
		// it never goes through the ordinary alter-column/unique-keyword
		// path below; a kind change into or out of ManyToManyField is
		// detected as a delete plus an add, not a change.
		oldIsM2M, newIsM2M := isM2MField(oldFD), isM2MField(newFD)
		switch {
		case oldIsM2M && !newIsM2M:
			actions = append(actions, Action{Kind: DeleteM2MKind, Model: key, Field: f, FieldDef: oldFD})
			actions = append(actions, Action{Kind: AddFieldKind, Model: key, Field: f, FieldDef: newFD})
			continue
		case !oldIsM2M && newIsM2M:
			actions = append(actions, Action{Kind: DeleteFieldKind, Model: key, Field: f, FieldDef: oldFD})
			actions = append(actions, Action{Kind: AddM2MKind, Model: key, Field: f, FieldDef: newFD})
			continue
		case oldIsM2M && newIsM2M:
			continue
		}

		oldScrubbed := scrubUseless(oldFD, true)
		newScrubbed := scrubUseless(newFD, true)
		if !fieldsEqual(oldScrubbed, newScrubbed) {
			actions = append(actions, Action{
				Kind: ChangeFieldKind, OldModel: key, NewModel: key,
				Field: f, OldDef: oldFD, NewDef: newFD,
			})
		}

		oldUnique := hasUniqueKeyword(oldFD)
		newUnique := hasUniqueKeyword(newFD)
		switch {
		case newUnique && !oldUnique:
			actions = append(actions, Action{Kind: AddUniqueKind, Model: key, Fields: []string{f}})
		case oldUnique && !newUnique:
			actions = append(actions, Action{Kind: DeleteUniqueKind, Model: key, Fields: []string{f}})
		}
	}

	actions = append(actions, detectUniqueTogether(key, oldDef, newDef)...)

	return actions
}

func detectUniqueTogether(key schema.ModelKey, oldDef, newDef schema.ModelDef) []Action {
	oldUT := metaField(oldDef, metaUniqueTogetherKey)
	newUT := metaField(newDef, metaUniqueTogetherKey)

	oldSets := uniqueTogetherNormalize(oldUT)
	newSets := uniqueTogetherNormalize(newUT)

	if uniqueTogetherSetsEqual(oldSets, newSets) {
		return nil
	}

	var actions []Action
	for _, s := range oldSets {
		if !containsSet(newSets, s) {
			actions = append(actions, Action{Kind: DeleteUniqueKind, Model: key, Fields: sortedSetKeys(s)})
		}
	}
	for _, s := range newSets {
		if !containsSet(oldSets, s) {
			actions = append(actions, Action{Kind: AddUniqueKind, Model: key, Fields: sortedSetKeys(s)})
		}
	}
	return actions
}

func metaField(def schema.ModelDef, name string) schema.FieldDescriptor {
	meta := def.Meta()
	if meta == nil {
		return schema.FieldDescriptor{}
	}
	return meta[name]
}

// isM2MField reports whether d describes a many-to-many relation, per
// spec.md §4.4's AddM2M/DeleteM2M actions, rather than an ordinary column
// field.
func isM2MField(d schema.FieldDescriptor) bool {
	return d.ShortClass() == "ManyToManyField"
}

func hasUniqueKeyword(d schema.FieldDescriptor) bool {
	v, ok := d.KeywordArgs["unique"]
	return ok && v == "True"
}

func containsSet(sets []map[string]bool, s map[string]bool) bool {
	for _, other := range sets {
		if setsEqual(s, other) {
			return true
		}
	}
	return false
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func sortedSetKeys(s map[string]bool) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedModelKeys(s schema.Snapshot) []schema.ModelKey {
	out := make([]schema.ModelKey, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedFieldNames(def schema.ModelDef) []string {
	out := make([]string, 0, len(def))
	for f := range def {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func toSet(keys []schema.ModelKey) map[schema.ModelKey]bool {
	out := make(map[schema.ModelKey]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}

func toStringSet(keys []string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}
