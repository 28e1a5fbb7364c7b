// SPDX-License-Identifier: Apache-2.0

// Package autodetect diffs two model snapshots into an ordered sequence of
// schema-change actions, the input to migration-unit generation.
package autodetect

import "github.com/schemafwd/migrate/pkg/schema"

// ActionKind names the kind of change one Action describes.
type ActionKind string

const (
	AddModelKind    ActionKind = "add_model"
	DeleteModelKind ActionKind = "delete_model"

	AddFieldKind    ActionKind = "add_field"
	DeleteFieldKind ActionKind = "delete_field"
	ChangeFieldKind ActionKind = "change_field"

	AddUniqueKind    ActionKind = "add_unique"
	DeleteUniqueKind ActionKind = "delete_unique"

	AddM2MKind    ActionKind = "add_m2m"
	DeleteM2MKind ActionKind = "delete_m2m"
)

// Action is one detected schema change, carrying only the parameters its
// kind needs; unused fields are left zero.
type Action struct {
	Kind ActionKind

	Model    schema.ModelKey
	ModelDef schema.ModelDef

	OldModel schema.ModelKey
	NewModel schema.ModelKey

	Field    string
	FieldDef schema.FieldDescriptor
	OldDef   schema.FieldDescriptor
	NewDef   schema.FieldDescriptor

	Fields []string // unique_together / AddUnique / DeleteUnique column sets
}
