// SPDX-License-Identifier: Apache-2.0

// Package frozenorm reconstitutes the historical model universe a migration
// unit was written against: a frozen, read-only ORM built from the unit's
// embedded schema.Snapshot by evaluating each field's descriptor expression
// in a restricted namespace.
package frozenorm

import (
	"strings"

	"github.com/schemafwd/migrate/pkg/schema"
)

// FrozenModel is one reconstituted model: its key, its built field
// prototypes, and whether it is a stub (present only to terminate a
// cross-application foreign key, per schema.ModelDef.IsStub).
type FrozenModel struct {
	Key    schema.ModelKey
	Fields map[string]FieldValue
	Stub   bool
}

// Field returns the prototype built for name, or false if the field does not
// exist on this model.
func (m FrozenModel) Field(name string) (FieldValue, bool) {
	f, ok := m.Fields[name]
	return f, ok
}

// ORM is the frozen, read-only model universe for one migration step: the
// set of FrozenModel prototypes reachable by orm["app.Model"] or orm.Model.
type ORM struct {
	currentApp string
	models     map[schema.ModelKey]FrozenModel
}

// Model looks up a model by its fully qualified key ("app.model"), the form
// used by orm["app.Model"]. Accessing a stub model's data-manipulation
// capability is forbidden: the lookup itself succeeds (callers may still
// want Stub), but Rows/Objects-style access must check Stub first.
func (o *ORM) Model(key schema.ModelKey) (FrozenModel, error) {
	m, ok := o.models[key]
	if !ok {
		return FrozenModel{}, UnknownModelError{Key: key}
	}
	return m, nil
}

// Shortcut resolves a bare model name against the current application, the
// form used by orm.Model and bare identifiers within a descriptor
// expression. It is ambiguous only in the sense that a bare name always
// means the current app; callers reaching for another app's model must use
// Model with an explicit key.
func (o *ORM) Shortcut(name string) (FrozenModel, error) {
	key := schema.NewModelKey(o.currentApp, name)
	return o.Model(key)
}

// Objects returns m's data-access handle, forbidden for stub models.
func (o *ORM) Objects(m FrozenModel) error {
	if m.Stub {
		return StubAccessError{Model: m.Key}
	}
	return nil
}

// index implements the namespace.index hook: it accepts both
// "app.model" (full key form, used by orm["app.Model"]) and a bare model
// name (used by orm.Model), resolving the latter against the current app.
func (o *ORM) index(key string) (any, error) {
	if containsDot(key) {
		m, err := o.Model(schema.ModelKey(normalizeKey(key)))
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return o.Shortcut(key)
}

func containsDot(s string) bool {
	for _, r := range s {
		if r == '.' {
			return true
		}
	}
	return false
}

func normalizeKey(s string) string {
	return strings.ToLower(s)
}
