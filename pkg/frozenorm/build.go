// SPDX-License-Identifier: Apache-2.0

package frozenorm

import (
	"github.com/schemafwd/migrate/pkg/schema"
)

// Builder constructs an *ORM from a schema.Snapshot using a two-pass
// evaluation: fields whose descriptor references a model defined later in
// declaration order (a forward reference, typically a ForeignKey to a model
// not yet built) fail their first evaluation attempt and are retried once
// every model in the snapshot has a FrozenModel entry, however incomplete.
// A field that still fails on the retry pass is a fatal FieldResolutionError.
type Builder struct {
	Globals    map[string]any
	Registry   *ConstructorRegistry
	CurrentApp string
}

// NewBuilder returns a Builder with an empty constructor registry; callers
// typically register their field constructors before calling Build.
func NewBuilder(currentApp string) *Builder {
	return &Builder{
		Globals:    make(map[string]any),
		Registry:   NewConstructorRegistry(),
		CurrentApp: currentApp,
	}
}

type pendingField struct {
	model schema.ModelKey
	name  string
	desc  schema.FieldDescriptor
}

// Build evaluates every non-stub model's field descriptors against snap,
// returning the resulting frozen ORM. Stub models (schema.ModelDef.IsStub)
// are included with no fields so foreign keys can still resolve a stub
// target; their data-manipulation capability is permanently forbidden
// (StubAccessError) rather than described.
func (b *Builder) Build(snap schema.Snapshot) (*ORM, error) {
	orm := &ORM{
		currentApp: b.CurrentApp,
		models:     make(map[schema.ModelKey]FrozenModel, len(snap)),
	}

	modelShortcuts := make(map[string]any)
	for key := range snap {
		if key.AppLabel() == b.CurrentApp {
			modelShortcuts[key.ModelName()] = key
		}
	}

	ns := &namespace{
		globals: b.Globals,
		models:  modelShortcuts,
		index:   orm.index,
	}
	ev := newEvaluator(ns, b.Registry)

	var pending []pendingField
	for key, def := range snap {
		fm := FrozenModel{Key: key, Fields: make(map[string]FieldValue), Stub: def.IsStub()}
		orm.models[key] = fm
		if fm.Stub {
			continue
		}
		for name, desc := range def {
			if name == schema.MetaKey {
				continue
			}
			fv, err := evalDescriptor(ev, desc)
			if err != nil {
				pending = append(pending, pendingField{model: key, name: name, desc: desc})
				continue
			}
			orm.models[key].Fields[name] = fv
		}
	}

	var failures []pendingField
	for _, p := range pending {
		fv, err := evalDescriptor(ev, p.desc)
		if err != nil {
			failures = append(failures, p)
			continue
		}
		orm.models[p.model].Fields[p.name] = fv
	}

	if len(failures) > 0 {
		f := failures[0]
		_, err := evalDescriptor(ev, f.desc)
		return nil, FieldResolutionError{Model: f.model, Field: f.name, Cause: err}
	}

	return orm, nil
}

// RunnerAdapter satisfies pkg/runner's ORMBuilder interface (Build returning
// any), since Go does not allow a *ORM-returning method to satisfy an
// any-returning one directly.
type RunnerAdapter struct {
	*Builder
}

func (a RunnerAdapter) Build(snap schema.Snapshot) (any, error) {
	return a.Builder.Build(snap)
}

func evalDescriptor(ev *evaluator, desc schema.FieldDescriptor) (FieldValue, error) {
	if desc.Bare() {
		// An argument-less class path with a registered constructor, e.g.
		// {ClassPath: "models.AutoField"}, is a zero-argument triple.
		if _, ok := ev.ctors.constructors[shortClassName(desc.ClassPath)]; ok {
			return ev.evalFieldCall(desc.ClassPath, nil, nil)
		}
		v, err := ev.evalExpr(desc.ClassPath)
		if err != nil {
			return FieldValue{}, err
		}
		if fv, ok := v.(FieldValue); ok {
			return fv, nil
		}
		return FieldValue{ClassName: shortClassName(desc.ClassPath), Positional: []any{v}}, nil
	}
	return ev.evalFieldCall(desc.ClassPath, desc.PositionalArgs, desc.KeywordArgs)
}
