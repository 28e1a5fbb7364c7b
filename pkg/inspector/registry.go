// SPDX-License-Identifier: Apache-2.0

package inspector

import (
	"fmt"
	"reflect"

	"github.com/schemafwd/migrate/pkg/schema"
)

// Rule contributes positional and keyword descriptors for fields whose
// dynamic type is assignable to any of Classes. A descriptor names an
// attribute path on the field (read via reflect) and a default value;
// values equal to the default are omitted from the rendered output.
type Rule struct {
	Classes []reflect.Type

	ClassPath string

	// Positional lists attribute paths rendered as positional arguments,
	// in order.
	Positional []AttrDescriptor

	// Keyword maps constructor keyword name to the attribute path
	// supplying its value.
	Keyword map[string]AttrDescriptor
}

// AttrDescriptor names one attribute to read off a field value via
// reflection, plus the default it is omitted for.
type AttrDescriptor struct {
	Attr    string
	Default any
}

// Registry holds the rule-sets consulted by the inspector's second
// fallback-chain branch. Rules are matched and composed in registration
// order: positional lists concatenate, keyword maps merge with later
// entries overriding earlier ones.
type Registry struct {
	rules []Rule
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry { return &Registry{} }

// Register adds a rule. Later-registered rules take priority in keyword
// merges when multiple rules match the same field.
func (r *Registry) Register(rule Rule) {
	r.rules = append(r.rules, rule)
}

// Describe composes every matching rule's descriptors for f, in
// registration order, per spec.md §4.4's rule-composition algorithm.
func (r *Registry) Describe(f Field) (schema.FieldDescriptor, bool) {
	var matched []Rule
	for _, rule := range r.rules {
		if matches(rule, f.Type()) {
			matched = append(matched, rule)
		}
	}
	if len(matched) == 0 {
		return schema.FieldDescriptor{}, false
	}

	val := reflect.ValueOf(f)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	fd := schema.FieldDescriptor{KeywordArgs: make(map[string]string)}
	for _, rule := range matched {
		if rule.ClassPath != "" {
			fd.ClassPath = rule.ClassPath
		}
		for _, attr := range rule.Positional {
			if s, ok := renderAttr(val, attr); ok {
				fd.PositionalArgs = append(fd.PositionalArgs, s)
			}
		}
		for kw, attr := range rule.Keyword {
			if s, ok := renderAttr(val, attr); ok {
				fd.KeywordArgs[kw] = s
			}
		}
	}
	return fd, true
}

func matches(rule Rule, t reflect.Type) bool {
	for _, c := range rule.Classes {
		if t == c || (t != nil && c != nil && t.AssignableTo(c)) {
			return true
		}
	}
	return false
}

// renderAttr reads attr.Attr off val and renders it as a Go source
// expression string, omitting the result when it equals attr.Default.
func renderAttr(val reflect.Value, attr AttrDescriptor) (string, bool) {
	if !val.IsValid() {
		return "", false
	}
	field := val.FieldByName(attr.Attr)
	if !field.IsValid() {
		return "", false
	}
	v := field.Interface()
	if attr.Default != nil && v == attr.Default {
		return "", false
	}
	return renderLiteral(v), true
}

func renderLiteral(v any) string {
	switch x := v.(type) {
	case string:
		return "\"" + x + "\""
	case bool:
		if x {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// DefaultRegistry returns an empty Registry; host applications register
// their own field-class rules at startup (analogous to how a host
// framework's field base classes are recognised as introspectable).
func DefaultRegistry() *Registry {
	return NewRegistry()
}
