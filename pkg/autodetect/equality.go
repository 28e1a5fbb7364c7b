// SPDX-License-Identifier: Apache-2.0

package autodetect

import (
	"sort"
	"strings"

	"github.com/schemafwd/migrate/pkg/schema"
)

// UselessKeywords is the extensible list of keyword arguments scrubbed
// before comparison and before rendering, since they have no database
// impact. Callers may append host-framework-specific entries at init time.
var UselessKeywords = []string{"choices", "help_text", "upload_to", "verbose_name"}

// scrubUseless returns a copy of d with UselessKeywords (and, when
// dbOnly is true, also related_name) removed from its keyword arguments.
func scrubUseless(d schema.FieldDescriptor, dbOnly bool) schema.FieldDescriptor {
	out := d
	if len(d.KeywordArgs) == 0 {
		return out
	}
	out.KeywordArgs = make(map[string]string, len(d.KeywordArgs))
	useless := make(map[string]bool, len(UselessKeywords)+1)
	for _, k := range UselessKeywords {
		useless[k] = true
	}
	if dbOnly {
		useless["related_name"] = true
	}
	for k, v := range d.KeywordArgs {
		if useless[k] {
			continue
		}
		out.KeywordArgs[k] = v
	}
	return out
}

// shortClass returns the trailing path segment, the comparison unit for the
// "short alias vs canonical path" relaxation.
func shortClass(classPath string) string {
	parts := strings.Split(classPath, ".")
	return parts[len(parts)-1]
}

// fieldsEqual compares two field descriptors for the autodetector's
// purposes, applying spec.md §4.4's relaxations: unique is excluded, class
// paths are compared by trailing segment, and a bare-name/to= foreign-key
// target pair is normalised before comparison.
func fieldsEqual(a, b schema.FieldDescriptor) bool {
	if shortClass(a.ClassPath) != shortClass(b.ClassPath) {
		return false
	}

	aPos, aKw := normalizeRelationArgs(a, b)
	bPos, bKw := normalizeRelationArgs(b, a)

	aKw = withoutKeyword(aKw, "unique")
	bKw = withoutKeyword(bKw, "unique")

	if len(aPos) != len(bPos) {
		return false
	}
	for i := range aPos {
		if aPos[i] != bPos[i] {
			return false
		}
	}

	if len(aKw) != len(bKw) {
		return false
	}
	for k, v := range aKw {
		if bKw[k] != v {
			return false
		}
	}
	return true
}

func withoutKeyword(kw map[string]string, key string) map[string]string {
	if _, ok := kw[key]; !ok {
		return kw
	}
	out := make(map[string]string, len(kw))
	for k, v := range kw {
		if k != key {
			out[k] = v
		}
	}
	return out
}

// normalizeRelationArgs implements the bare-model-name vs to= relaxation for
// d, compared against other: if one side's first positional argument is a
// bare model name and the other side carries to='<app>.<Model>' naming the
// same model, both are excluded from the positional/keyword comparison sets
// entirely.
func normalizeRelationArgs(d, other schema.FieldDescriptor) ([]string, map[string]string) {
	pos := append([]string(nil), d.PositionalArgs...)
	kw := make(map[string]string, len(d.KeywordArgs))
	for k, v := range d.KeywordArgs {
		kw[k] = v
	}

	to, hasTo := kw["to"]
	if len(pos) > 0 && isBareModelName(pos[0]) {
		if hasTo && sameModelName(pos[0], to) {
			pos = pos[1:]
			delete(kw, "to")
		} else if otherTo, ok := other.KeywordArgs["to"]; ok && sameModelName(pos[0], otherTo) {
			pos = pos[1:]
		}
	} else if hasTo && len(other.PositionalArgs) > 0 && isBareModelName(other.PositionalArgs[0]) &&
		sameModelName(other.PositionalArgs[0], to) {
		delete(kw, "to")
	}
	return pos, kw
}

func isBareModelName(s string) bool {
	s = strings.Trim(s, `'"`)
	return s != "" && !strings.ContainsAny(s, ".()")
}

func sameModelName(bare, to string) bool {
	bare = strings.Trim(bare, `'"`)
	to = strings.Trim(to, `'"`)
	_, model, found := strings.Cut(to, ".")
	if !found {
		model = to
	}
	return strings.EqualFold(bare, model)
}

// uniqueTogetherNormalize parses a Meta unique_together descriptor (stored
// bare, its whole expression text in ClassPath per schema.ModelDef.Meta)
// into a set of column-name sets, promoting a single tuple to a
// one-element list and ignoring element order within each tuple.
func uniqueTogetherNormalize(d schema.FieldDescriptor) []map[string]bool {
	raw := strings.TrimSpace(d.ClassPath)
	if raw == "" {
		return nil
	}

	tuples := splitTuples(raw)
	var out []map[string]bool
	for _, t := range tuples {
		cols := splitColumns(t)
		if len(cols) == 0 {
			continue
		}
		set := make(map[string]bool, len(cols))
		for _, c := range cols {
			set[c] = true
		}
		out = append(out, set)
	}
	return out
}

// splitTuples splits a unique_together expression into its tuple
// sub-strings: "(a, b)" is a single tuple; "[(a, b), (c, d)]" is two.
func splitTuples(raw string) []string {
	raw = strings.Trim(raw, "[] ")
	if raw == "" {
		return nil
	}
	if !strings.Contains(raw, "(") {
		// A bare "a, b" with no parens at all is itself the single tuple.
		return []string{raw}
	}

	var tuples []string
	depth := 0
	start := -1
	for i, r := range raw {
		switch r {
		case '(':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ')':
			depth--
			if depth == 0 && start >= 0 {
				tuples = append(tuples, raw[start:i])
				start = -1
			}
		}
	}
	return tuples
}

func splitColumns(raw string) []string {
	raw = strings.Trim(raw, "()[] ")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `'"`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func uniqueTogetherSetsEqual(a, b []map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	aKeys := setsToKeys(a)
	bKeys := setsToKeys(b)
	sort.Strings(aKeys)
	sort.Strings(bKeys)
	for i := range aKeys {
		if aKeys[i] != bKeys[i] {
			return false
		}
	}
	return true
}

func setsToKeys(sets []map[string]bool) []string {
	keys := make([]string, len(sets))
	for i, s := range sets {
		cols := make([]string, 0, len(s))
		for c := range s {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		keys[i] = strings.Join(cols, ",")
	}
	return keys
}
