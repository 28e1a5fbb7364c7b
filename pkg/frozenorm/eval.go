// SPDX-License-Identifier: Apache-2.0

package frozenorm

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
	"strings"
)

// namespace is the restricted environment a descriptor expression is
// evaluated against: migration-module globals (models.*, the current app's
// bare model-name shortcuts), an identity function bound to "_" standing in
// for the host framework's translation no-op, and the ORM index operator for
// cross-application lookups.
type namespace struct {
	// globals resolves bare identifiers: models.ForeignKey, CASCADE, and
	// similar module-level constants the expression text may reference.
	globals map[string]any
	// models resolves bare model-name identifiers shortcutting to
	// "currentapp.Name", per spec.md §4.5.
	models map[string]any
	// index resolves orm["app.Model"] and orm.Model subscript/selector
	// expressions against the full frozen ORM being built.
	index func(key string) (any, error)
}

// evaluator walks a restricted Go expression AST, interpreting calls,
// selectors, indexing, and literals against a namespace. It never executes
// arbitrary Go; unsupported node kinds are evaluation errors.
type evaluator struct {
	ns         *namespace
	ctors      *ConstructorRegistry
	underscore func(string) string
}

func newEvaluator(ns *namespace, ctors *ConstructorRegistry) *evaluator {
	return &evaluator{
		ns:         ns,
		ctors:      ctors,
		underscore: func(s string) string { return s },
	}
}

// evalExpr parses and evaluates a single bare expression string, e.g.
// `models.CASCADE` or `orm["accounts.Account"]`.
func (e *evaluator) evalExpr(src string) (any, error) {
	expr, err := parser.ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	return e.eval(expr)
}

// evalFieldCall evaluates a (class_path, args, kwargs) triple. Each argument
// is already split into its own self-contained expression string by the
// serializer (schema.FieldDescriptor), so each is parsed and evaluated on
// its own rather than reassembled into one call-expression source string:
// the descriptor's keyword syntax (key=value) is not valid inside a Go call
// expression, so there is no single Go expression to parse it as.
func (e *evaluator) evalFieldCall(classPath string, positionalSrc []string, keywordSrc map[string]string) (FieldValue, error) {
	positional := make([]any, 0, len(positionalSrc))
	for _, src := range positionalSrc {
		v, err := e.evalExpr(src)
		if err != nil {
			return FieldValue{}, err
		}
		positional = append(positional, v)
	}

	keyword := make(map[string]any, len(keywordSrc))
	keys := make([]string, 0, len(keywordSrc))
	for k := range keywordSrc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := e.evalExpr(keywordSrc[k])
		if err != nil {
			return FieldValue{}, err
		}
		keyword[k] = v
	}

	return e.ctors.Build(shortClassName(classPath), positional, keyword)
}

func (e *evaluator) eval(expr ast.Expr) (any, error) {
	switch v := expr.(type) {
	case *ast.BasicLit:
		return literal(v)
	case *ast.Ident:
		return e.evalIdent(v)
	case *ast.SelectorExpr:
		return e.evalSelector(v)
	case *ast.IndexExpr:
		return e.evalIndex(v)
	case *ast.CallExpr:
		return e.evalCall(v)
	case *ast.UnaryExpr:
		operand, err := e.eval(v.X)
		if err != nil {
			return nil, err
		}
		if v.Op == token.SUB {
			if n, ok := operand.(int64); ok {
				return -n, nil
			}
		}
		return nil, fmt.Errorf("unsupported unary operator %s", v.Op)
	case *ast.ParenExpr:
		return e.eval(v.X)
	default:
		return nil, fmt.Errorf("unsupported expression node %T", expr)
	}
}

func literal(lit *ast.BasicLit) (any, error) {
	switch lit.Kind {
	case token.INT:
		n, err := strconv.ParseInt(lit.Value, 10, 64)
		return n, err
	case token.FLOAT:
		f, err := strconv.ParseFloat(lit.Value, 64)
		return f, err
	case token.STRING:
		s, err := strconv.Unquote(lit.Value)
		return s, err
	default:
		return nil, fmt.Errorf("unsupported literal kind %s", lit.Kind)
	}
}

func (e *evaluator) evalIdent(id *ast.Ident) (any, error) {
	switch id.Name {
	case "True":
		return true, nil
	case "False":
		return false, nil
	case "None":
		return nil, nil
	}
	if v, ok := e.ns.globals[id.Name]; ok {
		return v, nil
	}
	if v, ok := e.ns.models[id.Name]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("unresolved identifier %q", id.Name)
}

func (e *evaluator) evalSelector(sel *ast.SelectorExpr) (any, error) {
	// orm.Model is the shortcut-accessor form of the index operator.
	if base, ok := sel.X.(*ast.Ident); ok && base.Name == "orm" {
		return e.ns.index(sel.Sel.Name)
	}
	path := exprSource(sel)
	if v, ok := e.ns.globals[path]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("unresolved selector %q", path)
}

func (e *evaluator) evalIndex(idx *ast.IndexExpr) (any, error) {
	base, ok := idx.X.(*ast.Ident)
	if !ok || base.Name != "orm" {
		return nil, fmt.Errorf("indexing is only supported on orm[...]")
	}
	keyExpr, err := e.eval(idx.Index)
	if err != nil {
		return nil, err
	}
	key, ok := keyExpr.(string)
	if !ok {
		return nil, fmt.Errorf("orm[...] key must be a string, got %T", keyExpr)
	}
	return e.ns.index(key)
}

func (e *evaluator) evalCall(call *ast.CallExpr) (any, error) {
	// The translation-identity shortcut: _("some string") returns its
	// argument unchanged.
	if id, ok := call.Fun.(*ast.Ident); ok && id.Name == "_" {
		if len(call.Args) != 1 {
			return nil, fmt.Errorf("_() takes exactly one argument")
		}
		arg, err := e.eval(call.Args[0])
		if err != nil {
			return nil, err
		}
		s, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("_() argument must be a string")
		}
		return e.underscore(s), nil
	}

	classPath := exprSource(call.Fun)
	var positional []any
	keyword := make(map[string]any)
	for _, arg := range call.Args {
		if kv, ok := arg.(*ast.KeyValueExpr); ok {
			key, ok := kv.Key.(*ast.Ident)
			if !ok {
				return nil, fmt.Errorf("unsupported keyword argument key %T", kv.Key)
			}
			val, err := e.eval(kv.Value)
			if err != nil {
				return nil, err
			}
			keyword[key.Name] = val
			continue
		}
		val, err := e.eval(arg)
		if err != nil {
			return nil, err
		}
		positional = append(positional, val)
	}

	return e.ctors.Build(shortClassName(classPath), positional, keyword)
}

func exprSource(e ast.Expr) string {
	switch v := e.(type) {
	case *ast.Ident:
		return v.Name
	case *ast.SelectorExpr:
		return exprSource(v.X) + "." + v.Sel.Name
	default:
		return ""
	}
}

func shortClassName(classPath string) string {
	parts := strings.Split(classPath, ".")
	return parts[len(parts)-1]
}
