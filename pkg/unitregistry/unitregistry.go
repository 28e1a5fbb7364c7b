// SPDX-License-Identifier: Apache-2.0

// Package unitregistry is the host-side glue between a generated migration
// file and pkg/graph.Discover's Loader callback: each generated unit
// registers a constructor under its (app, name) identity at package-init
// time, the way database/sql drivers register themselves, since Go has no
// runtime import-by-string equivalent to the host framework's lazy module
// import (spec.md §4.1's "Loading a unit").
package unitregistry

import (
	"fmt"
	"sync"

	"github.com/schemafwd/migrate/pkg/graph"
)

type key struct {
	app, name string
}

var (
	mu    sync.Mutex
	units = make(map[key]func() *graph.Unit)
)

// Register binds a unit constructor under (app, name). Called from a
// generated unit file's init(); panics on a duplicate registration, since
// that can only mean two unit files claim the same identity.
func Register(app, name string, ctor func() *graph.Unit) {
	mu.Lock()
	defer mu.Unlock()
	k := key{app, name}
	if _, exists := units[k]; exists {
		panic(fmt.Sprintf("unitregistry: duplicate registration for %s/%s", app, name))
	}
	units[k] = ctor
}

// Loader adapts the registry into a graph.Loader: location is carried
// through verbatim onto the constructed Unit for diagnostics, but the
// registry (not the filesystem) is the source of truth for the unit's code.
func Loader(app, name, location string) (*graph.Unit, error) {
	mu.Lock()
	ctor, ok := units[key{app, name}]
	mu.Unlock()
	if !ok {
		return nil, graph.UnknownMigrationError{Application: app, Ref: name}
	}
	u := ctor()
	u.App = app
	u.Name = name
	u.Location = location
	return u, nil
}
