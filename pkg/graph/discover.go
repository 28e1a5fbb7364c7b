// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
)

// unitFilePattern matches on-disk migration unit filenames: anything not
// starting with a dot, excluding the package-init marker file, as specified
// in spec.md §4.1 (`^[^.][^.]*\.py$` in the source framework; the Go
// equivalent is a `.go` source file per unit).
var unitFilePattern = regexp.MustCompile(`^[^.][^.]*\.go$`)

const packageInitFile = "migration.go"

// Loader constructs a *Unit from one migration source file; Discover calls
// it once per unit file. Concrete loaders live outside this package (they import the
// generated migration package); Discover accepts one as a parameter so the
// graph package stays free of host-framework import machinery, per spec.md's
// "narrow collaborator" boundary.
type Loader func(app, name, location string) (*Unit, error)

// Discover locates an application's migrations container under root,
// enumerates unit files, sorts them lexicographically, and loads each via
// load before returning. A missing container signals NoMigrationsError.
func Discover(root fs.FS, app string, load Loader) (*Sequence, error) {
	entries, err := fs.ReadDir(root, "migrations")
	if err != nil {
		return nil, NoMigrationsError{Application: app}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if e.Name() == packageInitFile {
			continue
		}
		if !unitFilePattern.MatchString(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	units := make([]*Unit, 0, len(names))
	for _, fname := range names {
		name := strings.TrimSuffix(fname, path.Ext(fname))
		loc := path.Join("migrations", fname)
		u, err := load(app, name, loc)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}

	return NewSequence(app, units)
}

// DiscoverAll builds sequences for every application named in apps, skipping
// (not erroring on) any application signalling NoMigrationsError.
func DiscoverAll(root fs.FS, apps []string, load Loader) (map[string]*Sequence, error) {
	out := make(map[string]*Sequence)
	for _, app := range apps {
		seq, err := Discover(root, app, load)
		if err != nil {
			if _, isNoMigrations := err.(NoMigrationsError); isNoMigrations {
				continue
			}
			return nil, err
		}
		out[app] = seq
	}
	return out, nil
}
