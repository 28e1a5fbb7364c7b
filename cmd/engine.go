// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/schemafwd/migrate/cmd/flags"
	"github.com/schemafwd/migrate/pkg/connection"
	"github.com/schemafwd/migrate/pkg/ddl/postgres"
	"github.com/schemafwd/migrate/pkg/frozenorm"
	"github.com/schemafwd/migrate/pkg/graph"
	"github.com/schemafwd/migrate/pkg/history"
	"github.com/schemafwd/migrate/pkg/runner"
	"github.com/schemafwd/migrate/pkg/unitregistry"
)

// engine bundles the live collaborators a subcommand needs: the connection,
// the history store, the runner, and the dependency graph built from the
// on-disk migrations tree. It is the CLI's analogue of a bound *roll.Roll.
type engine struct {
	conn    *connection.Conn
	history *history.Store
	runner  *runner.Runner
	graph   *graph.DependencyGraph
}

func (e *engine) Close() error {
	return e.conn.Close()
}

// newEngine opens the database, loads history, discovers every application's
// migrations under flags.MigrationsRoot, and assembles the runner. Every
// subcommand calls this first, the way the teacher's commands call NewRoll.
func newEngine(ctx context.Context) (*engine, error) {
	conn, err := connection.Open(ctx, flags.PostgresURL(), flags.LockTimeout())
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	hist, err := history.Open(ctx, conn.DB(), flags.HistorySchema())
	if err != nil {
		conn.Close()
		return nil, err
	}

	g, err := discoverGraph(flags.MigrationsRoot())
	if err != nil {
		conn.Close()
		return nil, err
	}

	r := &runner.Runner{
		Opener:  conn,
		Ops:     postgres.New(),
		Dialect: postgres.Dialect{},
		History: hist,
		Graph:   g,
		ORM:     frozenorm.RunnerAdapter{Builder: frozenorm.NewBuilder("")},
	}

	return &engine{conn: conn, history: hist, runner: r, graph: g}, nil
}

// discoverApps lists the application labels under root: every immediate
// subdirectory containing a migrations/ container.
func discoverApps(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading migrations root %q: %w", root, err)
	}

	var apps []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), "migrations")); err == nil {
			apps = append(apps, e.Name())
		}
	}
	sort.Strings(apps)
	return apps, nil
}

// discoverGraph builds the full cross-application DependencyGraph from the
// migrations tree under root, loading each unit via unitregistry.Loader:
// the generated unit files must be compiled into this binary (registering
// themselves in init()) for Loader to resolve them by name.
func discoverGraph(root string) (*graph.DependencyGraph, error) {
	apps, err := discoverApps(root)
	if err != nil {
		return nil, err
	}

	sequences := make(map[string]*graph.Sequence, len(apps))
	for _, app := range apps {
		appFS := os.DirFS(filepath.Join(root, app))
		seq, err := graph.Discover(appFS, app, unitregistry.Loader)
		if err != nil {
			if _, isNoMigrations := err.(graph.NoMigrationsError); isNoMigrations {
				continue
			}
			return nil, err
		}
		sequences[app] = seq
	}

	return graph.NewDependencyGraph(sequences)
}
