// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schemafwd/migrate/pkg/graph"
	"github.com/schemafwd/migrate/pkg/runner"
)

func migrateCmd() *cobra.Command {
	var fake, dryRun, merge, skip bool

	cmd := &cobra.Command{
		Use:   "migrate [app] [target]",
		Short: "Apply outstanding migrations, or roll back to target",
		Long: "With no arguments, brings every discovered application to its latest migration.\n" +
			"With an app argument, brings only that application forward. A target, exact\n" +
			"name or unique prefix, resolves to a specific unit; \"zero\" unapplies every\n" +
			"migration of the application.",
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			targets, err := resolveMigrateTargets(e, args)
			if err != nil {
				return err
			}

			var plan graph.Plan
			for _, t := range targets {
				sub, err := graph.BuildPlan(e.graph, t, e.history, merge, skip)
				if err != nil {
					return err
				}
				plan = append(plan, sub...)
			}
			plan = dedupePlan(plan)

			if len(plan) == 0 {
				fmt.Println("No migrations to apply; all applications are up to date")
				return nil
			}

			var opts []runner.Option
			opts = append(opts, runner.WithLogger(runner.NewLogger()))
			if fake {
				opts = append(opts, runner.WithFake())
			}
			if dryRun {
				opts = append(opts, runner.WithDryRun(true))
			}

			_, err = e.runner.MigrateMany(ctx, plan, opts...)
			return err
		},
	}

	cmd.Flags().BoolVar(&fake, "fake", false, "mark migrations as applied/unapplied without running them")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run each procedure inside a transaction that is always rolled back")
	cmd.Flags().BoolVar(&merge, "merge", false, "allow a plan that would otherwise signal an inconsistent migration history")
	cmd.Flags().BoolVar(&skip, "skip-history-check", false, "alias for --merge")

	return cmd
}

// resolveMigrateTargets expands args into one resolved UnitRef per
// application to migrate: every discovered application (no args), one named
// application (one arg), or that application against an explicit target
// (two args).
func resolveMigrateTargets(e *engine, args []string) ([]graph.UnitRef, error) {
	if len(args) >= 1 {
		app := args[0]
		ref := ""
		if len(args) == 2 {
			ref = args[1]
		}
		target, _, err := graph.ResolveTarget(e.graph, app, ref)
		if err != nil {
			return nil, err
		}
		return []graph.UnitRef{target}, nil
	}

	var targets []graph.UnitRef
	for _, app := range e.graph.Applications() {
		target, _, err := graph.ResolveTarget(e.graph, app, "")
		if err != nil {
			if _, isNoMigrations := err.(graph.NoMigrationsError); isNoMigrations {
				continue
			}
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, nil
}

// dedupePlan drops repeat (unit, direction) steps, keeping each one's first
// occurrence. A multi-application migrate-all run builds one independent
// plan per application target against the same unmodified history, so a
// unit one application depends on across app boundaries (per spec.md §4.1's
// cross-application dependency pull-in) can surface in more than one of
// those sub-plans; concatenating them verbatim would apply it twice.
func dedupePlan(plan graph.Plan) graph.Plan {
	seen := make(map[graph.Step]bool, len(plan))
	out := make(graph.Plan, 0, len(plan))
	for _, step := range plan {
		if seen[step] {
			continue
		}
		seen[step] = true
		out = append(out, step)
	}
	return out
}
