// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/schemafwd/migrate/pkg/graph"
	"github.com/schemafwd/migrate/pkg/runner"
)

func rollbackCmd() *cobra.Command {
	var fake bool

	cmd := &cobra.Command{
		Use:   "rollback <app> [target]",
		Short: "Unapply app's most recently applied migration, or roll back to target",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			app := args[0]
			target, err := resolveRollbackTarget(e, app, args)
			if err != nil {
				return err
			}

			sp, _ := pterm.DefaultSpinner.WithText(fmt.Sprintf("Rolling back %s to %s...", app, target.Name)).Start()

			plan, err := graph.BuildPlan(e.graph, target, e.history, false, false)
			if err != nil {
				sp.Fail(err.Error())
				return err
			}
			if len(plan) == 0 {
				sp.Success(fmt.Sprintf("%s is already at %s", app, target.Name))
				return nil
			}

			var opts []runner.Option
			opts = append(opts, runner.WithLogger(runner.NewLogger()))
			if fake {
				opts = append(opts, runner.WithFake())
			}

			if _, err := e.runner.MigrateMany(ctx, plan, opts...); err != nil {
				sp.Fail(fmt.Sprintf("Rollback failed: %s", err))
				return err
			}

			sp.Success(fmt.Sprintf("%s rolled back to %s", app, target.Name))
			return nil
		},
	}

	cmd.Flags().BoolVar(&fake, "fake", false, "mark migrations as unapplied without running their backward procedure")

	return cmd
}

// resolveRollbackTarget picks the predecessor of app's highest applied unit
// when no explicit target is given, per spec.md's "rollback one step"
// convenience over the general backward-plan machinery.
func resolveRollbackTarget(e *engine, app string, args []string) (graph.UnitRef, error) {
	if len(args) == 2 {
		return graph.ResolveTarget(e.graph, app, args[1])
	}

	applied := e.history.AppliedInApp(app)
	if len(applied) == 0 {
		return graph.UnitRef{}, fmt.Errorf("rollback %s: no applied migrations to roll back", app)
	}
	sort.Strings(applied)
	highest := applied[len(applied)-1]

	seq := e.graph.Sequence(app)
	if seq == nil {
		return graph.UnitRef{}, graph.NoMigrationsError{Application: app}
	}
	pred := seq.Predecessor(highest)
	if pred == nil {
		return graph.UnitRef{App: app, Name: graph.ZeroTarget}, nil
	}
	return pred.Ref(), nil
}
