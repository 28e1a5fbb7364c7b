// SPDX-License-Identifier: Apache-2.0

// Package runner applies a Plan computed by pkg/graph against a live
// database: one transaction per unit, a dry-run pre-flight on engines
// without transactional DDL, and the DryRun/Fake/LoadInitialData
// decorations over that base behavior.
package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/schemafwd/migrate/pkg/ddl"
	"github.com/schemafwd/migrate/pkg/graph"
	"github.com/schemafwd/migrate/pkg/schema"
)

// Opener opens a new database transaction for one migrate step.
type Opener interface {
	BeginTx(ctx context.Context) (ddl.Transaction, error)
}

// HistoryStore is the subset of pkg/history.Store the runner writes to,
// beyond the read-only graph.AppliedSet view the planner consumes.
type HistoryStore interface {
	graph.AppliedSet
	Record(ctx context.Context, conn ddl.Connection, ref graph.UnitRef) error
	Forget(ctx context.Context, conn ddl.Connection, ref graph.UnitRef) error
}

// ORMBuilder constructs the frozen ORM handle passed to a unit's procedure,
// from the model snapshot appropriate to its direction.
type ORMBuilder interface {
	Build(snapshot schema.Snapshot) (any, error)
}

// Runner is the applier of spec.md's migration engine: polymorphic over
// direction and decoration, exposing a single MigrateMany entry point.
type Runner struct {
	Opener  Opener
	Ops     ddl.Operations
	Dialect ddl.Dialect
	History HistoryStore
	Graph   *graph.DependencyGraph
	ORM     ORMBuilder

	mu         sync.Mutex
	inProgress bool
}

// Result records what actually happened to one step.
type Result struct {
	Step    graph.Step
	Applied bool // false for dry-run steps, which change nothing
	Faked   bool
}

// MigrateMany applies plan in order, per spec.md §4.2. The caller has
// already resolved the target and built the plan via pkg/graph; MigrateMany
// only dispatches execution.
func (r *Runner) MigrateMany(ctx context.Context, plan graph.Plan, opts ...Option) ([]Result, error) {
	r.mu.Lock()
	if r.inProgress {
		r.mu.Unlock()
		return nil, AlreadyInProgressError{}
	}
	r.inProgress = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.inProgress = false
		r.mu.Unlock()
	}()

	o := &options{logger: NewNoopLogger()}
	for _, opt := range opts {
		opt(o)
	}

	lastIndexOfApp := make(map[string]int, len(plan))
	for i, step := range plan {
		lastIndexOfApp[step.Unit.App] = i
	}

	appsSeen := make(map[string]bool)
	appliedThisApp := make(map[string]bool)
	results := make([]Result, 0, len(plan))

	for i, step := range plan {
		if !appsSeen[step.Unit.App] {
			appsSeen[step.Unit.App] = true
			if !o.dryRun {
				o.logger.LogPreMigrate(step.Unit.App)
			}
		}

		res, err := r.migrate(ctx, step, o)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if res.Applied && !res.Faked {
			appliedThisApp[step.Unit.App] = true
		}

		lastOfApp := i == lastIndexOfApp[step.Unit.App]
		if lastOfApp {
			if !o.dryRun {
				o.logger.LogPostMigrate(step.Unit.App)
			}
			if o.loadInitialData != nil && step.Direction == graph.Forward && appliedThisApp[step.Unit.App] {
				if err := o.loadInitialData.LoadInitialData(ctx, step.Unit.App); err != nil {
					return results, fmt.Errorf("loading initial data for %q: %w", step.Unit.App, err)
				}
			}
		}
	}

	return results, nil
}

func (r *Runner) migrate(ctx context.Context, step graph.Step, o *options) (Result, error) {
	unit, err := r.Graph.Unit(step.Unit)
	if err != nil {
		return Result{}, err
	}

	if o.fake {
		return r.fakeApply(ctx, step, unit, o)
	}

	if o.dryRun {
		err := r.runProcedure(ctx, unit, step.Direction, true)
		if err != nil {
			wrapped := FailedDryRunError{Unit: step.Unit, Cause: err}
			if o.dryRunPropagate {
				return Result{}, wrapped
			}
			o.logger.LogRecoveryHint(step.Unit, wrapped.Error())
			return Result{Step: step, Applied: false}, nil
		}
		return Result{Step: step, Applied: false}, nil
	}

	if !r.Dialect.HasDDLTransactions() && !unit.NoDryRun {
		o.logger.LogDryRunStart(step.Unit)
		if err := r.runProcedure(ctx, unit, step.Direction, true); err != nil {
			return Result{}, FailedDryRunError{Unit: step.Unit, Cause: err}
		}
	}

	o.logger.LogUnitStart(step.Unit, step.Direction)
	if err := r.runProcedure(ctx, unit, step.Direction, false); err != nil {
		procErr := ProcedureError{Unit: step.Unit, Direction: step.Direction, Cause: err}
		if !r.Dialect.HasDDLTransactions() {
			if hintErr := r.runProcedure(ctx, unit, oppositeDirection(step.Direction), true); hintErr == nil {
				o.logger.LogRecoveryHint(step.Unit, "reverse procedure dry-run succeeded; manual repair may be possible")
			}
		}
		return Result{}, procErr
	}

	if err := r.writeHistory(ctx, step); err != nil {
		return Result{}, err
	}

	o.logger.LogUnitComplete(step.Unit, step.Direction)
	o.logger.LogRanMigration(step.Unit, step.Direction)
	return Result{Step: step, Applied: true}, nil
}

func (r *Runner) fakeApply(ctx context.Context, step graph.Step, unit *graph.Unit, o *options) (Result, error) {
	if err := r.writeHistory(ctx, step); err != nil {
		return Result{}, err
	}
	o.logger.LogUnitFake(step.Unit, step.Direction)
	return Result{Step: step, Applied: true, Faked: true}, nil
}

// writeHistory records or forgets step's History row inside its own
// transaction, strictly after the step's DDL transaction (if any) already
// committed, per spec.md §4.2 step 5.
func (r *Runner) writeHistory(ctx context.Context, step graph.Step) error {
	tx, err := r.Opener.BeginTx(ctx)
	if err != nil {
		return HistoryWriteError{Unit: step.Unit, Cause: err}
	}

	var writeErr error
	if step.Direction == graph.Forward {
		writeErr = r.History.Record(ctx, tx, step.Unit)
	} else {
		writeErr = r.History.Forget(ctx, tx, step.Unit)
	}
	if writeErr != nil {
		tx.Rollback()
		return HistoryWriteError{Unit: step.Unit, Cause: writeErr}
	}
	if err := tx.Commit(); err != nil {
		return HistoryWriteError{Unit: step.Unit, Cause: err}
	}
	return nil
}

// runProcedure resolves the snapshot appropriate to dir, builds the frozen
// ORM handle, opens a transaction, invokes the unit's procedure, flushes the
// deferred-SQL queue, and commits or (for a dry run) always rolls back.
func (r *Runner) runProcedure(ctx context.Context, unit *graph.Unit, dir graph.Direction, dryRun bool) error {
	snapshot, err := r.resolveSnapshot(unit, dir)
	if err != nil {
		return err
	}
	orm, err := r.ORM.Build(snapshot)
	if err != nil {
		return fmt.Errorf("building frozen ORM for %s: %w", unit.Ref(), err)
	}

	tx, err := r.Opener.BeginTx(ctx)
	if err != nil {
		return err
	}

	sess := ddl.NewSession()
	sess.DryRun = dryRun
	db := ddl.NewDB(ctx, r.Ops, tx, sess)

	procErr := r.invoke(unit, dir, orm, db)
	if procErr == nil {
		procErr = r.Ops.ExecuteDeferredSQL(ctx, tx, sess)
	}

	if dryRun {
		tx.Rollback()
		return procErr
	}

	if procErr != nil {
		tx.Rollback()
		return procErr
	}
	return tx.Commit()
}

// invoke dispatches a unit's forward or backward code, detecting the
// legacy zero-argument calling convention via the unit's declared
// LegacySignature flag rather than reflection on the function's arity.
func (r *Runner) invoke(unit *graph.Unit, dir graph.Direction, orm any, db *ddl.DB) error {
	if unit.LegacySignature {
		fn := unit.LegacyForward
		if dir == graph.Backward {
			fn = unit.LegacyBackward
		}
		if fn == nil {
			return nil
		}
		return fn()
	}

	fn := unit.Forward
	if dir == graph.Backward {
		fn = unit.Backward
	}
	if fn == nil {
		return nil
	}
	return fn(orm, db)
}

// resolveSnapshot implements spec.md §4.2 step 1: post-state for forward is
// the unit's own Models; pre-state for backward is the predecessor's
// Models, or an empty universe if there is no predecessor.
func (r *Runner) resolveSnapshot(unit *graph.Unit, dir graph.Direction) (schema.Snapshot, error) {
	if dir == graph.Forward {
		return unit.Models, nil
	}
	seq := r.Graph.Sequence(unit.App)
	if seq == nil {
		return schema.Snapshot{}, nil
	}
	pred := seq.Predecessor(unit.Name)
	if pred == nil {
		return schema.Snapshot{}, nil
	}
	return pred.Models, nil
}

func oppositeDirection(d graph.Direction) graph.Direction {
	if d == graph.Forward {
		return graph.Backward
	}
	return graph.Forward
}
