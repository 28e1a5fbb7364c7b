// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"fmt"

	"github.com/schemafwd/migrate/pkg/graph"
)

// FailedDryRunError is caught by the pre-flight decorator and reported as
// failure of the enclosing unit.
type FailedDryRunError struct {
	Unit  graph.UnitRef
	Cause error
}

func (e FailedDryRunError) Error() string {
	return fmt.Sprintf("dry run of %s failed: %v", e.Unit, e.Cause)
}

func (e FailedDryRunError) Unwrap() error { return e.Cause }

// ProcedureError wraps a failure raised by a unit's forward or backward
// procedure during real execution.
type ProcedureError struct {
	Unit      graph.UnitRef
	Direction graph.Direction
	Cause     error
}

func (e ProcedureError) Error() string {
	return fmt.Sprintf("%s procedure for %s failed: %v", e.Direction, e.Unit, e.Cause)
}

func (e ProcedureError) Unwrap() error { return e.Cause }

// HistoryWriteError wraps a failure recording or forgetting a unit's
// applied-migration row after its DDL transaction already committed.
type HistoryWriteError struct {
	Unit  graph.UnitRef
	Cause error
}

func (e HistoryWriteError) Error() string {
	return fmt.Sprintf("recording history for %s failed: %v", e.Unit, e.Cause)
}

func (e HistoryWriteError) Unwrap() error { return e.Cause }

// AlreadyInProgressError signals that MigrateMany was called while another
// migrate operation already holds the runner's single in-flight slot.
type AlreadyInProgressError struct{}

func (e AlreadyInProgressError) Error() string {
	return "a migration is already in progress"
}
