// SPDX-License-Identifier: Apache-2.0

package runner

import "context"

// InitialDataLoader is the external "initial data" loader the
// LoadInitialData decoration triggers once an application's plan reaches
// its last unit and at least one unit of that application was newly
// applied.
type InitialDataLoader interface {
	LoadInitialData(ctx context.Context, appLabel string) error
}

type options struct {
	dryRun              bool
	dryRunPropagate     bool
	fake                bool
	loadInitialData     InitialDataLoader
	logger              Logger
}

// Option configures one MigrateMany call.
type Option func(*options)

// WithDryRun replaces real execution with the dry-run procedure and
// suppresses history writes and event emission. When propagate is false, a
// dry-run failure is swallowed (used internally as the transactional-DDL
// pre-flight); when true, it is returned to the caller.
func WithDryRun(propagate bool) Option {
	return func(o *options) {
		o.dryRun = true
		o.dryRunPropagate = propagate
	}
}

// WithFake suppresses execution entirely but still writes the History
// record, reconciling recorded state with reality.
func WithFake() Option {
	return func(o *options) { o.fake = true }
}

// WithLoadInitialData registers loader to fire when the plan reaches the
// last unit of its target application and at least one unit was newly
// applied (non-fake, non-dry-run) along the way.
func WithLoadInitialData(loader InitialDataLoader) Option {
	return func(o *options) { o.loadInitialData = loader }
}

// WithLogger overrides the runner's default no-op logger.
func WithLogger(l Logger) Option {
	return func(o *options) { o.logger = l }
}
