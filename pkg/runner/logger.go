// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"github.com/pterm/pterm"

	"github.com/schemafwd/migrate/pkg/graph"
)

// Logger is responsible for logging the runner's lifecycle events and
// per-unit progress.
type Logger interface {
	LogPreMigrate(appLabel string)
	LogPostMigrate(appLabel string)
	LogRanMigration(unit graph.UnitRef, dir graph.Direction)

	LogUnitStart(unit graph.UnitRef, dir graph.Direction)
	LogUnitComplete(unit graph.UnitRef, dir graph.Direction)
	LogUnitFake(unit graph.UnitRef, dir graph.Direction)
	LogDryRunStart(unit graph.UnitRef)
	LogRecoveryHint(unit graph.UnitRef, hint string)

	Info(msg string, args ...any)
}

type migrationLogger struct {
	logger pterm.Logger
}

type noopLogger struct{}

// NewLogger returns the pterm-backed Logger used by the CLI front-end.
func NewLogger() Logger {
	return &migrationLogger{logger: pterm.DefaultLogger}
}

// NewNoopLogger returns a Logger that discards everything, for library
// embedding and tests.
func NewNoopLogger() Logger {
	return &noopLogger{}
}

func (l *migrationLogger) LogPreMigrate(appLabel string) {
	l.logger.Info("pre_migrate", l.logger.Args("app", appLabel))
}

func (l *migrationLogger) LogPostMigrate(appLabel string) {
	l.logger.Info("post_migrate", l.logger.Args("app", appLabel))
}

func (l *migrationLogger) LogRanMigration(unit graph.UnitRef, dir graph.Direction) {
	l.logger.Info("ran_migration", l.logger.Args("unit", unit.String(), "direction", dir.String()))
}

func (l *migrationLogger) LogUnitStart(unit graph.UnitRef, dir graph.Direction) {
	l.logger.Info("applying", l.logger.Args("unit", unit.String(), "direction", dir.String()))
}

func (l *migrationLogger) LogUnitComplete(unit graph.UnitRef, dir graph.Direction) {
	l.logger.Info("applied", l.logger.Args("unit", unit.String(), "direction", dir.String()))
}

func (l *migrationLogger) LogUnitFake(unit graph.UnitRef, dir graph.Direction) {
	l.logger.Info("faked", l.logger.Args("unit", unit.String(), "direction", dir.String()))
}

func (l *migrationLogger) LogDryRunStart(unit graph.UnitRef) {
	l.logger.Info("dry run", l.logger.Args("unit", unit.String()))
}

func (l *migrationLogger) LogRecoveryHint(unit graph.UnitRef, hint string) {
	l.logger.Warn("recovery hint", l.logger.Args("unit", unit.String(), "hint", hint))
}

func (l *migrationLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, l.logger.Args(args))
}

func (l *noopLogger) LogPreMigrate(appLabel string)                        {}
func (l *noopLogger) LogPostMigrate(appLabel string)                       {}
func (l *noopLogger) LogRanMigration(unit graph.UnitRef, dir graph.Direction) {}
func (l *noopLogger) LogUnitStart(unit graph.UnitRef, dir graph.Direction)    {}
func (l *noopLogger) LogUnitComplete(unit graph.UnitRef, dir graph.Direction) {}
func (l *noopLogger) LogUnitFake(unit graph.UnitRef, dir graph.Direction)     {}
func (l *noopLogger) LogDryRunStart(unit graph.UnitRef)                      {}
func (l *noopLogger) LogRecoveryHint(unit graph.UnitRef, hint string)        {}
func (l *noopLogger) Info(msg string, args ...any)                           {}
