// SPDX-License-Identifier: Apache-2.0

package frozenorm

import (
	"fmt"

	"github.com/schemafwd/migrate/pkg/schema"
)

// FieldResolutionError is fatal: a field's descriptor expression failed to
// evaluate on both the first and the retry pass.
type FieldResolutionError struct {
	Model schema.ModelKey
	Field string
	Cause error
}

func (e FieldResolutionError) Error() string {
	return fmt.Sprintf("could not resolve field %s.%s: %v", e.Model, e.Field, e.Cause)
}

func (e FieldResolutionError) Unwrap() error { return e.Cause }

// UnknownModelError signals a lookup (orm[app.Model] or orm.Model) for a
// model key absent from the frozen snapshot.
type UnknownModelError struct {
	Key schema.ModelKey
}

func (e UnknownModelError) Error() string {
	return fmt.Sprintf("model %s is not present in this migration's frozen snapshot", e.Key)
}

// AmbiguousShortcutError signals that orm.Model matched more than one
// application's model of the same name.
type AmbiguousShortcutError struct {
	Name    string
	Matches []schema.ModelKey
}

func (e AmbiguousShortcutError) Error() string {
	return fmt.Sprintf("orm.%s is ambiguous across applications: %v", e.Name, e.Matches)
}

// StubAccessError is raised whenever a stub model's data-manipulation
// capability is accessed; stubs only exist to terminate foreign-key
// references and carry no usable data.
type StubAccessError struct {
	Model schema.ModelKey
}

func (e StubAccessError) Error() string {
	return fmt.Sprintf("model %s is a stub; no data access is available", e.Model)
}

// SnapshotShapeError wraps a JSON-schema validation failure on a raw
// on-disk snapshot.
type SnapshotShapeError struct {
	Cause error
}

func (e SnapshotShapeError) Error() string {
	return fmt.Sprintf("snapshot does not match the expected shape: %v", e.Cause)
}

func (e SnapshotShapeError) Unwrap() error { return e.Cause }
