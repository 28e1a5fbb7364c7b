// SPDX-License-Identifier: Apache-2.0

package frozenorm

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// snapshotSchemaURL is the synthetic resource name the embedded snapshot
// schema is registered under; it is never fetched over the network.
const snapshotSchemaURL = "schemafwd://snapshot.schema.json"

// snapshotSchemaDoc describes the on-disk shape of a migration unit's frozen
// schema.Snapshot: model key to field name to a (class_path, args, kwargs)
// descriptor triple, or a bare expression string.
const snapshotSchemaDoc = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "additionalProperties": {
      "oneOf": [
        {"type": "string"},
        {
          "type": "object",
          "required": ["class_path"],
          "properties": {
            "class_path": {"type": "string"},
            "args": {
              "type": "array",
              "items": {"type": "string"}
            },
            "kwargs": {
              "type": "object",
              "additionalProperties": {"type": "string"}
            }
          },
          "additionalProperties": false
        }
      ]
    }
  }
}`

var snapshotSchema *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(snapshotSchemaURL, strings.NewReader(snapshotSchemaDoc)); err != nil {
		panic("frozenorm: embedded snapshot schema failed to register: " + err.Error())
	}
	sch, err := compiler.Compile(snapshotSchemaURL)
	if err != nil {
		panic("frozenorm: embedded snapshot schema failed to compile: " + err.Error())
	}
	snapshotSchema = sch
}

// ValidateRaw checks that raw (the unmarshalled JSON body of a migration
// unit's embedded snapshot, before conversion to schema.Snapshot) matches the
// expected on-disk shape. Call this before Parse/Build so a malformed
// snapshot is rejected with a precise path rather than surfacing as an
// opaque field-resolution failure deep inside the evaluator.
func ValidateRaw(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return SnapshotShapeError{Cause: err}
	}
	if err := snapshotSchema.Validate(v); err != nil {
		return SnapshotShapeError{Cause: err}
	}
	return nil
}
