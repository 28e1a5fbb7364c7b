// SPDX-License-Identifier: Apache-2.0

package ddl

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ForeignKeyConstraintName builds the FK constraint name per spec.md §6:
// `{from_col}_refs_{to_col}_{hex-hash-of-(from_table,to_table)}`, truncated
// to maxLen with tail-preserving truncation (the hash suffix, which
// disambiguates same-named constraints across tables, is never cut off).
func ForeignKeyConstraintName(fromTable, fromCol, toTable, toCol string, maxLen int) string {
	h := sha256.Sum256([]byte(fromTable + "\x00" + toTable))
	suffix := hex.EncodeToString(h[:])[:8]
	name := fmt.Sprintf("%s_refs_%s_%s", fromCol, toCol, suffix)
	if len(name) <= maxLen {
		return name
	}
	// Tail-preserving truncation: keep the hash suffix intact, trim from
	// the front of the descriptive prefix.
	return name[len(name)-maxLen:]
}
