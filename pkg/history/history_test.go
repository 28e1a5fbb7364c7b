// SPDX-License-Identifier: Apache-2.0

package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/schemafwd/migrate/pkg/graph"
)

func TestStore_AppliedSetViews(t *testing.T) {
	s := &Store{schema: "schemafwd", cache: map[graph.UnitRef]time.Time{
		{App: "accounts", Name: "0001_initial"}: time.Now(),
		{App: "accounts", Name: "0002_add_bio"}: time.Now(),
		{App: "billing", Name: "0001_initial"}:  time.Now(),
	}}

	require.True(t, s.Applied(graph.UnitRef{App: "accounts", Name: "0001_initial"}))
	require.False(t, s.Applied(graph.UnitRef{App: "accounts", Name: "0003_unapplied"}))

	names := s.AppliedInApp("accounts")
	require.ElementsMatch(t, []string{"0001_initial", "0002_add_bio"}, names)
	require.Empty(t, s.AppliedInApp("unknown"))

	require.Len(t, s.All(), 3)
}

func TestStore_Table(t *testing.T) {
	s := &Store{schema: "my_schema"}
	require.Equal(t, `"my_schema".migration_history`, s.table())
}
