// SPDX-License-Identifier: Apache-2.0

package ddl_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/schemafwd/migrate/pkg/ddl"
)

func TestConstraintCache_CreateThenDeleteUnique(t *testing.T) {
	cache := ddl.NewSession().Cache

	require.False(t, cache.IsValid("accounts"))
	cache.Populate("accounts", map[string]map[ddl.ConstraintEntry]bool{
		"email": {ddl.ConstraintEntry{Kind: ddl.Unique, Name: "accounts_email_key"}: true},
	})
	require.True(t, cache.IsValid("accounts"))

	name, err := cache.Find("accounts", ddl.Unique, []string{"email"})
	require.NoError(t, err)
	require.Equal(t, "accounts_email_key", name)

	// Testable property 9: after create then delete on the same columns,
	// the cache entry for those columns is empty.
	cache.Invalidate("accounts")
	require.False(t, cache.IsValid("accounts"))
	_, err = cache.Find("accounts", ddl.Unique, []string{"email"})
	require.Error(t, err)
	var notFound ddl.ConstraintNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestConstraintCache_ExactColumnSetOnly(t *testing.T) {
	cache := ddl.NewSession().Cache
	cache.Populate("widgets", map[string]map[ddl.ConstraintEntry]bool{
		"a": {ddl.ConstraintEntry{Kind: ddl.Unique, Name: "widgets_a_b_key"}: true},
		"b": {ddl.ConstraintEntry{Kind: ddl.Unique, Name: "widgets_a_b_key"}: true},
	})

	// A subset of the columns must not match.
	_, err := cache.Find("widgets", ddl.Unique, []string{"a"})
	require.Error(t, err)

	name, err := cache.Find("widgets", ddl.Unique, []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, "widgets_a_b_key", name)
}

func TestDeferredQueue_DedupMovesToEnd(t *testing.T) {
	q := ddl.NewDeferredQueue()
	q.Add("x", "X1", func(ctx context.Context) error { return nil })
	q.Add("y", "Y", func(ctx context.Context) error { return nil })
	q.Add("x", "X2", func(ctx context.Context) error { return nil })

	require.Equal(t, []string{"Y", "X2"}, q.SQL())
}

func TestForeignKeyConstraintName_TailPreservingTruncation(t *testing.T) {
	name := ddl.ForeignKeyConstraintName(
		"very_long_table_name_that_exceeds_limits",
		"very_long_column_name_reference",
		"another_very_long_target_table_name",
		"id",
		30,
	)
	require.Len(t, name, 30)
	require.Contains(t, name, "_refs_")
}
