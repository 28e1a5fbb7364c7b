// SPDX-License-Identifier: Apache-2.0

package frozenorm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/schemafwd/migrate/pkg/frozenorm"
	"github.com/schemafwd/migrate/pkg/schema"
)

func cascadeRegistry() *frozenorm.ConstructorRegistry {
	reg := frozenorm.NewConstructorRegistry()
	reg.Register("ForeignKey", func(positional []any, keyword map[string]any) (frozenorm.FieldValue, error) {
		return frozenorm.FieldValue{ClassName: "ForeignKey", Positional: positional, Keyword: keyword}, nil
	})
	reg.Register("CharField", func(positional []any, keyword map[string]any) (frozenorm.FieldValue, error) {
		return frozenorm.FieldValue{ClassName: "CharField", Positional: positional, Keyword: keyword}, nil
	})
	return reg
}

func TestBuilder_Build_BareAndTripleDescriptors(t *testing.T) {
	snap := schema.Snapshot{
		schema.NewModelKey("accounts", "Account"): schema.ModelDef{
			"name": schema.FieldDescriptor{ClassPath: "models.CharField", KeywordArgs: map[string]string{"max_length": "100"}},
			"kind": schema.FieldDescriptor{ClassPath: "models.CASCADE"},
		},
	}

	b := frozenorm.NewBuilder("accounts")
	b.Globals["models.CASCADE"] = "CASCADE"
	b.Registry.Register("CharField", func(positional []any, keyword map[string]any) (frozenorm.FieldValue, error) {
		return frozenorm.FieldValue{ClassName: "CharField", Keyword: keyword}, nil
	})

	orm, err := b.Build(snap)
	require.NoError(t, err)

	m, err := orm.Shortcut("Account")
	require.NoError(t, err)
	require.False(t, m.Stub)

	f, ok := m.Field("name")
	require.True(t, ok)
	require.Equal(t, int64(100), f.Keyword["max_length"])

	kind, ok := m.Field("kind")
	require.True(t, ok)
	require.Equal(t, "CASCADE", kind.Positional[0])
}

func TestBuilder_Build_ForwardReferenceResolvesOnRetryPass(t *testing.T) {
	// "account" is evaluated against orm.Account, which only resolves once
	// every model in the snapshot has its skeleton FrozenModel entry built —
	// exactly the forward reference the retry pass exists for.
	snap := schema.Snapshot{
		schema.NewModelKey("billing", "Invoice"): schema.ModelDef{
			"account": schema.FieldDescriptor{
				ClassPath:      "models.ForeignKey",
				PositionalArgs: []string{"orm.Account"},
				KeywordArgs:    map[string]string{"on_delete": "models.CASCADE"},
			},
		},
		schema.NewModelKey("billing", "Account"): schema.ModelDef{
			"id": schema.FieldDescriptor{ClassPath: "models.AutoField"},
		},
	}

	b := frozenorm.NewBuilder("billing")
	b.Globals["models.CASCADE"] = "CASCADE"
	b.Registry = cascadeRegistry()
	b.Registry.Register("AutoField", func(positional []any, keyword map[string]any) (frozenorm.FieldValue, error) {
		return frozenorm.FieldValue{ClassName: "AutoField"}, nil
	})

	orm, err := b.Build(snap)
	require.NoError(t, err)

	inv, err := orm.Shortcut("Invoice")
	require.NoError(t, err)
	fk, ok := inv.Field("account")
	require.True(t, ok)
	target, ok := fk.Positional[0].(frozenorm.FrozenModel)
	require.True(t, ok)
	require.Equal(t, schema.NewModelKey("billing", "Account"), target.Key)
}

func TestBuilder_Build_UnresolvedFieldIsFatal(t *testing.T) {
	snap := schema.Snapshot{
		schema.NewModelKey("accounts", "Account"): schema.ModelDef{
			"mystery": schema.FieldDescriptor{ClassPath: "models.NoSuchThing(totally_unknown_symbol)"},
		},
	}

	b := frozenorm.NewBuilder("accounts")
	_, err := b.Build(snap)
	require.Error(t, err)
	var resErr frozenorm.FieldResolutionError
	require.ErrorAs(t, err, &resErr)
	require.Equal(t, "mystery", resErr.Field)
}

func TestORM_StubModelForbidsDataAccess(t *testing.T) {
	snap := schema.Snapshot{
		schema.NewModelKey("billing", "Invoice"): schema.ModelDef{
			schema.StubMarker: schema.FieldDescriptor{ClassPath: "True"},
		},
	}

	b := frozenorm.NewBuilder("accounts")
	orm, err := b.Build(snap)
	require.NoError(t, err)

	m, err := orm.Model(schema.NewModelKey("billing", "Invoice"))
	require.NoError(t, err)
	require.True(t, m.Stub)

	err = orm.Objects(m)
	require.Error(t, err)
	var stubErr frozenorm.StubAccessError
	require.ErrorAs(t, err, &stubErr)
}

func TestORM_UnknownModelError(t *testing.T) {
	b := frozenorm.NewBuilder("accounts")
	orm, err := b.Build(schema.Snapshot{})
	require.NoError(t, err)

	_, err = orm.Model(schema.NewModelKey("accounts", "Ghost"))
	require.Error(t, err)
	var unknown frozenorm.UnknownModelError
	require.ErrorAs(t, err, &unknown)
}

func TestValidateRaw_RejectsMalformedDescriptor(t *testing.T) {
	raw := []byte(`{"accounts.account": {"id": {"bad_key": "oops"}}}`)
	err := frozenorm.ValidateRaw(raw)
	require.Error(t, err)
}

func TestValidateRaw_AcceptsBareAndTripleDescriptors(t *testing.T) {
	raw := []byte(`{
		"accounts.account": {
			"id": "models.AutoField()",
			"name": {"class_path": "models.CharField", "kwargs": {"max_length": "100"}}
		}
	}`)
	require.NoError(t, frozenorm.ValidateRaw(raw))
}
