// SPDX-License-Identifier: Apache-2.0

package autodetect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemafwd/migrate/pkg/autodetect"
	"github.com/schemafwd/migrate/pkg/schema"
)

func TestRender_AddModelProducesRegistrationAndCreateTable(t *testing.T) {
	model := schema.NewModelKey("accounts", "Account")
	snapshot := schema.Snapshot{
		model: schema.ModelDef{
			"id":    schema.FieldDescriptor{ClassPath: "models.AutoField"},
			"email": schema.FieldDescriptor{ClassPath: "models.CharField", KeywordArgs: map[string]string{"max_length": "254"}},
		},
	}
	actions := []autodetect.Action{
		{Kind: autodetect.AddModelKind, Model: model, ModelDef: snapshot[model]},
	}

	out, err := autodetect.Render("accounts", "accounts", "0001_initial", snapshot, actions)
	require.NoError(t, err)
	src := string(out)

	assert.Contains(t, src, `package accounts`)
	assert.Contains(t, src, `unitregistry.Register("accounts", "0001_initial"`)
	assert.Contains(t, src, "func M0001_initialForward")
	assert.Contains(t, src, "func M0001_initialBackward")
	assert.Contains(t, src, `orm.Model(schema.ModelKey("accounts.account"))`)
	assert.Contains(t, src, "db.CreateTable(")
	assert.Contains(t, src, "db.DeleteTable(")
	assert.Contains(t, src, `schema.ModelKey("accounts.account"): schema.ModelDef{`)
	assert.Contains(t, src, `"email": schema.FieldDescriptor{ClassPath: "models.CharField"`)
}

func TestRender_AddFieldProducesAddAndDropColumn(t *testing.T) {
	model := schema.NewModelKey("accounts", "Account")
	snapshot := schema.Snapshot{
		model: schema.ModelDef{
			"bio": schema.FieldDescriptor{ClassPath: "models.TextField", KeywordArgs: map[string]string{"null": "True"}},
		},
	}
	actions := []autodetect.Action{
		{Kind: autodetect.AddFieldKind, Model: model, Field: "bio", FieldDef: snapshot[model]["bio"]},
	}

	out, err := autodetect.Render("accounts", "accounts", "0002_add_bio", snapshot, actions)
	require.NoError(t, err)
	src := string(out)

	assert.Contains(t, src, `m.Field("bio")`)
	assert.Contains(t, src, `db.AddColumn("accounts_account", "bio", f.Materialize("bio"), true)`)
	assert.Contains(t, src, `db.DeleteColumn("accounts_account", "bio")`)
}

func TestRender_UniqueTogetherProducesCreateAndDeleteUnique(t *testing.T) {
	model := schema.NewModelKey("accounts", "Membership")
	snapshot := schema.Snapshot{model: schema.ModelDef{}}
	actions := []autodetect.Action{
		{Kind: autodetect.AddUniqueKind, Model: model, Fields: []string{"account_id", "org_id"}},
	}

	out, err := autodetect.Render("accounts", "accounts", "0003_unique_membership", snapshot, actions)
	require.NoError(t, err)
	src := string(out)

	assert.Contains(t, src, `db.CreateUnique("accounts_membership", []string{"account_id", "org_id"})`)
	assert.Contains(t, src, `db.DeleteUnique("accounts_membership", []string{"account_id", "org_id"})`)
}

func TestRender_DeterministicOutputForSameInput(t *testing.T) {
	model := schema.NewModelKey("accounts", "Account")
	snapshot := schema.Snapshot{
		model: schema.ModelDef{"id": schema.FieldDescriptor{ClassPath: "models.AutoField"}},
	}
	actions := []autodetect.Action{{Kind: autodetect.AddModelKind, Model: model, ModelDef: snapshot[model]}}

	first, err := autodetect.Render("accounts", "accounts", "0001_initial", snapshot, actions)
	require.NoError(t, err)
	second, err := autodetect.Render("accounts", "accounts", "0001_initial", snapshot, actions)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
