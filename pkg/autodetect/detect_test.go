// SPDX-License-Identifier: Apache-2.0

package autodetect_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/schemafwd/migrate/pkg/autodetect"
	"github.com/schemafwd/migrate/pkg/schema"
)

func TestDetect_AddAndDeleteModel(t *testing.T) {
	old := schema.Snapshot{
		schema.NewModelKey("accounts", "Profile"): schema.ModelDef{
			"id": schema.FieldDescriptor{ClassPath: "models.AutoField"},
		},
	}
	new := schema.Snapshot{
		schema.NewModelKey("accounts", "Account"): schema.ModelDef{
			"id": schema.FieldDescriptor{ClassPath: "models.AutoField"},
		},
	}

	actions := autodetect.Detect(old, new)
	require.Len(t, actions, 2)
	require.Equal(t, autodetect.DeleteModelKind, actions[0].Kind)
	require.Equal(t, autodetect.AddModelKind, actions[1].Kind)
}

func TestDetect_AddAndDeleteField(t *testing.T) {
	model := schema.NewModelKey("accounts", "Account")
	old := schema.Snapshot{model: schema.ModelDef{
		"id":   schema.FieldDescriptor{ClassPath: "models.AutoField"},
		"bio":  schema.FieldDescriptor{ClassPath: "models.TextField"},
	}}
	new := schema.Snapshot{model: schema.ModelDef{
		"id":    schema.FieldDescriptor{ClassPath: "models.AutoField"},
		"email": schema.FieldDescriptor{ClassPath: "models.CharField"},
	}}

	actions := autodetect.Detect(old, new)
	var kinds []autodetect.ActionKind
	for _, a := range actions {
		kinds = append(kinds, a.Kind)
	}
	require.Equal(t, []autodetect.ActionKind{autodetect.DeleteFieldKind, autodetect.AddFieldKind}, kinds)
}

func TestDetect_FieldEqualityRelaxations_NoSpuriousChange(t *testing.T) {
	model := schema.NewModelKey("accounts", "Account")
	old := schema.Snapshot{model: schema.ModelDef{
		"owner": schema.FieldDescriptor{
			ClassPath:      "models.ForeignKey",
			PositionalArgs: []string{"'Account'"},
			KeywordArgs:    map[string]string{"help_text": "'the owner'"},
		},
	}}
	new := schema.Snapshot{model: schema.ModelDef{
		"owner": schema.FieldDescriptor{
			ClassPath:      "django.db.models.ForeignKey",
			KeywordArgs:    map[string]string{"to": "'accounts.Account'"},
		},
	}}

	actions := autodetect.Detect(old, new)
	require.Empty(t, actions, "alias class path + bare-name/to= relaxation must not register a change")
}

func TestDetect_UniqueKeywordChangeEmitsUniqueAction(t *testing.T) {
	model := schema.NewModelKey("accounts", "Account")
	old := schema.Snapshot{model: schema.ModelDef{
		"email": schema.FieldDescriptor{ClassPath: "models.CharField"},
	}}
	new := schema.Snapshot{model: schema.ModelDef{
		"email": schema.FieldDescriptor{ClassPath: "models.CharField", KeywordArgs: map[string]string{"unique": "True"}},
	}}

	actions := autodetect.Detect(old, new)
	require.Len(t, actions, 1)
	require.Equal(t, autodetect.AddUniqueKind, actions[0].Kind)
	require.Equal(t, []string{"email"}, actions[0].Fields)
}

func TestDetect_AddAndDeleteM2MField(t *testing.T) {
	model := schema.NewModelKey("accounts", "Account")
	old := schema.Snapshot{model: schema.ModelDef{
		"id":     schema.FieldDescriptor{ClassPath: "models.AutoField"},
		"groups": schema.FieldDescriptor{ClassPath: "models.ManyToManyField", PositionalArgs: []string{"'Group'"}},
	}}
	new := schema.Snapshot{model: schema.ModelDef{
		"id":    schema.FieldDescriptor{ClassPath: "models.AutoField"},
		"teams": schema.FieldDescriptor{ClassPath: "models.ManyToManyField", PositionalArgs: []string{"'Team'"}},
	}}

	actions := autodetect.Detect(old, new)
	require.Len(t, actions, 2)
	require.Equal(t, autodetect.DeleteM2MKind, actions[0].Kind)
	require.Equal(t, "groups", actions[0].Field)
	require.Equal(t, autodetect.AddM2MKind, actions[1].Kind)
	require.Equal(t, "teams", actions[1].Field)
}

func TestDetect_FieldKindChangeIntoAndOutOfM2M(t *testing.T) {
	model := schema.NewModelKey("accounts", "Account")
	old := schema.Snapshot{model: schema.ModelDef{
		"tags": schema.FieldDescriptor{ClassPath: "models.CharField"},
	}}
	new := schema.Snapshot{model: schema.ModelDef{
		"tags": schema.FieldDescriptor{ClassPath: "models.ManyToManyField", PositionalArgs: []string{"'Tag'"}},
	}}

	actions := autodetect.Detect(old, new)
	require.Len(t, actions, 2)
	require.Equal(t, autodetect.DeleteFieldKind, actions[0].Kind)
	require.Equal(t, autodetect.AddM2MKind, actions[1].Kind)
}

func TestDetect_UniqueTogetherNormalization(t *testing.T) {
	model := schema.NewModelKey("accounts", "Account")
	old := schema.ModelDef{
		"Meta": schema.FieldDescriptor{KeywordArgs: map[string]string{
			"unique_together": "(a, b)",
		}},
	}
	new := schema.ModelDef{
		"Meta": schema.FieldDescriptor{KeywordArgs: map[string]string{
			"unique_together": "(b, a)",
		}},
	}

	actions := autodetect.Detect(schema.Snapshot{model: old}, schema.Snapshot{model: new})
	require.Empty(t, actions, "element order within a unique_together tuple must be irrelevant")
}
