package activation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexflow/internal/catalog"
	"lexflow/internal/condition"
	"lexflow/internal/normalize"
)

func TestBuildValues_NormalizesAndCollectsWarnings(t *testing.T) {
	vars := []catalog.Variable{
		{Slug: "peticao_valor_causa", Type: catalog.TypeCurrency},
		{Slug: "peticao_tem_liminar", Type: catalog.TypeBoolean},
		{Slug: "peticao_data", Type: catalog.TypeDate},
	}
	raw := map[string]any{
		"peticao_valor_causa": "R$ 300.000,00",
		"peticao_tem_liminar": "sim",
		"peticao_data":        "not a date",
	}

	values, warnings := BuildValues(vars, raw)
	require.Len(t, warnings, 1)
	assert.Equal(t, "peticao_data", warnings[0].Slug)

	require.Contains(t, values, "peticao_valor_causa")
	assert.Equal(t, 300000.00, values["peticao_valor_causa"].Number)
	assert.True(t, values["peticao_tem_liminar"].Bool)
	assert.NotContains(t, values, "peticao_data")
}

func TestRun_CurrencyThresholdScenario(t *testing.T) {
	vars := []catalog.Variable{
		{Slug: "peticao_valor_causa", Type: catalog.TypeCurrency, Category: "peticoes"},
	}
	modules := []catalog.ModuleRule{
		{
			ModuleID: "competencia-vara-civel",
			Condition: condition.Comparison{
				Variable: "peticao_valor_causa",
				Operator: condition.OpGreaterThan,
				Value:    210000,
			},
		},
	}
	values, warnings := BuildValues(vars, map[string]any{"peticao_valor_causa": "R$ 300.000,00"})
	require.Empty(t, warnings)

	out := Run(vars, modules, values)
	require.Len(t, out, 1)
	assert.True(t, out[0].Active)
	assert.Equal(t, []string{"peticao_valor_causa"}, out[0].EvaluatedVariables)
	assert.Empty(t, out[0].MissingVariables)
}

func TestRun_MissingVariableDeactivatesModule(t *testing.T) {
	modules := []catalog.ModuleRule{
		{
			ModuleID: "m1",
			Condition: condition.Comparison{
				Variable: "peticao_valor_causa",
				Operator: condition.OpGreaterThan,
				Value:    210000,
			},
		},
	}

	out := Run(nil, modules, map[string]normalize.Canonical{})
	require.Len(t, out, 1)
	assert.False(t, out[0].Active)
	assert.Equal(t, []string{"peticao_valor_causa"}, out[0].MissingVariables)
}

func TestRun_InapplicableValueWithheldFromModules(t *testing.T) {
	vars := []catalog.Variable{
		{Slug: "tem_liminar", Type: catalog.TypeBoolean},
		{Slug: "data_liminar", Type: catalog.TypeDate,
			DependsOn: "tem_liminar", DependencyOperator: condition.OpEquals, DependencyValue: true},
	}
	// tem_liminar is false, so data_liminar is inapplicable; its stale value
	// must not activate the module.
	values := map[string]normalize.Canonical{
		"tem_liminar":  {Kind: normalize.KindBool, Bool: false},
		"data_liminar": {Kind: normalize.KindDate, Text: "2024-01-01"},
	}
	modules := []catalog.ModuleRule{
		{ModuleID: "prazo-liminar", Condition: condition.Comparison{
			Variable: "data_liminar", Operator: condition.OpEquals, Value: "2024-01-01",
		}},
	}

	out := Run(vars, modules, values)
	require.Len(t, out, 1)
	assert.False(t, out[0].Active)
	assert.Equal(t, []string{"data_liminar"}, out[0].MissingVariables)
}

func TestRun_ExistenceTestStillSeesInapplicableValue(t *testing.T) {
	vars := []catalog.Variable{
		{Slug: "tem_liminar", Type: catalog.TypeBoolean},
		{Slug: "data_liminar", Type: catalog.TypeDate,
			DependsOn: "tem_liminar", DependencyOperator: condition.OpEquals, DependencyValue: true},
	}
	values := map[string]normalize.Canonical{
		"tem_liminar":  {Kind: normalize.KindBool, Bool: false},
		"data_liminar": {Kind: normalize.KindDate, Text: "2024-01-01"},
	}
	modules := []catalog.ModuleRule{
		{ModuleID: "auditoria-liminar", Condition: condition.Comparison{
			Variable: "data_liminar", Operator: condition.OpExists,
		}},
	}

	out := Run(vars, modules, values)
	require.Len(t, out, 1)
	assert.True(t, out[0].Active)
}

func TestRun_OneResultPerModule(t *testing.T) {
	modules := []catalog.ModuleRule{
		{ModuleID: "a", Condition: nil},
		{ModuleID: "b", Condition: condition.Comparison{Variable: "x", Operator: condition.OpExists}},
	}

	out := Run(nil, modules, map[string]normalize.Canonical{})
	require.Len(t, out, 2)
	assert.True(t, out[0].Active) // unconditional module
	assert.False(t, out[1].Active)
}
