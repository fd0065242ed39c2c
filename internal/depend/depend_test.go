package depend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexflow/internal/catalog"
	"lexflow/internal/normalize"
)

func TestOrder_TopologicalAndDeterministic(t *testing.T) {
	vars := []catalog.Variable{
		{Slug: "c", DependsOn: "b", DependencyOperator: "equals", DependencyValue: true},
		{Slug: "b", DependsOn: "a", DependencyOperator: "equals", DependencyValue: true},
		{Slug: "a"},
	}

	ordered, err := Order(vars)
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	assert.Equal(t, "a", ordered[0].Slug)
	assert.Equal(t, "b", ordered[1].Slug)
	assert.Equal(t, "c", ordered[2].Slug)
}

func TestOrder_RejectsDirectCycle(t *testing.T) {
	vars := []catalog.Variable{
		{Slug: "a", DependsOn: "b", DependencyOperator: "equals", DependencyValue: true},
		{Slug: "b", DependsOn: "a", DependencyOperator: "equals", DependencyValue: true},
	}

	_, err := Order(vars)
	require.Error(t, err)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"a", "b"}, cycleErr.Slugs)
}

func TestOrder_RejectsTransitiveCycle(t *testing.T) {
	vars := []catalog.Variable{
		{Slug: "a", DependsOn: "c", DependencyOperator: "equals", DependencyValue: true},
		{Slug: "b", DependsOn: "a", DependencyOperator: "equals", DependencyValue: true},
		{Slug: "c", DependsOn: "b", DependencyOperator: "equals", DependencyValue: true},
	}

	_, err := Order(vars)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestOrder_RejectsUnknownDependency(t *testing.T) {
	vars := []catalog.Variable{
		{Slug: "a", DependsOn: "ghost", DependencyOperator: "equals", DependencyValue: true},
	}
	_, err := Order(vars)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestResolveApplicability_NoDependencyAlwaysApplies(t *testing.T) {
	out := ResolveApplicability([]catalog.Variable{{Slug: "a"}}, nil)
	assert.True(t, out["a"].Applicable)
}

func TestResolveApplicability_DependencySatisfied(t *testing.T) {
	vars := []catalog.Variable{
		{Slug: "tem_liminar", Type: catalog.TypeBoolean},
		{Slug: "data_liminar", DependsOn: "tem_liminar", DependencyOperator: "equals", DependencyValue: true},
	}
	values := map[string]normalize.Canonical{
		"tem_liminar": {Kind: normalize.KindBool, Bool: true},
	}

	out := ResolveApplicability(vars, values)
	assert.True(t, out["data_liminar"].Applicable)
}

func TestResolveApplicability_DependencyNotSatisfied(t *testing.T) {
	vars := []catalog.Variable{
		{Slug: "tem_liminar", Type: catalog.TypeBoolean},
		{Slug: "data_liminar", DependsOn: "tem_liminar", DependencyOperator: "equals", DependencyValue: true},
	}
	values := map[string]normalize.Canonical{
		"tem_liminar": {Kind: normalize.KindBool, Bool: false},
	}

	out := ResolveApplicability(vars, values)
	assert.False(t, out["data_liminar"].Applicable)
	assert.NotEmpty(t, out["data_liminar"].Reason)
}

func TestResolveApplicability_MissingParentValue(t *testing.T) {
	vars := []catalog.Variable{
		{Slug: "tem_liminar", Type: catalog.TypeBoolean},
		{Slug: "data_liminar", DependsOn: "tem_liminar", DependencyOperator: "equals", DependencyValue: true},
	}

	out := ResolveApplicability(vars, map[string]normalize.Canonical{})
	assert.False(t, out["data_liminar"].Applicable)
	assert.Contains(t, out["data_liminar"].Reason, "no value")
}

func TestResolveApplicability_InapplicabilityPropagatesDownChain(t *testing.T) {
	vars := []catalog.Variable{
		{Slug: "a", Type: catalog.TypeBoolean},
		{Slug: "b", DependsOn: "a", DependencyOperator: "equals", DependencyValue: true},
		{Slug: "c", DependsOn: "b", DependencyOperator: "exists"},
	}
	values := map[string]normalize.Canonical{
		"a": {Kind: normalize.KindBool, Bool: false},
		"b": {Kind: normalize.KindText, Text: "stale"},
	}

	out := ResolveApplicability(vars, values)
	assert.False(t, out["b"].Applicable)
	// c's parent is inapplicable even though a stale value exists for it.
	assert.False(t, out["c"].Applicable)
	assert.Contains(t, out["c"].Reason, "not applicable")
}
