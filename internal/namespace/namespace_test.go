package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexflow/internal/catalog"
)

func TestQualify_UsesConfiguredPrefix(t *testing.T) {
	cat := catalog.Category{Name: "Petições", NamespacePrefix: "peticao"}
	assert.Equal(t, "peticao_valor_causa", Qualify("valor_causa", cat))
}

func TestQualify_FallsBackToSlugifiedName(t *testing.T) {
	cat := catalog.Category{Name: "Procurações e Anexos"}
	assert.Equal(t, "procuracoes_e_anexos_outorgante", Qualify("outorgante", cat))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "peticoes", Slugify("Petições"))
	assert.Equal(t, "acao_civel", Slugify("Ação Cível"))
	assert.Equal(t, "doc_2024", Slugify("  Doc 2024!  "))
}

func TestQualifyAll_QualifiesSlugsAndDependencies(t *testing.T) {
	cats := []catalog.Category{
		{ID: "peticoes", Name: "Petições", NamespacePrefix: "peticao"},
	}
	vars := []catalog.Variable{
		{Slug: "tem_liminar", Type: catalog.TypeBoolean, Category: "peticoes"},
		{Slug: "data_liminar", Type: catalog.TypeDate, Category: "peticoes",
			DependsOn: "tem_liminar", DependencyOperator: "equals", DependencyValue: true},
	}

	out, err := QualifyAll(vars, cats)
	require.NoError(t, err)
	assert.Equal(t, "peticao_tem_liminar", out[0].Slug)
	assert.Equal(t, "peticao_data_liminar", out[1].Slug)
	assert.Equal(t, "peticao_tem_liminar", out[1].DependsOn)
}

func TestQualifyAll_KeepsAlreadyQualifiedCrossCategoryReference(t *testing.T) {
	cats := []catalog.Category{
		{ID: "peticoes", Name: "Petições", NamespacePrefix: "peticao"},
		{ID: "contratos", Name: "Contratos", NamespacePrefix: "contrato"},
	}
	vars := []catalog.Variable{
		{Slug: "assinado", Type: catalog.TypeBoolean, Category: "contratos"},
		{Slug: "clausula_penal", Type: catalog.TypeText, Category: "peticoes",
			DependsOn: "contrato_assinado", DependencyOperator: "equals", DependencyValue: "sim"},
	}

	out, err := QualifyAll(vars, cats)
	require.NoError(t, err)
	assert.Equal(t, "contrato_assinado", out[1].DependsOn)
}

func TestQualifyAll_DetectsCollision(t *testing.T) {
	cats := []catalog.Category{
		{ID: "a", Name: "A", NamespacePrefix: "doc"},
		{ID: "b", Name: "B", NamespacePrefix: "doc"},
	}
	vars := []catalog.Variable{
		{Slug: "valor", Type: catalog.TypeNumber, Category: "a"},
		{Slug: "valor", Type: catalog.TypeNumber, Category: "b"},
	}

	_, err := QualifyAll(vars, cats)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision")
}

func TestQualifyAll_UnknownCategory(t *testing.T) {
	_, err := QualifyAll(
		[]catalog.Variable{{Slug: "x", Type: catalog.TypeText, Category: "nope"}},
		[]catalog.Category{{ID: "a", Name: "A"}},
	)
	require.Error(t, err)
}
