package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFillsNestedRegions(t *testing.T) {
	r := Record{ObjetoCompra: "Aquisição de canetas"}
	Normalize(&r)

	require.NotNil(t, r.UnidadeOrgao)
	require.NotNil(t, r.OrgaoEntidade)
	require.NotNil(t, r.AmparoLegal)
	require.NotNil(t, r.UnidadeSubRogada)
	require.NotNil(t, r.OrgaoSubRogado)
	require.NotNil(t, r.FontesOrcamentarias)
	assert.Len(t, r.FontesOrcamentarias, 0)

	// Leaves of a defaulted region are all null.
	assert.Nil(t, r.UnidadeOrgao.NomeUnidade)
	assert.Nil(t, r.OrgaoEntidade.CNPJ)
	assert.Nil(t, r.AmparoLegal.Codigo)
}

func TestNormalizePreservesExistingValues(t *testing.T) {
	nome := "Prefeitura Municipal"
	r := Record{
		ObjetoCompra:  "Compra de lápis",
		OrgaoEntidade: &Organization{RazaoSocial: &nome},
	}
	Normalize(&r)

	require.NotNil(t, r.OrgaoEntidade.RazaoSocial)
	assert.Equal(t, nome, *r.OrgaoEntidade.RazaoSocial)
	// Leaves the source never set stay null.
	assert.Nil(t, r.OrgaoEntidade.CNPJ)
}

func TestNormalizeIdempotent(t *testing.T) {
	uf := "SP"
	r := Record{
		ObjetoCompra: "Material escolar",
		UnidadeOrgao: &OrgUnit{UFSigla: &uf},
		FontesOrcamentarias: []BudgetSource{
			{Nome: &uf},
		},
	}
	Normalize(&r)
	before, err := json.Marshal(r)
	require.NoError(t, err)

	Normalize(&r)
	after, err := json.Marshal(r)
	require.NoError(t, err)

	assert.Equal(t, string(before), string(after))
}

func TestDecodeIdenticalShapeAcrossVariants(t *testing.T) {
	payloads := []string{
		`{"objetoCompra":"Canetas","orgaoEntidade":{"cnpj":"123"},"unidadeOrgao":null}`,
		`{"objetoCompra":"Lápis"}`,
		`{"objetoCompra":"Cadernos","fontesOrcamentarias":[{"codigo":7}]}`,
	}

	var keys []string
	for _, p := range payloads {
		var r Record
		require.NoError(t, json.Unmarshal([]byte(p), &r))
		Normalize(&r)

		raw, err := json.Marshal(r)
		require.NoError(t, err)
		var asMap map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &asMap))

		if keys == nil {
			for k := range asMap {
				keys = append(keys, k)
			}
		} else {
			assert.Len(t, asMap, len(keys), "top-level key sets must be identical")
		}
		// Nested regions marshal as objects, never null.
		assert.NotEqual(t, "null", string(asMap["unidadeOrgao"]))
		assert.NotEqual(t, "null", string(asMap["orgaoEntidade"]))
		assert.NotEqual(t, "null", string(asMap["amparoLegal"]))
		assert.NotEqual(t, "null", string(asMap["fontesOrcamentarias"]))
	}
}

func TestDecodeToleratesNonObjectNested(t *testing.T) {
	// The upstream API sometimes sends a scalar where an object is expected.
	payload := `{"objetoCompra":"Canetas","orgaoEntidade":"oops","amparoLegal":42}`

	var r Record
	require.NoError(t, json.Unmarshal([]byte(payload), &r))
	Normalize(&r)

	require.NotNil(t, r.OrgaoEntidade)
	assert.Nil(t, r.OrgaoEntidade.CNPJ)
	require.NotNil(t, r.AmparoLegal)
	assert.Nil(t, r.AmparoLegal.Codigo)
}
