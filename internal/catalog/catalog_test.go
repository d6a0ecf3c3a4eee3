package catalog

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	tools, err := Default()
	require.NoError(t, err)
	require.Len(t, tools, 11)

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
		assert.True(t, json.Valid(tool.InputSchema), "schema of %s", tool.Name)
		assert.NotEmpty(t, tool.Description, "description of %s", tool.Name)
	}
	assert.Equal(t, []string{
		"adicionar_atleta",
		"listar_atletas",
		"buscar_atleta_pelo_nome",
		"deletar_atleta",
		"registrar_treino",
		"registrar_avaliacao",
		"registrar_bem_estar",
		"gerar_mesociclo",
		"gerar_relatorio_atleta",
		"gerar_relatorio_equipe",
		"gerar_grafico_performance",
	}, names)

	del := tools[3]
	require.NotNil(t, del.Lookup)
	assert.Equal(t, "GET", del.Lookup.Method)
	assert.Equal(t, "id", del.Lookup.IDField)
	assert.Equal(t, "athlete_id", del.Lookup.Bind)
	assert.Equal(t, "DELETE", del.Request.Method)
}

func TestParseDefaultsLookupFieldsAndSchema(t *testing.T) {
	tools, err := Parse([]byte(`
tools:
  - name: drop
    lookup: {method: GET, path: "/things/{name}"}
    request: {method: DELETE, path: "/things/{id}"}
`))
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "id", tools[0].Lookup.IDField)
	assert.Equal(t, "id", tools[0].Lookup.Bind)
	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(tools[0].InputSchema))
}

func TestParseRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"empty":       `tools: []`,
		"no name":     `tools: [{request: {method: GET, path: /x}}]`,
		"bad method":  `tools: [{name: a, request: {method: TRACE, path: /x}}]`,
		"bad path":    `tools: [{name: a, request: {method: GET, path: x}}]`,
		"bad schema":  "tools: [{name: a, request: {method: GET, path: /x}, input_schema: '{nope'}]",
		"bad lookup":  `tools: [{name: a, lookup: {method: GET, path: "x"}, request: {method: GET, path: /x}}]`,
		"placeholder": `tools: [{name: a, request: {method: GET, path: "/x/{a-b}"}}]`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestExpand(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Placeholders("/x/{a}/y/{b}"))

	out, err := Expand("/x/{a}/y/{b}", func(name string) (string, error) { return name + "1", nil })
	require.NoError(t, err)
	assert.Equal(t, "/x/a1/y/b1", out)

	_, err = Expand("/x/{a}", func(name string) (string, error) { return "", errors.New("missing " + name) })
	assert.EqualError(t, err, "missing a")
}
