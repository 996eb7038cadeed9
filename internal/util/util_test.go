package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectSchema(t *testing.T) {
	schema := ObjectSchema([]SchemaProperty{
		{Name: "file_name", Description: "File to read", Required: true},
		{Name: "limit", Type: "integer"},
	})

	props := schema["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string", "description": "File to read"}, props["file_name"])
	assert.Equal(t, map[string]any{"type": "integer"}, props["limit"])
	assert.Equal(t, []string{"file_name"}, schema["required"])
}

func TestValidateParameters(t *testing.T) {
	schema := ObjectSchema([]SchemaProperty{
		{Name: "name", Required: true},
		{Name: "count", Type: "integer"},
	})

	require.NoError(t, ValidateParameters(map[string]any{"name": "x", "count": float64(3)}, schema))

	err := ValidateParameters(map[string]any{"count": 1}, schema)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)

	err = ValidateParameters(map[string]any{"name": "x", "count": 1.5}, schema)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "count", verr.Field)
}

func TestRequiredFields_DecodedJSON(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, RequiredFields(map[string]any{"required": []any{"a", "b", 3}}))
	assert.Nil(t, RequiredFields(map[string]any{}))
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Hello {{.name | upper}} from {{default \"nowhere\" .city}}", map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello ADA from nowhere", out)

	out, err = RenderTemplate("plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", out)
}

func TestRenderTemplate_Helpers(t *testing.T) {
	props := map[string]any{
		"tags":        []string{"go", "agents"},
		"ids":         []any{1, "two"},
		"user_config": map[string]any{"lang": "en"},
	}

	tests := []struct {
		name string
		text string
		want string
	}{
		{"get missing", `[{{get "nope"}}]`, "[]"},
		{"join strings", `{{join ", " .tags}}`, "go, agents"},
		{"join any", `{{join "/" .ids}}`, "1/two"},
		{"json", `{{json .user_config}}`, `{"lang":"en"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := RenderTemplate(tt.text, props)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestRenderTemplate_Errors(t *testing.T) {
	_, err := RenderTemplate("{{.name", nil)
	assert.ErrorContains(t, err, "parse template")

	_, err = RenderTemplate(`{{join "," .n}}`, map[string]any{"n": 3})
	assert.ErrorContains(t, err, "unsupported list type int")
}
