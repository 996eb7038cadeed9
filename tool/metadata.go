package tool

import (
	"github.com/hupe1980/agentloop/internal/util"
	"github.com/hupe1980/agentloop/model"
)

// Metadata is the LLM facing descriptor of a tool.
type Metadata struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema, public parameters only
	Terminal    bool           `json:"terminal,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
}

// Definition converts the metadata into a model tool definition.
func (m Metadata) Definition() model.ToolDefinition {
	return model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        m.Name,
			Description: m.Description,
			Parameters:  m.Parameters,
		},
	}
}

// Describe derives the metadata of t. Injected parameters never appear in
// the schema; public ones keep their declaration order in the required list.
func Describe(t Tool) (Metadata, error) {
	if err := Validate(t); err != nil {
		return Metadata{}, err
	}

	schema := publicSchema(t.Parameters())

	md := Metadata{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  schema,
		Terminal:    IsTerminal(t),
	}

	if md.Description == "" {
		if d, ok := t.(Documented); ok {
			md.Description = d.Doc()
		}
	}

	if tg, ok := t.(Tagged); ok {
		md.Tags = append([]string(nil), tg.Tags()...)
	}

	return md, nil
}

// publicSchema builds the JSON schema of the public parameters. Optional
// parameters advertise their default.
func publicSchema(params []Parameter) map[string]any {
	props := make([]util.SchemaProperty, 0, len(params))

	for _, p := range params {
		if Normalize(p).Hidden() {
			continue
		}

		props = append(props, util.SchemaProperty{
			Name:        p.Name,
			Type:        p.Type,
			Description: p.Description,
			Required:    p.Required && p.Default == nil,
		})
	}

	schema := util.ObjectSchema(props)

	properties, _ := schema["properties"].(map[string]any)

	for _, p := range params {
		if p.Default == nil || Normalize(p).Hidden() {
			continue
		}

		if prop, ok := properties[p.Name].(map[string]any); ok {
			prop["default"] = p.Default
		}
	}

	return schema
}
