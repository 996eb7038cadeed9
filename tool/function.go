package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// Func is the signature of a plain Go function exposed as a tool.
type Func func(ctx context.Context, args Args) (any, error)

// Config describes a FunctionTool.
type Config struct {
	// Name is the unique identifier for this tool (required).
	Name string
	// Description is shown to the model. Empty falls back to Doc.
	Description string
	// Doc is the long form documentation of the tool.
	Doc string
	// Parameters is the binding table, public and injected rows alike.
	Parameters []Parameter
	// Terminal marks tools whose successful call ends the run.
	Terminal bool
	// Tags group tools for Registry.Filter.
	Tags []string
}

// FunctionTool is a generic adapter that exposes a plain Go function as a tool.
//
// A FunctionTool has no internal mutable state after construction and is safe
// for concurrent use by multiple goroutines.
type FunctionTool struct {
	cfg Config
	fn  Func
}

var (
	_ Tool       = (*FunctionTool)(nil)
	_ Documented = (*FunctionTool)(nil)
	_ Tagged     = (*FunctionTool)(nil)
	_ Terminal   = (*FunctionTool)(nil)
)

// New constructs a FunctionTool from an explicit binding table and function.
//
// Example:
//
//	readFile := tool.New(tool.Config{
//	  Name:        "read_file",
//	  Description: "Read a file from the workspace",
//	  Parameters: []tool.Parameter{
//	    tool.String("file_name", "Path relative to the workspace"),
//	    tool.FromContext("root", "workspace_root", true),
//	  },
//	}, func(ctx context.Context, args tool.Args) (any, error) {
//	  return os.ReadFile(filepath.Join(args.String("root"), args.String("file_name")))
//	})
func New(cfg Config, fn Func) *FunctionTool {
	params := make([]Parameter, len(cfg.Parameters))
	for i, p := range cfg.Parameters {
		params[i] = Normalize(p)
	}

	cfg.Parameters = params

	return &FunctionTool{cfg: cfg, fn: fn}
}

// Name returns the unique tool name used in function call declarations and routing.
func (t *FunctionTool) Name() string { return t.cfg.Name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.cfg.Description }

// Doc returns the long form documentation.
func (t *FunctionTool) Doc() string { return t.cfg.Doc }

// Parameters returns the binding table.
func (t *FunctionTool) Parameters() []Parameter {
	return append([]Parameter(nil), t.cfg.Parameters...)
}

// Tags returns the tool's tags.
func (t *FunctionTool) Tags() []string { return t.cfg.Tags }

// Terminal reports whether the tool ends the run.
func (t *FunctionTool) Terminal() bool { return t.cfg.Terminal }

// Call invokes the wrapped function.
func (t *FunctionTool) Call(ctx context.Context, args Args) (any, error) {
	if t.fn == nil {
		return nil, NewToolError(t.cfg.Name, "tool has no function", CodeExecution)
	}

	return t.fn(ctx, args)
}

func (t *FunctionTool) validate() error {
	if t.fn == nil {
		return errors.New("no callable function")
	}

	return nil
}

// NewTyped constructs a FunctionTool whose public parameters are derived from
// the struct type In.
//
// Supported tags:
//   - json:"name" - Parameter name
//   - jsonschema:"required" - Mark as required
//   - jsonschema:"description=..." - Parameter description
//   - jsonschema:"default=..." - Default value
//
// Injected parameters are taken from cfg.Parameters and appended after the
// derived ones. The model supplied arguments are decoded into In; fn also
// receives the merged Args to reach injected values.
func NewTyped[In any](cfg Config, fn func(ctx context.Context, in In, args Args) (any, error)) (*FunctionTool, error) {
	public, err := reflectParameters[In]()
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for %s: %w", cfg.Name, err)
	}

	params := public

	for _, p := range cfg.Parameters {
		if Normalize(p).Hidden() {
			params = append(params, p)
		}
	}

	cfg.Parameters = params

	var call Func
	if fn != nil {
		call = func(ctx context.Context, args Args) (any, error) {
			var in In
			if err := decodeArgs(args.Public(), &in); err != nil {
				return nil, NewToolError(cfg.Name, fmt.Sprintf("invalid arguments: %v", err), CodeValidation)
			}

			return fn(ctx, in, args)
		}
	}

	return New(cfg, call), nil
}

// reflectParameters derives public parameter rows from the struct type T.
func reflectParameters[T any]() ([]Parameter, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	schema := reflector.Reflect(new(T))
	if schema.Type != "object" {
		return nil, fmt.Errorf("argument type must be a struct, got %q", schema.Type)
	}

	required := make(map[string]struct{}, len(schema.Required))
	for _, r := range schema.Required {
		required[r] = struct{}{}
	}

	var params []Parameter

	if schema.Properties == nil {
		return params, nil
	}

	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		prop := pair.Value
		_, req := required[pair.Key]

		def := prop.Default
		if n, ok := def.(json.Number); ok {
			def, _ = n.Float64()
		}

		params = append(params, Parameter{
			Name:        pair.Key,
			Type:        prop.Type,
			Description: prop.Description,
			Required:    req,
			Default:     def,
			Source:      SourceModel,
		})
	}

	return params, nil
}

// decodeArgs decodes model arguments into out. JSON numbers arrive as
// float64 and are converted to the target field types.
func decodeArgs(in map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			jsonNumberHook,
		),
	})
	if err != nil {
		return err
	}

	return decoder.Decode(in)
}

// jsonNumberHook unwraps json.Number values produced by decoders using UseNumber.
func jsonNumberHook(_ reflect.Type, _ reflect.Type, data any) (any, error) {
	if n, ok := data.(json.Number); ok {
		if f, err := n.Float64(); err == nil {
			return f, nil
		}

		return n.String(), nil
	}

	return data, nil
}
