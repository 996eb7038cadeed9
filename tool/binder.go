package tool

import "github.com/hupe1980/agentloop/core"

// Bind merges the model supplied arguments with injected values according to
// the binding table params. supplied is never mutated. Context-sourced
// parameters already present in supplied keep the supplied value; those whose
// key is absent from actx stay unresolved.
func Bind(params []Parameter, supplied map[string]any, actx *core.ActionContext) Args {
	args := make(Args, len(supplied)+1)
	for k, v := range supplied {
		args[k] = v
	}

	for _, p := range params {
		p = Normalize(p)

		switch p.Source {
		case SourceActionContext:
			if actx != nil {
				args[p.Name] = actx
			}
		case SourceContext:
			if _, given := supplied[p.Name]; given || actx == nil {
				continue
			}

			if v, ok := actx.Lookup(p.ContextKey); ok {
				args[p.Name] = v
			}
		}
	}

	return args
}
