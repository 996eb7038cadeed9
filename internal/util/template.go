package util

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// RenderTemplate executes text as a text/template over the run properties.
// Text without an action delimiter is returned as is.
//
// Besides the property fields ({{.user_name}}) templates can use:
//
//	get "key"         property value, or "" when unset
//	default d v       v, or d when v is unset or empty
//	upper, lower      case conversion
//	join sep list     joins a []string or []any
//	json v            v encoded as JSON
func RenderTemplate(text string, props map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New("instructions").
		Option("missingkey=zero").
		Funcs(templateFuncs(props)).
		Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, props); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}

	return sb.String(), nil
}

func templateFuncs(props map[string]any) template.FuncMap {
	return template.FuncMap{
		"get": func(key string) any {
			if v, ok := props[key]; ok && v != nil {
				return v
			}

			return ""
		},
		"default": func(def, v any) any {
			if v == nil || v == "" {
				return def
			}

			return v
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"join": func(sep string, list any) (string, error) {
			switch l := list.(type) {
			case []string:
				return strings.Join(l, sep), nil
			case []any:
				parts := make([]string, len(l))
				for i, v := range l {
					parts[i] = fmt.Sprint(v)
				}

				return strings.Join(parts, sep), nil
			case nil:
				return "", nil
			default:
				return "", fmt.Errorf("join: unsupported list type %T", list)
			}
		},
		"json": func(v any) (string, error) {
			b, err := json.Marshal(v)
			return string(b), err
		},
	}
}
