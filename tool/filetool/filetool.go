// Package filetool provides workspace file tools (list, read, write and JSON
// update) rooted at a directory. Paths may not escape the root.
package filetool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/hupe1980/agentloop/tool"
)

// RootProperty is the ActionContext property that overrides the configured
// root directory for a run. The root is only ever read from the host side
// ActionContext; a root argument sent by the model is ignored.
const RootProperty = "workspace_root"

// Options configure the file tools.
type Options struct {
	// Root is the directory every path is resolved against (default ".").
	Root string
	// Tags are attached to every tool (default "fs").
	Tags []string
}

// Tools returns list_files, read_file, write_file and update_json_file.
func Tools(optFns ...func(o *Options)) []tool.Tool {
	return []tool.Tool{
		ListFiles(optFns...),
		ReadFile(optFns...),
		WriteFile(optFns...),
		UpdateJSONFile(optFns...),
	}
}

func options(optFns []func(o *Options)) Options {
	opts := Options{Root: ".", Tags: []string{"fs"}}

	for _, fn := range optFns {
		fn(&opts)
	}

	return opts
}

// rootParam binds the ActionContext. It is optional so the tools work
// without a run context and fall back to Options.Root.
func rootParam() tool.Parameter {
	p := tool.WithActionContext()
	p.Required = false

	return p
}

// openRoot opens the run's root: the context override when present, else the
// configured directory.
func openRoot(opts Options, args tool.Args) (*os.Root, error) {
	dir := opts.Root

	if actx := args.ActionContext(); actx != nil {
		if override, ok := actx.Get(RootProperty, "").(string); ok && override != "" {
			dir = override
		}
	}

	return os.OpenRoot(dir)
}

// ListFiles returns the list_files tool. It walks the root (or the optional
// sub directory) and returns the relative file paths in lexical order.
func ListFiles(optFns ...func(o *Options)) *tool.FunctionTool {
	opts := options(optFns)

	return tool.New(tool.Config{
		Name:        "list_files",
		Description: "List all files in the workspace or in a sub directory.",
		Parameters: []tool.Parameter{
			tool.Optional("directory", "string", "Directory relative to the workspace", "."),
			rootParam(),
		},
		Tags: opts.Tags,
	}, func(_ context.Context, args tool.Args) (any, error) {
		root, err := openRoot(opts, args)
		if err != nil {
			return nil, err
		}
		defer root.Close()

		dir := filepath.ToSlash(filepath.Clean(args.String("directory")))

		var files []string

		err = fs.WalkDir(root.FS(), dir, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}

			if !d.IsDir() {
				files = append(files, path)
			}

			return nil
		})
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("directory %s not found", dir)
			}

			return nil, err
		}

		sort.Strings(files)

		return files, nil
	})
}

// ReadFile returns the read_file tool.
func ReadFile(optFns ...func(o *Options)) *tool.FunctionTool {
	opts := options(optFns)

	return tool.New(tool.Config{
		Name:        "read_file",
		Description: "Read the contents of a file in the workspace.",
		Parameters: []tool.Parameter{
			tool.String("file_name", "Path of the file relative to the workspace"),
			rootParam(),
		},
		Tags: opts.Tags,
	}, func(_ context.Context, args tool.Args) (any, error) {
		name := args.String("file_name")

		root, err := openRoot(opts, args)
		if err != nil {
			return nil, err
		}
		defer root.Close()

		f, err := root.Open(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("file %s not found", name)
			}

			return nil, err
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}

		return string(data), nil
	})
}

// WriteFile returns the write_file tool. Existing files are replaced.
func WriteFile(optFns ...func(o *Options)) *tool.FunctionTool {
	opts := options(optFns)

	return tool.New(tool.Config{
		Name:        "write_file",
		Description: "Write content to a file in the workspace, replacing it if it exists.",
		Parameters: []tool.Parameter{
			tool.String("file_name", "Path of the file relative to the workspace"),
			tool.String("content", "Content to write"),
			rootParam(),
		},
		Tags: opts.Tags,
	}, func(_ context.Context, args tool.Args) (any, error) {
		name := args.String("file_name")

		root, err := openRoot(opts, args)
		if err != nil {
			return nil, err
		}
		defer root.Close()

		if err := writeFile(root, name, []byte(args.String("content"))); err != nil {
			return nil, err
		}

		return fmt.Sprintf("File '%s' updated successfully.", name), nil
	})
}

// UpdateJSONFile returns the update_json_file tool. The file must hold a JSON
// list of objects; the object whose key field equals key gets its value
// field replaced, otherwise a new object is appended.
func UpdateJSONFile(optFns ...func(o *Options)) *tool.FunctionTool {
	opts := options(optFns)

	return tool.New(tool.Config{
		Name:        "update_json_file",
		Description: "Update or append an entry of a JSON file holding a list of objects.",
		Parameters: []tool.Parameter{
			tool.String("file_name", "Path of the JSON file relative to the workspace"),
			tool.String("key", "Value identifying the entry"),
			tool.String("value", "New value of the entry"),
			tool.Optional("key_field", "string", "Field holding the key", "key"),
			tool.Optional("value_field", "string", "Field receiving the value", "value"),
			rootParam(),
		},
		Tags: opts.Tags,
	}, func(_ context.Context, args tool.Args) (any, error) {
		name := args.String("file_name")
		key, value := args.String("key"), args.String("value")
		keyField, valueField := args.String("key_field"), args.String("value_field")

		root, err := openRoot(opts, args)
		if err != nil {
			return nil, err
		}
		defer root.Close()

		f, err := root.Open(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("file %s not found", name)
			}

			return nil, err
		}

		var items []map[string]any

		decErr := json.NewDecoder(f).Decode(&items)
		f.Close()

		if decErr != nil {
			return nil, fmt.Errorf("file %s does not contain a JSON list of objects: %w", name, decErr)
		}

		found := false

		for _, item := range items {
			if item[keyField] == key {
				item[valueField] = value
				found = true

				break
			}
		}

		if !found {
			items = append(items, map[string]any{keyField: key, valueField: value})
		}

		data, err := json.MarshalIndent(items, "", "    ")
		if err != nil {
			return nil, err
		}

		if err := writeFile(root, name, data); err != nil {
			return nil, err
		}

		return fmt.Sprintf("Updated %s with %s: %s", name, key, value), nil
	})
}

func writeFile(root *os.Root, name string, data []byte) error {
	if dir := filepath.Dir(name); dir != "." {
		if err := mkdirAll(root, dir); err != nil {
			return err
		}
	}

	f, err := root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// mkdirAll creates dir and its parents inside root.
func mkdirAll(root *os.Root, dir string) error {
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}

	if fi, err := root.Stat(dir); err == nil {
		if !fi.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}

		return nil
	}

	if err := mkdirAll(root, filepath.Dir(dir)); err != nil {
		return err
	}

	if err := root.Mkdir(dir, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return err
	}

	return nil
}
