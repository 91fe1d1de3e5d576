// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/sodaru/somod/lib/module"
)

// ErrNoTemplate is returned by a [Source] for a module that contributes
// no template. It is not a composition error: the module is skipped.
var ErrNoTemplate = errors.New("module has no template")

// Format is the encoding of a raw template.
type Format int

const (
	// FormatJSON is JSON with comments and trailing commas tolerated.
	FormatJSON Format = iota
	// FormatYAML is YAML.
	FormatYAML
)

func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}
	return "json"
}

// RawTemplate is the undecoded template of one module.
type RawTemplate struct {
	Data   []byte
	Format Format
	// Path identifies where the bytes came from, for messages.
	Path string
}

// Source supplies raw template bytes per module. Implementations must
// be safe for concurrent use.
type Source interface {
	Read(ctx context.Context, mod module.Module) (*RawTemplate, error)
}

// Template file locations relative to a module's package location.
const (
	SourceTemplatePath = "serverless/template.yaml"
	BuiltTemplatePath  = "build/serverless/template.json"
)

// TemplatePath returns where [DirSource] reads a module's template and
// the template's format.
func TemplatePath(mod module.Module) (string, Format) {
	relative, format := BuiltTemplatePath, FormatJSON
	if mod.Root {
		relative, format = SourceTemplatePath, FormatYAML
	}
	return filepath.Join(mod.PackageLocation, filepath.FromSlash(relative)), format
}

// DirSource reads templates from module package locations on disk: the
// authored YAML for the root module, the built JSON for all others.
type DirSource struct{}

// Read implements [Source].
func (DirSource) Read(ctx context.Context, mod module.Module) (*RawTemplate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, format := TemplatePath(mod)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoTemplate
	}
	if err != nil {
		return nil, fmt.Errorf("reading template of %s: %w", mod.Name, err)
	}
	return &RawTemplate{Data: data, Format: format, Path: path}, nil
}

// MemorySource serves JSON templates held in memory, keyed by module
// name. Modules without an entry have no template.
type MemorySource map[string]string

// Read implements [Source].
func (m MemorySource) Read(ctx context.Context, mod module.Module) (*RawTemplate, error) {
	document, ok := m[mod.Name]
	if !ok {
		return nil, ErrNoTemplate
	}
	return &RawTemplate{Data: []byte(document), Format: FormatJSON, Path: "memory:" + mod.Name}, nil
}

// DecodeDocument parses raw template bytes into generic JSON values:
// objects as map[string]any, arrays as []any, numbers as float64. YAML
// input is normalized through a JSON round trip so both formats yield
// identical value types.
func DecodeDocument(raw *RawTemplate) (map[string]any, error) {
	var jsonData []byte
	switch raw.Format {
	case FormatYAML:
		var value any
		if err := yaml.Unmarshal(raw.Data, &value); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", raw.Path, err)
		}
		if value == nil {
			return map[string]any{}, nil
		}
		encoded, err := json.Marshal(stringKeys(value))
		if err != nil {
			return nil, fmt.Errorf("normalizing %s: %w", raw.Path, err)
		}
		jsonData = encoded
	default:
		jsonData = jsonc.ToJSON(raw.Data)
	}

	var document any
	if err := json.Unmarshal(jsonData, &document); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", raw.Path, err)
	}
	if document == nil {
		return map[string]any{}, nil
	}
	object, ok := document.(map[string]any)
	if !ok {
		return nil, Errorf(ErrStructural, "template %s must be an object, got %T", raw.Path, document)
	}
	return object, nil
}

// stringKeys rewrites YAML mappings with non-string keys, which yaml.v3
// decodes as map[any]any, into map[string]any. A scalar key takes its
// plain spelling, as it would as a JSON object key.
func stringKeys(value any) any {
	switch value := value.(type) {
	case map[string]any:
		for key, item := range value {
			value[key] = stringKeys(item)
		}
		return value
	case map[any]any:
		object := make(map[string]any, len(value))
		for key, item := range value {
			name := "null"
			if key != nil {
				name = fmt.Sprint(key)
			}
			object[name] = stringKeys(item)
		}
		return object
	case []any:
		for index, item := range value {
			value[index] = stringKeys(item)
		}
		return value
	default:
		return value
	}
}
