// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package keyword

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/sodaru/somod/lib/module"
	"github.com/sodaru/somod/lib/reference"
	"github.com/sodaru/somod/lib/template"
)

// Package-relative locations of function artifacts.
const (
	functionsDirectory      = "serverless/functions"
	middlewaresDirectory    = "serverless/functions/middlewares"
	builtFunctionsDirectory = "build/serverless/functions"
	builtLayersDirectory    = "build/serverless/functionLayers"
	packageJSONFile         = "package.json"
)

// buildPath returns the slash-separated build output location of an
// artifact inside a module package.
func buildPath(mod module.Module, directory, name string) string {
	return path.Join(filepath.ToSlash(mod.PackageLocation), directory, name)
}

// functionSource returns where a function's source must exist: the
// TypeScript entry for the root module, the built bundle otherwise.
func functionSource(mod module.Module, name string) string {
	if mod.Root {
		return filepath.Join(mod.PackageLocation, filepath.FromSlash(functionsDirectory), name+".ts")
	}
	return filepath.Join(mod.PackageLocation, filepath.FromSlash(builtFunctionsDirectory), name, "index.js")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// functionValue is the decoded value of SOMOD::Function.
type functionValue struct {
	Name        string `json:"name"`
	Middlewares []any  `json:"middlewares,omitempty"`
}

func decodeFunction(value any) (functionValue, error) {
	object, ok := value.(map[string]any)
	if !ok {
		return functionValue{}, fmt.Errorf("%s must be an object", template.KeywordFunction)
	}
	name, _ := object["name"].(string)
	if name == "" {
		return functionValue{}, fmt.Errorf("%s.name must be a non-empty string", template.KeywordFunction)
	}
	result := functionValue{Name: name}
	if middlewares, present := object["middlewares"]; present {
		items, ok := middlewares.([]any)
		if !ok {
			return functionValue{}, fmt.Errorf("%s.middlewares must be a list", template.KeywordFunction)
		}
		result.Middlewares = items
	}
	return result, nil
}

// Function is SOMOD::Function: the CodeUri of a serverless function,
// rewritten to the function's build output directory.
func Function() Keyword {
	return &definition{
		name: template.KeywordFunction,
		validator: func(_ context.Context, kc *Context) (Validator, error) {
			return func(node Node, value any) []error {
				if !atResourceProperty(node, "CodeUri", template.TypeFunction) {
					return []error{kc.structural(node, "%s is allowed only as value of CodeUri property of %s resource",
						template.KeywordFunction, template.TypeFunction)}
				}
				function, err := decodeFunction(value)
				if err != nil {
					return []error{kc.structural(node, "%v", err)}
				}

				var errs []error
				source := functionSource(kc.Module, function.Name)
				if !fileExists(source) {
					errs = append(errs, template.Errorf(template.ErrMissingArtifact,
						"Referenced module function {%s, %s} not found. Looked for file %q. Referenced in %q at %q",
						kc.Module.Name, function.Name, filepath.ToSlash(source), kc.Module.Name, node.Location()))
				}

				resourceID, _ := node.ResourceID()
				from := template.ResourceIdentifier{Module: kc.Module.Name, Resource: resourceID}
				for _, item := range function.Middlewares {
					target, err := template.DecodeIdentifier(kc.Module.Name, item)
					if err != nil {
						errs = append(errs, kc.structural(node, "%s.middlewares: %v", template.KeywordFunction, err))
						continue
					}
					targetErrs := kc.Resolver.ValidateTarget(reference.RelationMiddleware, from, target)
					if len(targetErrs) > 0 {
						errs = append(errs, targetErrs...)
						continue
					}
					middleware, _ := kc.Set.Lookup(target)
					if middleware.Type != template.TypeFunctionMiddleware {
						errs = append(errs, template.Errorf(template.ErrTypeMismatch,
							"Middleware %s used in %s must be of type %s, found %s",
							target, from, template.TypeFunctionMiddleware, middleware.Type))
					}
				}
				return errs
			}, nil
		},
		processor: func(_ context.Context, kc *Context) (Processor, error) {
			return func(_ Node, value any) (Replacement, error) {
				function, err := decodeFunction(value)
				if err != nil {
					return Replacement{}, template.Errorf(template.ErrStructural, "%v", err)
				}
				return replaceWith(buildPath(kc.Module, builtFunctionsDirectory, function.Name)), nil
			}, nil
		},
	}
}

// devDependencies reads the devDependencies of a module's package.json.
// A missing package.json has none.
func devDependencies(mod module.Module) (map[string]any, string, error) {
	packagePath := filepath.Join(mod.PackageLocation, packageJSONFile)
	data, err := os.ReadFile(packagePath)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, packagePath, nil
	}
	if err != nil {
		return nil, packagePath, fmt.Errorf("reading %s: %w", packagePath, err)
	}
	var manifest struct {
		DevDependencies map[string]any `json:"devDependencies"`
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &manifest); err != nil {
		return nil, packagePath, fmt.Errorf("parsing %s: %w", packagePath, err)
	}
	if manifest.DevDependencies == nil {
		manifest.DevDependencies = map[string]any{}
	}
	return manifest.DevDependencies, packagePath, nil
}

// layerValue is the decoded value of SOMOD::FunctionLayer.
type layerValue struct {
	Name      string
	Libraries []string
}

func decodeLayer(value any) (layerValue, error) {
	object, ok := value.(map[string]any)
	if !ok {
		return layerValue{}, fmt.Errorf("%s must be an object", template.KeywordFunctionLayer)
	}
	name, _ := object["name"].(string)
	if name == "" {
		return layerValue{}, fmt.Errorf("%s.name must be a non-empty string", template.KeywordFunctionLayer)
	}
	result := layerValue{Name: name}
	if libraries, present := object["libraries"]; present {
		items, ok := libraries.([]any)
		if !ok {
			return layerValue{}, fmt.Errorf("%s.libraries must be a list", template.KeywordFunctionLayer)
		}
		for _, item := range items {
			library, ok := item.(string)
			if !ok {
				return layerValue{}, fmt.Errorf("%s.libraries must contain strings", template.KeywordFunctionLayer)
			}
			result.Libraries = append(result.Libraries, library)
		}
	}
	return result, nil
}

// FunctionLayer is SOMOD::FunctionLayer: the ContentUri of a layer
// assembled from the module's dev dependencies, rewritten to the
// layer's build output directory.
func FunctionLayer() Keyword {
	return &definition{
		name: template.KeywordFunctionLayer,
		validator: func(_ context.Context, kc *Context) (Validator, error) {
			dependencies, packagePath, err := devDependencies(kc.Module)
			if err != nil {
				return nil, err
			}
			return func(node Node, value any) []error {
				if !atResourceProperty(node, "ContentUri", template.TypeLayerVersion) {
					return []error{kc.structural(node, "%s is allowed only as value of ContentUri property of %s resource",
						template.KeywordFunctionLayer, template.TypeLayerVersion)}
				}
				layer, err := decodeLayer(value)
				if err != nil {
					return []error{kc.structural(node, "%v", err)}
				}
				var errs []error
				for _, library := range layer.Libraries {
					if _, ok := dependencies[library]; !ok {
						errs = append(errs, template.Errorf(template.ErrMissingArtifact,
							"%s required in layer %s does not exist in %s as dev dependency",
							library, layer.Name, filepath.ToSlash(packagePath)))
					}
				}
				return errs
			}, nil
		},
		processor: func(_ context.Context, kc *Context) (Processor, error) {
			return func(_ Node, value any) (Replacement, error) {
				layer, err := decodeLayer(value)
				if err != nil {
					return Replacement{}, template.Errorf(template.ErrStructural, "%v", err)
				}
				return replaceWith(buildPath(kc.Module, builtLayersDirectory, layer.Name)), nil
			}, nil
		},
	}
}

// definedMiddlewares lists the middlewares present in a module package:
// source files (by base name) for the root module, built directories
// otherwise.
func definedMiddlewares(mod module.Module) (map[string]bool, error) {
	directory := filepath.Join(mod.PackageLocation, filepath.FromSlash(middlewaresDirectory))
	if !mod.Root {
		directory = filepath.Join(mod.PackageLocation, "build", filepath.FromSlash(middlewaresDirectory))
	}
	entries, err := os.ReadDir(directory)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing middlewares of %s: %w", mod.Name, err)
	}
	defined := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if mod.Root && entry.Type().IsRegular() {
			defined[strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))] = true
		}
		if !mod.Root && entry.IsDir() {
			defined[entry.Name()] = true
		}
	}
	return defined, nil
}

// FunctionMiddleware is SOMOD::FunctionMiddleware: the CodeUri of a
// middleware resource. Middleware resources are bundled into the
// functions that use them, so processing removes the whole resource.
func FunctionMiddleware() Keyword {
	return &definition{
		name: template.KeywordFunctionMiddleware,
		validator: func(_ context.Context, kc *Context) (Validator, error) {
			defined, err := definedMiddlewares(kc.Module)
			if err != nil {
				return nil, err
			}
			return func(node Node, value any) []error {
				if !atResourceProperty(node, "CodeUri", template.TypeFunctionMiddleware) {
					return []error{kc.structural(node, "%s is allowed only as value of CodeUri property of %s resource",
						template.KeywordFunctionMiddleware, template.TypeFunctionMiddleware)}
				}
				name, ok := value.(string)
				if !ok || name == "" {
					return []error{kc.structural(node, "%s must be a non-empty string", template.KeywordFunctionMiddleware)}
				}
				if !defined[name] {
					return []error{template.Errorf(template.ErrMissingArtifact,
						"Function Middleware %s not found. Create the middleware under %s directory. Referenced in %q at %q",
						name, middlewaresDirectory, kc.Module.Name, node.Location())}
				}
				return nil
			}, nil
		},
		processor: func(context.Context, *Context) (Processor, error) {
			return func(Node, any) (Replacement, error) {
				return Replacement{Kind: ReplaceObject, Level: 2, Remove: true}, nil
			}, nil
		},
	}
}
