// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/sodaru/somod/lib/module"
)

// ModuleTree is a set of module packages laid out under one temporary
// directory. The first module added is the root.
type ModuleTree struct {
	t       *testing.T
	base    string
	modules []module.Module
}

// NewModuleTree creates an empty tree in t.TempDir().
func NewModuleTree(t *testing.T) *ModuleTree {
	t.Helper()
	return &ModuleTree{t: t, base: t.TempDir()}
}

// Base returns the directory holding every module package.
func (m *ModuleTree) Base() string {
	return m.base
}

// Module adds a module package and returns its location. The first
// call adds the root module.
func (m *ModuleTree) Module(name string) string {
	m.t.Helper()
	location := filepath.Join(m.base, filepath.FromSlash(name))
	if err := os.MkdirAll(location, 0o755); err != nil {
		m.t.Fatalf("creating module %s: %v", name, err)
	}
	m.modules = append(m.modules, module.Module{
		Name:            name,
		Version:         "1.0.0",
		PackageLocation: location,
		Root:            len(m.modules) == 0,
	})
	return location
}

// Location returns the package location of an added module.
func (m *ModuleTree) Location(name string) string {
	m.t.Helper()
	for _, mod := range m.modules {
		if mod.Name == name {
			return mod.PackageLocation
		}
	}
	m.t.Fatalf("module %s not added", name)
	return ""
}

// List returns the added modules as a validated root-first list.
func (m *ModuleTree) List() module.List {
	m.t.Helper()
	list, err := module.NewList(m.modules)
	if err != nil {
		m.t.Fatalf("building module list: %v", err)
	}
	return list
}

// WriteFile writes content to a path relative to a module's package
// location, creating parent directories.
func (m *ModuleTree) WriteFile(moduleName, relative, content string) string {
	m.t.Helper()
	path := filepath.Join(m.Location(moduleName), filepath.FromSlash(relative))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		m.t.Fatalf("creating directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		m.t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// Template writes a module's template where the composer reads it:
// serverless/template.yaml for the root module (YAML is a superset of
// JSON, so JSON content works for both), build/serverless/template.json
// otherwise.
func (m *ModuleTree) Template(moduleName, content string) string {
	m.t.Helper()
	for _, mod := range m.modules {
		if mod.Name == moduleName && mod.Root {
			return m.WriteFile(moduleName, "serverless/template.yaml", content)
		}
	}
	return m.WriteFile(moduleName, "build/serverless/template.json", content)
}

// Function writes a function source: serverless/functions/<name>.ts
// for the root module, build/serverless/functions/<name>/index.js
// otherwise.
func (m *ModuleTree) Function(moduleName, functionName string) string {
	m.t.Helper()
	if m.isRoot(moduleName) {
		return m.WriteFile(moduleName, "serverless/functions/"+functionName+".ts", "export default async () => {};\n")
	}
	return m.WriteFile(moduleName, "build/serverless/functions/"+functionName+"/index.js", "exports.default = async () => {};\n")
}

// Middleware writes a function middleware source.
func (m *ModuleTree) Middleware(moduleName, middlewareName string) string {
	m.t.Helper()
	if m.isRoot(moduleName) {
		return m.WriteFile(moduleName, "serverless/functions/middlewares/"+middlewareName+".ts", "export default {};\n")
	}
	return m.WriteFile(moduleName, "build/serverless/functions/middlewares/"+middlewareName+"/index.js", "exports.default = {};\n")
}

// PackageJSON writes a module's package.json with the given
// devDependencies.
func (m *ModuleTree) PackageJSON(moduleName string, devDependencies map[string]string) string {
	m.t.Helper()
	data, err := json.MarshalIndent(map[string]any{
		"name":            moduleName,
		"version":         "1.0.0",
		"devDependencies": devDependencies,
	}, "", "  ")
	if err != nil {
		m.t.Fatalf("encoding package.json: %v", err)
	}
	return m.WriteFile(moduleName, "package.json", string(data))
}

func (m *ModuleTree) isRoot(moduleName string) bool {
	for _, mod := range m.modules {
		if mod.Name == moduleName {
			return mod.Root
		}
	}
	m.t.Fatalf("module %s not added", moduleName)
	return false
}

// Manifest writes the module list as somod.modules.yaml in the root
// module's package and returns its path.
func (m *ModuleTree) Manifest() string {
	m.t.Helper()
	if len(m.modules) == 0 {
		m.t.Fatalf("no modules added")
	}
	root := m.modules[0]
	data, err := yaml.Marshal(module.Manifest{Modules: m.modules})
	if err != nil {
		m.t.Fatalf("encoding manifest: %v", err)
	}
	return m.WriteFile(root.Name, "somod.modules.yaml", string(data))
}
