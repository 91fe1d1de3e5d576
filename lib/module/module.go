// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

// Package module describes the modules whose templates are composed.
//
// Module discovery and ordering happen upstream (package resolution,
// namespace resolution). This package only models the result: an
// ordered [List] with the root module first and every parent listed
// before its children. [LoadManifest] reads that list from a YAML
// manifest so the composer can run without the upstream resolver.
package module

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Module is one independently versioned unit contributing a template
// fragment. Modules are immutable after the list is built.
type Module struct {
	Name            string `yaml:"name" json:"name"`
	Version         string `yaml:"version" json:"version"`
	PackageLocation string `yaml:"location" json:"location"`
	// Root marks the module being built. Its template is source
	// (authored YAML); every other module contributes a pre-built
	// artifact.
	Root bool `yaml:"root,omitempty" json:"root,omitempty"`
}

// Scope returns the scope prefix of the module name: the text before
// the first "/", or the whole name for unscoped modules.
func (m Module) Scope() string {
	return Scope(m.Name)
}

// Scope returns the scope prefix of a module name.
func Scope(name string) string {
	scope, _, _ := strings.Cut(name, "/")
	return scope
}

// namePattern follows npm package naming: optional "@scope/" prefix,
// lower-case URL-safe characters.
var namePattern = regexp.MustCompile(`^(@[a-z0-9-~][a-z0-9-._~]*/)?[a-z0-9-~][a-z0-9-._~]*$`)

// ValidateName checks that name is a legal module name.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid module name %q", name)
	}
	return nil
}

// List is the resolved module list: root first, parents before
// children.
type List []Module

// NewList validates modules and returns them as a List.
func NewList(modules []Module) (List, error) {
	if len(modules) == 0 {
		return nil, fmt.Errorf("module list is empty")
	}
	if !modules[0].Root {
		return nil, fmt.Errorf("first module %q must be the root module", modules[0].Name)
	}
	seen := make(map[string]bool, len(modules))
	for index, module := range modules {
		if err := ValidateName(module.Name); err != nil {
			return nil, fmt.Errorf("modules[%d]: %w", index, err)
		}
		if seen[module.Name] {
			return nil, fmt.Errorf("modules[%d]: duplicate module %q", index, module.Name)
		}
		seen[module.Name] = true
		if index > 0 && module.Root {
			return nil, fmt.Errorf("modules[%d]: %q is marked root but %q is already the root", index, module.Name, modules[0].Name)
		}
		if module.PackageLocation == "" {
			return nil, fmt.Errorf("modules[%d]: %q has no package location", index, module.Name)
		}
	}
	return List(slices.Clone(modules)), nil
}

// Root returns the root module.
func (l List) Root() Module {
	return l[0]
}

// Get returns the module with the given name.
func (l List) Get(name string) (Module, bool) {
	for _, module := range l {
		if module.Name == name {
			return module, true
		}
	}
	return Module{}, false
}

// Names returns module names in list order.
func (l List) Names() []string {
	names := make([]string, len(l))
	for i, module := range l {
		names[i] = module.Name
	}
	return names
}

// Reverse returns the modules dependency-first: the deepest dependency
// first and the root last.
func (l List) Reverse() List {
	reversed := slices.Clone(l)
	slices.Reverse(reversed)
	return reversed
}
