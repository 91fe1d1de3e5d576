// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

// Package keyword implements the SOMOD keywords: object properties
// named "SOMOD::<Name>" whose values are validated and then rewritten
// into plain template values.
//
// Each [Keyword] contributes a [Validator] and a [Processor], both
// built per module from a [Context]. [Validate] runs every validator
// over every module's template as authored and collects all problems
// into one [*ValidationError]. [Process] runs the processors over each
// module's effective template (extensions merged in) and applies the
// returned [Replacement]s, producing keyword-free documents.
//
// The registry is a fixed table resolved by keyword name; dispatch
// never depends on the shape of the value. Keywords are processed
// bottom-up, so the expression keywords (If, Equals, Key and the rest)
// compose by nesting.
package keyword

import (
	"context"
	"fmt"

	"github.com/sodaru/somod/lib/jsontree"
	"github.com/sodaru/somod/lib/module"
	"github.com/sodaru/somod/lib/reference"
	"github.com/sodaru/somod/lib/template"
)

// Context is what a keyword may consult while validating or processing
// values written by one module.
type Context struct {
	Module   module.Module
	Set      *template.Set
	Resolver *reference.Resolver
}

// Node is the object holding a keyword property, within the tree being
// walked.
type Node struct {
	Tree *jsontree.Tree
	ID   jsontree.NodeID
}

// Path returns the node's path from the document root.
func (n Node) Path() jsontree.Path {
	return n.Tree.Path(n.ID)
}

// Location renders the node's path for messages.
func (n Node) Location() string {
	return n.Path().String()
}

// ResourceID returns the resource ID when the node lies inside a
// Resources entry.
func (n Node) ResourceID() (string, bool) {
	path := n.Path()
	if len(path) < 2 || path[0] != jsontree.Key(template.SectionResources) {
		return "", false
	}
	return path[1].Name, true
}

// ResourceType returns the Type of the resource containing the node.
func (n Node) ResourceType() string {
	path := n.Path()
	if len(path) < 2 || path[0] != jsontree.Key(template.SectionResources) {
		return ""
	}
	resource, ok := n.Tree.Ancestor(n.ID, len(path)-2)
	if !ok {
		return ""
	}
	typeNode, ok := n.Tree.Property(resource, "Type")
	if !ok {
		return ""
	}
	resourceType, _ := n.Tree.Value(typeNode).(string)
	return resourceType
}

// Validator checks one keyword occurrence. node holds the keyword;
// value is the keyword's value. Validators never modify the tree.
type Validator func(node Node, value any) []error

// Processor computes the replacement for one keyword occurrence.
type Processor func(node Node, value any) (Replacement, error)

// Keyword is one registered keyword.
type Keyword interface {
	Name() string
	Validator(ctx context.Context, kc *Context) (Validator, error)
	Processor(ctx context.Context, kc *Context) (Processor, error)
}

// ReplacementKind selects how a Replacement is applied.
type ReplacementKind int

const (
	// ReplaceKeyword removes the keyword property and merges the
	// properties of Value (an object) into the node. Array values are
	// appended to arrays already present under the same name.
	ReplaceKeyword ReplacementKind = iota
	// ReplaceObject replaces the node, or its ancestor Level levels
	// up, with Value. With Remove set the target is deleted instead.
	ReplaceObject
)

// Replacement is a processor's result.
type Replacement struct {
	Kind   ReplacementKind
	Value  any
	Level  int
	Remove bool
}

// consume is the replacement of keywords that only feed composition
// and emit nothing.
var consume = Replacement{Kind: ReplaceKeyword, Value: map[string]any{}}

func replaceWith(value any) Replacement {
	return Replacement{Kind: ReplaceObject, Value: value}
}

// Registry is an ordered, fixed set of keywords.
type Registry struct {
	keywords []Keyword
	byName   map[string]Keyword
}

// NewRegistry returns a registry of keywords in the given order.
func NewRegistry(keywords ...Keyword) (*Registry, error) {
	registry := &Registry{byName: make(map[string]Keyword, len(keywords))}
	for _, keyword := range keywords {
		name := keyword.Name()
		if _, duplicate := registry.byName[name]; duplicate {
			return nil, fmt.Errorf("keyword %s registered twice", name)
		}
		registry.byName[name] = keyword
		registry.keywords = append(registry.keywords, keyword)
	}
	return registry, nil
}

// DefaultRegistry returns every keyword the composer supports.
func DefaultRegistry() *Registry {
	registry, err := NewRegistry(
		CreateIf(),
		Access(),
		Output(),
		Extend(),
		DependsOn(),
		Ref(),
		Parameter(),
		ResourceName(),
		ModuleName(),
		Function(),
		FunctionLayer(),
		FunctionMiddleware(),
		And(),
		Or(),
		Equals(),
		If(),
		Key(),
		JSONParse(),
		JSONStringify(),
		TemplateOutputs(),
	)
	if err != nil {
		panic(err)
	}
	return registry
}

// Lookup returns the keyword with the given name.
func (r *Registry) Lookup(name string) (Keyword, bool) {
	keyword, ok := r.byName[name]
	return keyword, ok
}

// Names returns keyword names in registry order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.keywords))
	for i, keyword := range r.keywords {
		names[i] = keyword.Name()
	}
	return names
}

// definition adapts a pair of constructor functions to [Keyword].
type definition struct {
	name      string
	validator func(ctx context.Context, kc *Context) (Validator, error)
	processor func(ctx context.Context, kc *Context) (Processor, error)
}

func (d *definition) Name() string { return d.name }

func (d *definition) Validator(ctx context.Context, kc *Context) (Validator, error) {
	return d.validator(ctx, kc)
}

func (d *definition) Processor(ctx context.Context, kc *Context) (Processor, error) {
	return d.processor(ctx, kc)
}

// structural reports a keyword in an illegal position or with an
// illegal value, located in the module's template.
func (kc *Context) structural(node Node, format string, args ...any) error {
	return template.Errorf(template.ErrStructural, "%s. Used in %q at %q",
		fmt.Sprintf(format, args...), kc.Module.Name, node.Location())
}

// atResourceLevel reports whether node is a Resources/<id> entry.
func atResourceLevel(node Node) bool {
	path := node.Path()
	return len(path) == 2 && path[0] == jsontree.Key(template.SectionResources)
}

// atResourceProperty reports whether node is the value of
// Resources/<id>/Properties/<property> of a resource of resourceType.
func atResourceProperty(node Node, property, resourceType string) bool {
	path := node.Path()
	return len(path) == 4 &&
		path[0] == jsontree.Key(template.SectionResources) &&
		path[2] == jsontree.Key("Properties") &&
		path[3] == jsontree.Key(property) &&
		node.ResourceType() == resourceType
}

// requireResourceLevel builds the validator of keywords legal only as
// resource properties.
func requireResourceLevel(name string, kc *Context, check Validator) Validator {
	return func(node Node, value any) []error {
		if !atResourceLevel(node) {
			return []error{kc.structural(node, "%s is allowed only as Resource Property", name)}
		}
		if check == nil {
			return nil
		}
		return check(node, value)
	}
}
