// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package keyword

import (
	"context"
	"fmt"
	"strings"

	"github.com/sodaru/somod/lib/jsontree"
	"github.com/sodaru/somod/lib/reference"
	"github.com/sodaru/somod/lib/template"
)

// Issue is one validation problem.
type Issue struct {
	Module  string        `json:"module"`
	Path    jsontree.Path `json:"-"`
	Keyword string        `json:"keyword"`
	Err     error         `json:"-"`
}

// Location renders the issue's path.
func (i Issue) Location() string {
	return i.Path.String()
}

// ValidationError collects every problem found by one validation pass.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	var builder strings.Builder
	if len(e.Issues) == 1 {
		builder.WriteString("template validation failed with 1 error:")
	} else {
		fmt.Fprintf(&builder, "template validation failed with %d errors:", len(e.Issues))
	}
	for _, issue := range e.Issues {
		builder.WriteString("\n  - ")
		builder.WriteString(issue.Err.Error())
	}
	return builder.String()
}

// Unwrap exposes every issue's error to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Issues))
	for i, issue := range e.Issues {
		errs[i] = issue.Err
	}
	return errs
}

// occurrence is one keyword property found in a tree.
type occurrence struct {
	keyword Keyword
	node    Node
	value   any
}

// occurrences lists keyword properties in pre-order, including
// keywords nested inside other keywords' values.
func occurrences(registry *Registry, tree *jsontree.Tree) []occurrence {
	var found []occurrence
	tree.Walk(func(id jsontree.NodeID) bool {
		if tree.Kind(id) != jsontree.KindObject {
			return true
		}
		for _, name := range tree.Keys(id) {
			keyword, ok := registry.Lookup(name)
			if !ok {
				continue
			}
			child, _ := tree.Property(id, name)
			found = append(found, occurrence{
				keyword: keyword,
				node:    Node{Tree: tree, ID: id},
				value:   tree.Value(child),
			})
		}
		return true
	})
	return found
}

// Validate runs every keyword validator over every module's template
// as authored. All problems are returned together as a
// [*ValidationError]; other errors come from building validators.
func Validate(ctx context.Context, registry *Registry, set *template.Set) error {
	resolver := reference.NewResolver(set)
	var issues []Issue

	for _, moduleTemplate := range set.Templates() {
		kc := &Context{Module: moduleTemplate.Module, Set: set, Resolver: resolver}
		validators := make(map[string]Validator)
		tree := jsontree.Parse(moduleTemplate.Raw)

		for _, found := range occurrences(registry, tree) {
			name := found.keyword.Name()
			validator, ok := validators[name]
			if !ok {
				built, err := found.keyword.Validator(ctx, kc)
				if err != nil {
					return fmt.Errorf("preparing %s validator for %s: %w", name, moduleTemplate.Module.Name, err)
				}
				validator = built
				validators[name] = validator
			}
			for _, err := range validator(found.node, found.value) {
				issues = append(issues, Issue{
					Module:  moduleTemplate.Module.Name,
					Path:    found.node.Path(),
					Keyword: name,
					Err:     err,
				})
			}
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// Process rewrites every keyword in each module's effective template
// and returns the keyword-free documents keyed by module name. Values
// are processed bottom-up: a keyword sees its value with every nested
// keyword already replaced. A value contributed by an extending module
// is processed in that module's context. Processor errors are
// fail-fast.
func Process(ctx context.Context, registry *Registry, set *template.Set) (map[string]map[string]any, error) {
	resolver := reference.NewResolver(set)
	processors := make(map[string]map[string]Processor)

	processorFor := func(keyword Keyword, owner string) (Processor, error) {
		byKeyword, ok := processors[owner]
		if !ok {
			byKeyword = make(map[string]Processor)
			processors[owner] = byKeyword
		}
		if processor, ok := byKeyword[keyword.Name()]; ok {
			return processor, nil
		}
		mod, ok := set.Modules().Get(owner)
		if !ok {
			return nil, fmt.Errorf("module %s not in module list", owner)
		}
		processor, err := keyword.Processor(ctx, &Context{Module: mod, Set: set, Resolver: resolver})
		if err != nil {
			return nil, fmt.Errorf("preparing %s processor for %s: %w", keyword.Name(), owner, err)
		}
		byKeyword[keyword.Name()] = processor
		return processor, nil
	}

	documents := make(map[string]map[string]any, len(set.Templates()))
	for _, moduleTemplate := range set.Templates() {
		moduleName := moduleTemplate.Module.Name
		effective, _ := set.Effective(moduleName)
		e := &evaluator{
			registry: registry,
			tree:     jsontree.Parse(effective),
			processor: func(keyword Keyword, path jsontree.Path) (Processor, error) {
				return processorFor(keyword, set.Owner(moduleName, path))
			},
		}
		document, err := e.document()
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", moduleName, err)
		}
		documents[moduleName] = document
	}
	return documents, nil
}

// evaluator rebuilds one document with every keyword replaced.
type evaluator struct {
	registry *Registry
	tree     *jsontree.Tree
	// processor returns the processor for the keyword property at path,
	// built for the module that wrote it.
	processor func(keyword Keyword, path jsontree.Path) (Processor, error)
}

// outcome is the evaluated form of one node. A removed node is dropped
// from its parent. climb > 0 means a replacement aimed at the ancestor
// climb levels above the node.
type outcome struct {
	value   any
	removed bool
	climb   int
}

// up moves an ancestor replacement one level toward its target.
func (o outcome) up() outcome {
	o.climb--
	return o
}

func (e *evaluator) document() (map[string]any, error) {
	result, err := e.evaluate(jsontree.Root)
	if err != nil {
		return nil, err
	}
	if result.removed || result.climb > 0 {
		return nil, fmt.Errorf("cannot replace the document root")
	}
	document, ok := result.value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document root replaced by %T", result.value)
	}
	return document, nil
}

func (e *evaluator) evaluate(id jsontree.NodeID) (outcome, error) {
	switch e.tree.Kind(id) {
	case jsontree.KindArray:
		items := e.tree.Children(id)
		result := make([]any, 0, len(items))
		for _, item := range items {
			child, err := e.evaluate(item)
			if err != nil {
				return outcome{}, err
			}
			if child.climb > 0 {
				return child.up(), nil
			}
			if child.removed {
				continue
			}
			result = append(result, child.value)
		}
		return outcome{value: result}, nil

	case jsontree.KindObject:
		keys := e.tree.Keys(id)
		object := make(map[string]any, len(keys))
		for _, key := range keys {
			property, _ := e.tree.Property(id, key)
			child, err := e.evaluate(property)
			if err != nil {
				return outcome{}, err
			}
			if child.climb > 0 {
				return child.up(), nil
			}
			if child.removed {
				continue
			}
			object[key] = child.value
		}
		return e.replaceKeywords(id, object)

	default:
		return outcome{value: e.tree.Value(id)}, nil
	}
}

// replaceKeywords runs the processors of the keyword properties of
// object, in registry order, and applies their replacements.
func (e *evaluator) replaceKeywords(id jsontree.NodeID, object map[string]any) (outcome, error) {
	node := Node{Tree: e.tree, ID: id}
	for _, keyword := range e.registry.keywords {
		name := keyword.Name()
		value, present := object[name]
		if !present {
			continue
		}
		path := node.Path()
		processor, err := e.processor(keyword, path.Append(jsontree.Key(name)))
		if err != nil {
			return outcome{}, err
		}
		replacement, err := processor(node, value)
		if err != nil {
			return outcome{}, fmt.Errorf("processing %s at %q: %w", name, path.String(), err)
		}

		switch replacement.Kind {
		case ReplaceKeyword:
			delete(object, name)
			properties, _ := replacement.Value.(map[string]any)
			for key, property := range properties {
				existing, isArray := object[key].([]any)
				items, addsArray := property.([]any)
				if isArray && addsArray {
					object[key] = append(append([]any{}, existing...), items...)
					continue
				}
				object[key] = property
			}

		case ReplaceObject:
			if replacement.Level < 0 || replacement.Level > len(path) {
				return outcome{}, fmt.Errorf("%s at %q: replacement level %d out of range", name, path.String(), replacement.Level)
			}
			return outcome{value: replacement.Value, removed: replacement.Remove, climb: replacement.Level}, nil
		}
	}
	return outcome{value: object}, nil
}
