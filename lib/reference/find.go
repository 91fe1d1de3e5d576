// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package reference

import (
	"github.com/sodaru/somod/lib/jsontree"
	"github.com/sodaru/somod/lib/template"
)

// References maps a referencing module name to the template paths of
// its references to one target.
type References map[string][]jsontree.Path

// Count returns the total number of references.
func (r References) Count() int {
	count := 0
	for _, paths := range r {
		count += len(paths)
	}
	return count
}

// FindReferences scans every module's template as authored for links
// to target: SOMOD::Ref values, SOMOD::DependsOn entries, SOMOD::Extend
// declarations, and SOMOD::Function middleware entries. A link without
// a module refers to the module it appears in.
func FindReferences(set *template.Set, target template.ResourceIdentifier) References {
	references := make(References)
	for _, moduleTemplate := range set.Templates() {
		moduleName := moduleTemplate.Module.Name
		tree := jsontree.Parse(moduleTemplate.Raw)
		matches := func(value any) bool {
			identifier, err := template.DecodeIdentifier(moduleName, value)
			return err == nil && identifier == target
		}
		record := func(path jsontree.Path) {
			references[moduleName] = append(references[moduleName], path)
		}

		tree.Walk(func(id jsontree.NodeID) bool {
			if tree.Kind(id) != jsontree.KindObject {
				return true
			}
			path := tree.Path(id)

			if value, ok := keywordValue(tree, id, template.KeywordRef); ok && matches(value) {
				record(path)
			}
			if value, ok := keywordValue(tree, id, template.KeywordExtend); ok && matches(value) {
				record(path)
			}
			if value, ok := keywordValue(tree, id, template.KeywordDependsOn); ok {
				items, _ := value.([]any)
				for index, item := range items {
					if matches(item) {
						record(path.Append(jsontree.Key(template.KeywordDependsOn), jsontree.Index(index)))
					}
				}
			}
			if value, ok := keywordValue(tree, id, template.KeywordFunction); ok {
				function, _ := value.(map[string]any)
				middlewares, _ := function["middlewares"].([]any)
				for index, item := range middlewares {
					if matches(item) {
						record(path.Append(jsontree.Key(template.KeywordFunction), jsontree.Key("middlewares"), jsontree.Index(index)))
					}
				}
			}
			return true
		})
	}
	return references
}

func keywordValue(tree *jsontree.Tree, id jsontree.NodeID, keyword string) (any, bool) {
	child, ok := tree.Property(id, keyword)
	if !ok {
		return nil, false
	}
	return tree.Value(child), true
}
