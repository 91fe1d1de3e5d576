// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"sort"

	"github.com/sodaru/somod/lib/jsontree"
)

// PropertyModuleMap mirrors the shape of a merged Properties object and
// records the module that last wrote each subtree. A path's owner is
// the Module of the deepest node present along it.
type PropertyModuleMap struct {
	Module   string
	Children map[jsontree.Segment]*PropertyModuleMap
}

func newPropertyModuleMap(moduleName string) *PropertyModuleMap {
	return &PropertyModuleMap{Module: moduleName}
}

// ModuleAt returns the module owning the value at path.
func (p *PropertyModuleMap) ModuleAt(path jsontree.Path) string {
	owner := p.Module
	current := p
	for _, segment := range path {
		child, ok := current.Children[segment]
		if !ok {
			break
		}
		owner = child.Module
		current = child
	}
	return owner
}

// Child returns the node for one segment.
func (p *PropertyModuleMap) Child(segment jsontree.Segment) (*PropertyModuleMap, bool) {
	child, ok := p.Children[segment]
	return child, ok
}

// Segments returns the child segments: names sorted first, then indices
// in ascending order.
func (p *PropertyModuleMap) Segments() []jsontree.Segment {
	segments := make([]jsontree.Segment, 0, len(p.Children))
	for segment := range p.Children {
		segments = append(segments, segment)
	}
	sort.Slice(segments, func(i, j int) bool {
		left, right := segments[i], segments[j]
		if left.IsIndex() != right.IsIndex() {
			return !left.IsIndex()
		}
		if left.IsIndex() {
			return left.Index < right.Index
		}
		return left.Name < right.Name
	})
	return segments
}

// ensure returns the node at path, creating missing nodes on the way.
// Created nodes inherit their parent's module so the owner of every
// path is unchanged by their creation.
func (p *PropertyModuleMap) ensure(path jsontree.Path) *PropertyModuleMap {
	current := p
	for _, segment := range path {
		child, ok := current.Children[segment]
		if !ok {
			child = newPropertyModuleMap(current.Module)
			if current.Children == nil {
				current.Children = make(map[jsontree.Segment]*PropertyModuleMap)
			}
			current.Children[segment] = child
		}
		current = child
	}
	return current
}

func (p *PropertyModuleMap) setChild(segment jsontree.Segment, child *PropertyModuleMap) {
	if p.Children == nil {
		p.Children = make(map[jsontree.Segment]*PropertyModuleMap)
	}
	p.Children[segment] = child
}

// apply records one merge step's changes as written by moduleName.
func (p *PropertyModuleMap) apply(changes []Change, moduleName string) {
	for _, change := range changes {
		node := p.ensure(change.Path)
		switch change.Rule {
		case RuleAppend:
			for index := change.Start; index < change.Start+change.Count; index++ {
				node.setChild(jsontree.Index(index), newPropertyModuleMap(moduleName))
			}

		case RulePrepend:
			shifted := make(map[jsontree.Segment]*PropertyModuleMap, len(node.Children)+change.Count)
			for segment, child := range node.Children {
				if segment.IsIndex() {
					segment = jsontree.Index(segment.Index + change.Count)
				}
				shifted[segment] = child
			}
			node.Children = shifted
			for index := 0; index < change.Count; index++ {
				node.setChild(jsontree.Index(index), newPropertyModuleMap(moduleName))
			}

		default:
			node.Module = moduleName
			node.Children = nil
		}
	}
}
