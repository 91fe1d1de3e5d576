// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package jsontree

import (
	"sort"
)

// Kind classifies a node.
type Kind uint8

const (
	// KindPrimitive is a string, number, bool, or null.
	KindPrimitive Kind = iota
	// KindObject is a JSON object.
	KindObject
	// KindArray is a JSON array.
	KindArray
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "primitive"
	}
}

// NodeID addresses a node within its Tree.
type NodeID int32

// Root is the ID of the document root in every Tree.
const Root NodeID = 0

// noParent marks the root.
const noParent NodeID = -1

type node struct {
	kind   Kind
	parent NodeID
	// segment is the step from parent to this node. Meaningless for
	// the root.
	segment Segment
	// children holds property nodes (in keys order) for objects and
	// item nodes for arrays.
	children []NodeID
	keys     []string
	value    any
}

// Tree is an arena-backed JSON document. Trees are immutable after
// Parse; all accessors are safe for concurrent readers.
type Tree struct {
	nodes []node
}

// Parse builds a Tree over a decoded JSON value. The value is retained
// (not copied) and must not be mutated while the Tree is in use.
func Parse(value any) *Tree {
	tree := &Tree{}
	tree.add(value, noParent, Segment{Index: -1})
	return tree
}

func (t *Tree) add(value any, parent NodeID, segment Segment) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{parent: parent, segment: segment, value: value})

	switch typed := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		children := make([]NodeID, len(keys))
		for i, key := range keys {
			children[i] = t.add(typed[key], id, Key(key))
		}
		t.nodes[id].kind = KindObject
		t.nodes[id].keys = keys
		t.nodes[id].children = children
	case []any:
		children := make([]NodeID, len(typed))
		for i, item := range typed {
			children[i] = t.add(item, id, Index(i))
		}
		t.nodes[id].kind = KindArray
		t.nodes[id].children = children
	default:
		t.nodes[id].kind = KindPrimitive
	}
	return id
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Kind returns the kind of node id.
func (t *Tree) Kind(id NodeID) Kind {
	return t.nodes[id].kind
}

// Value returns the decoded JSON value at id. For objects and arrays
// this is the original sub-document.
func (t *Tree) Value(id NodeID) any {
	return t.nodes[id].value
}

// Parent returns the parent of id. The root has no parent.
func (t *Tree) Parent(id NodeID) (NodeID, bool) {
	parent := t.nodes[id].parent
	return parent, parent != noParent
}

// Ancestor walks up levels parents from id. Ancestor(id, 0) is id.
func (t *Tree) Ancestor(id NodeID, levels int) (NodeID, bool) {
	current := id
	for range levels {
		parent, ok := t.Parent(current)
		if !ok {
			return 0, false
		}
		current = parent
	}
	return current, true
}

// Segment returns the step from the parent of id to id.
func (t *Tree) Segment(id NodeID) Segment {
	return t.nodes[id].segment
}

// Keys returns the sorted property names of an object node. Returns nil
// for other kinds.
func (t *Tree) Keys(id NodeID) []string {
	return t.nodes[id].keys
}

// Children returns the child node IDs of an object (in Keys order) or
// array (in index order).
func (t *Tree) Children(id NodeID) []NodeID {
	return t.nodes[id].children
}

// Property returns the child of an object node with the given name.
func (t *Tree) Property(id NodeID, name string) (NodeID, bool) {
	n := &t.nodes[id]
	if n.kind != KindObject {
		return 0, false
	}
	index := sort.SearchStrings(n.keys, name)
	if index < len(n.keys) && n.keys[index] == name {
		return n.children[index], true
	}
	return 0, false
}

// Path returns the segments from the root to id by following parent
// links. The root's path is empty.
func (t *Tree) Path(id NodeID) Path {
	depth := 0
	for current := id; t.nodes[current].parent != noParent; current = t.nodes[current].parent {
		depth++
	}
	path := make(Path, depth)
	for current := id; t.nodes[current].parent != noParent; current = t.nodes[current].parent {
		depth--
		path[depth] = t.nodes[current].segment
	}
	return path
}

// Find returns the node addressed by path from the root.
func (t *Tree) Find(path Path) (NodeID, bool) {
	current := Root
	for _, segment := range path {
		n := &t.nodes[current]
		switch {
		case n.kind == KindObject:
			child, ok := t.Property(current, segment.String())
			if !ok {
				return 0, false
			}
			current = child
		case n.kind == KindArray && segment.IsIndex():
			if segment.Index >= len(n.children) {
				return 0, false
			}
			current = n.children[segment.Index]
		default:
			return 0, false
		}
	}
	return current, true
}

// Walk visits every node in pre-order (parents before children, object
// properties in sorted order). Returning false from visit skips the
// node's descendants.
func (t *Tree) Walk(visit func(id NodeID) bool) {
	t.walk(Root, visit)
}

func (t *Tree) walk(id NodeID, visit func(id NodeID) bool) {
	if !visit(id) {
		return
	}
	for _, child := range t.nodes[id].children {
		t.walk(child, visit)
	}
}
