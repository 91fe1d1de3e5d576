// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

// Package jsontree provides a navigable view of a decoded JSON document
// for positional validation and keyword processing.
//
// A [Tree] stores every node of the document in a flat slice. Parent
// and child links are indices into that slice, so the structure has no
// pointer cycles even though every node knows its parent: a keyword
// validator can ask "where am I?" through [Tree.Path] and inspect
// siblings and ancestors without the tree owning back-pointers.
//
// Node kinds mirror JSON: objects, arrays, and primitives (string,
// number, bool, null). Object properties are kept in sorted key order
// so that walks are deterministic regardless of how the document was
// decoded.
//
// Paths are sequences of [Segment] values: a property name or an array
// index. [Path.String] renders the slash-joined form used in error
// messages ("Resources/MyFunction/Properties/CodeUri"), and
// [ParsePointer] / [Path.Pointer] implement RFC 6901 JSON pointers for
// merge rules.
//
// The plain-value helpers [Clone] and [Lookup] operate on decoded JSON
// (map[string]any, []any, primitives) without building a tree.
//
// This package depends on no other somod packages.
package jsontree
