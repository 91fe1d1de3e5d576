// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"sort"

	"github.com/sodaru/somod/lib/jsontree"
)

// Change is one entry of a merge report: the path (relative to
// Properties) that a merge step wrote, and how.
type Change struct {
	Path jsontree.Path
	// Rule is REPLACE, APPEND, or PREPEND. COMBINE never appears: a
	// combine is reported as the REPLACE of every subtree it wrote.
	Rule MergeRule
	// Start is the first appended index (APPEND only).
	Start int
	// Count is the number of items added (APPEND and PREPEND).
	Count int
}

// Merge layers extension over target and returns the merged value with
// a report of every path written. Neither input is modified; the
// result shares no containers with extension, but may share unchanged
// subtrees with target.
//
// Merge rules, looked up per path by normalized JSON pointer:
//   - REPLACE: extension's value replaces target's
//   - APPEND / PREPEND: extension's items are added after / before
//     target's items; falls back to REPLACE unless both are arrays
//   - COMBINE (default): objects merged per key, keys absent from
//     target copied in; arrays merged index-wise, items beyond
//     target's length copied in; anything else replaced
//
// An object holding a keyword property is one value: when either side
// at a path is such an object, the extension's value replaces it.
func Merge(target, extension map[string]any, rules map[string]MergeRule) (map[string]any, []Change) {
	merger := &merger{rules: rules}
	merged := merger.merge(target, extension, jsontree.Path{})
	object, ok := merged.(map[string]any)
	if !ok {
		object = map[string]any{}
	}
	return object, merger.changes
}

type merger struct {
	rules   map[string]MergeRule
	changes []Change
}

func (m *merger) rule(path jsontree.Path) MergeRule {
	if rule, ok := m.rules[path.Pointer()]; ok {
		return rule
	}
	return RuleCombine
}

func (m *merger) replace(path jsontree.Path, value any) any {
	m.changes = append(m.changes, Change{Path: path, Rule: RuleReplace})
	return jsontree.Clone(value)
}

func (m *merger) merge(target, extension any, path jsontree.Path) any {
	switch m.rule(path) {
	case RuleReplace:
		return m.replace(path, extension)

	case RuleAppend:
		targetItems, targetIsArray := target.([]any)
		items, extensionIsArray := extension.([]any)
		if !targetIsArray || !extensionIsArray {
			return m.replace(path, extension)
		}
		result := make([]any, 0, len(targetItems)+len(items))
		result = append(result, targetItems...)
		result = append(result, jsontree.Clone(items).([]any)...)
		m.changes = append(m.changes, Change{Path: path, Rule: RuleAppend, Start: len(targetItems), Count: len(items)})
		return result

	case RulePrepend:
		targetItems, targetIsArray := target.([]any)
		items, extensionIsArray := extension.([]any)
		if !targetIsArray || !extensionIsArray {
			return m.replace(path, extension)
		}
		result := make([]any, 0, len(targetItems)+len(items))
		result = append(result, jsontree.Clone(items).([]any)...)
		result = append(result, targetItems...)
		m.changes = append(m.changes, Change{Path: path, Rule: RulePrepend, Count: len(items)})
		return result
	}

	switch extensionValue := extension.(type) {
	case map[string]any:
		targetObject, ok := target.(map[string]any)
		if !ok || HoldsKeyword(targetObject) || HoldsKeyword(extensionValue) {
			return m.replace(path, extension)
		}
		result := make(map[string]any, len(targetObject)+len(extensionValue))
		for key, value := range targetObject {
			result[key] = value
		}
		keys := make([]string, 0, len(extensionValue))
		for key := range extensionValue {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			childPath := path.Append(jsontree.Key(key))
			existing, present := targetObject[key]
			if !present {
				result[key] = m.replace(childPath, extensionValue[key])
				continue
			}
			result[key] = m.merge(existing, extensionValue[key], childPath)
		}
		return result

	case []any:
		targetItems, ok := target.([]any)
		if !ok {
			return m.replace(path, extension)
		}
		length := max(len(targetItems), len(extensionValue))
		result := make([]any, length)
		copy(result, targetItems)
		for index, item := range extensionValue {
			childPath := path.Append(jsontree.Index(index))
			if index >= len(targetItems) {
				result[index] = m.replace(childPath, item)
				continue
			}
			result[index] = m.merge(targetItems[index], item, childPath)
		}
		return result

	default:
		return m.replace(path, extension)
	}
}
