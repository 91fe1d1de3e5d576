// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package jsontree

// Clone returns a deep copy of a decoded JSON value. Maps and slices are
// copied recursively; primitives are returned as-is.
func Clone(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		result := make(map[string]any, len(typed))
		for key, item := range typed {
			result[key] = Clone(item)
		}
		return result
	case []any:
		result := make([]any, len(typed))
		for i, item := range typed {
			result[i] = Clone(item)
		}
		return result
	default:
		return value
	}
}

// CloneObject is Clone for the common case of an object root. Returns
// nil for a nil input.
func CloneObject(value map[string]any) map[string]any {
	if value == nil {
		return nil
	}
	return Clone(value).(map[string]any)
}

// Lookup follows path through a decoded JSON value.
func Lookup(value any, path Path) (any, bool) {
	current := value
	for _, segment := range path {
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[segment.String()]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			if !segment.IsIndex() || segment.Index >= len(typed) {
				return nil, false
			}
			current = typed[segment.Index]
		default:
			return nil, false
		}
	}
	return current, true
}
