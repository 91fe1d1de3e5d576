// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package jsontree

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a path: either a property name or an array
// index. Index is -1 for property names.
type Segment struct {
	Name  string
	Index int
}

// Key returns a property-name segment.
func Key(name string) Segment {
	return Segment{Name: name, Index: -1}
}

// Index returns an array-index segment.
func Index(index int) Segment {
	return Segment{Index: index}
}

// IsIndex reports whether the segment addresses an array element.
func (s Segment) IsIndex() bool {
	return s.Index >= 0
}

// String returns the property name or the decimal index.
func (s Segment) String() string {
	if s.IsIndex() {
		return strconv.Itoa(s.Index)
	}
	return s.Name
}

// Path is a sequence of segments from the document root.
type Path []Segment

// String renders the path joined with "/" and without a leading slash,
// e.g. "Resources/MyFunction/Properties/CodeUri". This is the form used
// in user-facing error messages.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, segment := range p {
		parts[i] = segment.String()
	}
	return strings.Join(parts, "/")
}

// Pointer renders the path as an RFC 6901 JSON pointer. The empty path
// renders as "".
func (p Path) Pointer() string {
	var builder strings.Builder
	for _, segment := range p {
		builder.WriteByte('/')
		if segment.IsIndex() {
			builder.WriteString(strconv.Itoa(segment.Index))
			continue
		}
		builder.WriteString(escapePointerToken(segment.Name))
	}
	return builder.String()
}

// Append returns a new path with segments added. The receiver is never
// modified, so paths can be extended safely during recursion.
func (p Path) Append(segments ...Segment) Path {
	result := make(Path, len(p), len(p)+len(segments))
	copy(result, p)
	return append(result, segments...)
}

// Equal reports whether two paths address the same location.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is an ancestor of (or equal to) p.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// ParsePointer parses an RFC 6901 JSON pointer. Tokens that are
// non-negative decimal integers become index segments; everything else
// becomes a property-name segment. Whether an index token actually
// addresses an array is decided by the caller against the document
// (objects may legitimately have numeric keys).
func ParsePointer(pointer string) (Path, error) {
	if pointer == "" {
		return Path{}, nil
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, fmt.Errorf("JSON pointer %q must start with \"/\"", pointer)
	}
	tokens := strings.Split(pointer[1:], "/")
	path := make(Path, 0, len(tokens))
	for _, token := range tokens {
		name, err := unescapePointerToken(token)
		if err != nil {
			return nil, fmt.Errorf("JSON pointer %q: %w", pointer, err)
		}
		if index, ok := parseIndexToken(name); ok {
			path = append(path, Index(index))
			continue
		}
		path = append(path, Key(name))
	}
	return path, nil
}

// parseIndexToken accepts "0" and decimal integers without leading
// zeros, per RFC 6901's array-index grammar.
func parseIndexToken(token string) (int, bool) {
	if token == "" || (len(token) > 1 && token[0] == '0') {
		return 0, false
	}
	for _, character := range token {
		if character < '0' || character > '9' {
			return 0, false
		}
	}
	index, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return index, true
}

func escapePointerToken(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}

func unescapePointerToken(token string) (string, error) {
	if !strings.Contains(token, "~") {
		return token, nil
	}
	var builder strings.Builder
	for i := 0; i < len(token); i++ {
		if token[i] != '~' {
			builder.WriteByte(token[i])
			continue
		}
		if i+1 >= len(token) {
			return "", fmt.Errorf("dangling escape in token %q", token)
		}
		switch token[i+1] {
		case '0':
			builder.WriteByte('~')
		case '1':
			builder.WriteByte('/')
		default:
			return "", fmt.Errorf("invalid escape ~%c in token %q", token[i+1], token)
		}
		i++
	}
	return builder.String(), nil
}
