// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package keyword

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/sodaru/somod/lib/template"
)

// The expression keywords compute values while the template is
// composed. Their operands are literals or nested keywords; a nested
// keyword is evaluated first, so validators accept any keyword object
// where an operand of a given type is expected.

// remove is the replacement of a value that evaluates to nothing.
var remove = Replacement{Kind: ReplaceObject, Remove: true}

func noProcessorContext(process Processor) func(context.Context, *Context) (Processor, error) {
	return func(context.Context, *Context) (Processor, error) { return process, nil }
}

func validateWith(check func(kc *Context, node Node, value any) []error) func(context.Context, *Context) (Validator, error) {
	return func(_ context.Context, kc *Context) (Validator, error) {
		return func(node Node, value any) []error { return check(kc, node, value) }, nil
	}
}

func isBoolOperand(value any) bool {
	_, ok := value.(bool)
	return ok || template.HoldsKeyword(value)
}

// operands returns value as a list of exactly count items when count is
// positive, or of any length otherwise.
func operands(value any, count int) ([]any, bool) {
	items, ok := value.([]any)
	if !ok || (count > 0 && len(items) != count) {
		return nil, false
	}
	return items, true
}

// And is SOMOD::And: true when every item of a list of booleans is
// true.
func And() Keyword {
	return logical(template.KeywordAnd, true)
}

// Or is SOMOD::Or: true when any item of a list of booleans is true.
func Or() Keyword {
	return logical(template.KeywordOr, false)
}

// logical builds And (identity true) and Or (identity false).
func logical(name string, identity bool) Keyword {
	return &definition{
		name: name,
		validator: validateWith(func(kc *Context, node Node, value any) []error {
			items, ok := operands(value, 0)
			if !ok {
				return []error{kc.structural(node, "%s must be a list of booleans", name)}
			}
			for index, item := range items {
				if !isBoolOperand(item) {
					return []error{kc.structural(node, "%s[%d] must be a boolean", name, index)}
				}
			}
			return nil
		}),
		processor: noProcessorContext(func(_ Node, value any) (Replacement, error) {
			items, _ := operands(value, 0)
			result := identity
			for index, item := range items {
				operand, ok := item.(bool)
				if !ok {
					return Replacement{}, fmt.Errorf("%s[%d] evaluated to %T, want a boolean", name, index, item)
				}
				if operand != identity {
					result = operand
					break
				}
			}
			return replaceWith(result), nil
		}),
	}
}

// Equals is SOMOD::Equals: whether two values are deeply equal.
func Equals() Keyword {
	return &definition{
		name: template.KeywordEquals,
		validator: validateWith(func(kc *Context, node Node, value any) []error {
			if _, ok := operands(value, 2); !ok {
				return []error{kc.structural(node, "%s must be a list of two values", template.KeywordEquals)}
			}
			return nil
		}),
		processor: noProcessorContext(func(_ Node, value any) (Replacement, error) {
			items, ok := operands(value, 2)
			if !ok {
				return Replacement{}, fmt.Errorf("%s must be a list of two values", template.KeywordEquals)
			}
			return replaceWith(reflect.DeepEqual(items[0], items[1])), nil
		}),
	}
}

// If is SOMOD::If: [condition, then, else]. Without an else value a
// false condition removes the value.
func If() Keyword {
	return &definition{
		name: template.KeywordIf,
		validator: validateWith(func(kc *Context, node Node, value any) []error {
			items, ok := value.([]any)
			if !ok || len(items) < 2 || len(items) > 3 {
				return []error{kc.structural(node, "%s must be a list of condition, value and optional else value", template.KeywordIf)}
			}
			if !isBoolOperand(items[0]) {
				return []error{kc.structural(node, "%s condition must be a boolean", template.KeywordIf)}
			}
			return nil
		}),
		processor: noProcessorContext(func(_ Node, value any) (Replacement, error) {
			items, _ := value.([]any)
			if len(items) < 2 {
				return Replacement{}, fmt.Errorf("%s must have a condition and a value", template.KeywordIf)
			}
			condition, ok := items[0].(bool)
			if !ok {
				return Replacement{}, fmt.Errorf("%s condition evaluated to %T, want a boolean", template.KeywordIf, items[0])
			}
			switch {
			case condition:
				return replaceWith(items[1]), nil
			case len(items) == 3:
				return replaceWith(items[2]), nil
			default:
				return remove, nil
			}
		}),
	}
}

// Key is SOMOD::Key: [container, key], the property of an object or
// the item of a list at an index. A missing key removes the value.
func Key() Keyword {
	return &definition{
		name: template.KeywordKey,
		validator: validateWith(func(kc *Context, node Node, value any) []error {
			items, ok := operands(value, 2)
			if !ok {
				return []error{kc.structural(node, "%s must be a list of container and key", template.KeywordKey)}
			}
			switch container := items[0].(type) {
			case []any:
				if _, isIndex := wholeNumber(items[1]); !isIndex && !template.HoldsKeyword(items[1]) {
					return []error{kc.structural(node, "%s of a list must be an integer index", template.KeywordKey)}
				}
			case map[string]any:
				if template.HoldsKeyword(container) {
					break
				}
				if _, isName := items[1].(string); !isName && !template.HoldsKeyword(items[1]) {
					return []error{kc.structural(node, "%s of an object must be a string", template.KeywordKey)}
				}
			default:
				return []error{kc.structural(node, "%s container must be an object or a list", template.KeywordKey)}
			}
			return nil
		}),
		processor: noProcessorContext(func(_ Node, value any) (Replacement, error) {
			items, ok := operands(value, 2)
			if !ok {
				return Replacement{}, fmt.Errorf("%s must be a list of container and key", template.KeywordKey)
			}
			switch container := items[0].(type) {
			case []any:
				at, ok := wholeNumber(items[1])
				if !ok {
					return Replacement{}, fmt.Errorf("%s of a list evaluated to %v, want an integer index", template.KeywordKey, items[1])
				}
				if at < 0 || at >= len(container) {
					return remove, nil
				}
				return replaceWith(container[at]), nil
			case map[string]any:
				name, ok := items[1].(string)
				if !ok {
					return Replacement{}, fmt.Errorf("%s of an object evaluated to %T, want a string", template.KeywordKey, items[1])
				}
				property, present := container[name]
				if !present {
					return remove, nil
				}
				return replaceWith(property), nil
			default:
				return Replacement{}, fmt.Errorf("%s container evaluated to %T, want an object or a list", template.KeywordKey, items[0])
			}
		}),
	}
}

// wholeNumber reads a JSON number that is a whole number.
func wholeNumber(value any) (int, bool) {
	switch number := value.(type) {
	case float64:
		if number != math.Trunc(number) || math.IsInf(number, 0) {
			return 0, false
		}
		return int(number), true
	case int:
		return number, true
	default:
		return 0, false
	}
}

// JSONParse is SOMOD::JSONParse: the value encoded in a JSON string.
func JSONParse() Keyword {
	return &definition{
		name: template.KeywordJSONParse,
		validator: validateWith(func(kc *Context, node Node, value any) []error {
			switch text := value.(type) {
			case string:
				if !json.Valid([]byte(text)) {
					return []error{kc.structural(node, "%s value is not valid JSON", template.KeywordJSONParse)}
				}
			default:
				if !template.HoldsKeyword(value) {
					return []error{kc.structural(node, "%s must be a string", template.KeywordJSONParse)}
				}
			}
			return nil
		}),
		processor: noProcessorContext(func(_ Node, value any) (Replacement, error) {
			text, ok := value.(string)
			if !ok {
				return Replacement{}, fmt.Errorf("%s evaluated to %T, want a string", template.KeywordJSONParse, value)
			}
			var parsed any
			if err := json.Unmarshal([]byte(text), &parsed); err != nil {
				return Replacement{}, fmt.Errorf("%s: %w", template.KeywordJSONParse, err)
			}
			return replaceWith(parsed), nil
		}),
	}
}

// JSONStringify is SOMOD::JSONStringify: the value encoded as a compact
// JSON string.
func JSONStringify() Keyword {
	return &definition{
		name:      template.KeywordJSONStringify,
		validator: validateWith(func(*Context, Node, any) []error { return nil }),
		processor: noProcessorContext(func(_ Node, value any) (Replacement, error) {
			var buffer bytes.Buffer
			encoder := json.NewEncoder(&buffer)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(value); err != nil {
				return Replacement{}, fmt.Errorf("%s: %w", template.KeywordJSONStringify, err)
			}
			return replaceWith(string(bytes.TrimSuffix(buffer.Bytes(), []byte("\n")))), nil
		}),
	}
}
