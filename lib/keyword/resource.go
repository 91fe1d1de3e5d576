// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package keyword

import (
	"context"
	"fmt"

	"github.com/sodaru/somod/lib/reference"
	"github.com/sodaru/somod/lib/template"
)

// Access is SOMOD::Access: the resource's visibility, "module" or
// "scope". Consumed by reference validation; emits nothing.
func Access() Keyword {
	return &definition{
		name: template.KeywordAccess,
		validator: func(_ context.Context, kc *Context) (Validator, error) {
			return requireResourceLevel(template.KeywordAccess, kc, nil), nil
		},
		processor: func(context.Context, *Context) (Processor, error) {
			return func(Node, any) (Replacement, error) { return consume, nil }, nil
		},
	}
}

// CreateIf is SOMOD::CreateIf: the resource is kept only when the
// condition is true. An extending resource cannot be conditional.
func CreateIf() Keyword {
	return &definition{
		name: template.KeywordCreateIf,
		validator: func(_ context.Context, kc *Context) (Validator, error) {
			return requireResourceLevel(template.KeywordCreateIf, kc, func(node Node, value any) []error {
				if _, extends := node.Tree.Property(node.ID, template.KeywordExtend); extends {
					return []error{kc.structural(node, "%s cannot be used with %s", template.KeywordCreateIf, template.KeywordExtend)}
				}
				if !isBoolOperand(value) {
					return []error{kc.structural(node, "%s must be a boolean", template.KeywordCreateIf)}
				}
				return nil
			}), nil
		},
		processor: noProcessorContext(func(_ Node, value any) (Replacement, error) {
			create, ok := value.(bool)
			if !ok {
				return Replacement{}, fmt.Errorf("%s evaluated to %T, want a boolean", template.KeywordCreateIf, value)
			}
			if !create {
				return remove, nil
			}
			return consume, nil
		}),
	}
}

// Output is SOMOD::Output: which of the resource's values other
// resources may reference. Emits nothing.
func Output() Keyword {
	return &definition{
		name: template.KeywordOutput,
		validator: func(_ context.Context, kc *Context) (Validator, error) {
			return requireResourceLevel(template.KeywordOutput, kc, nil), nil
		},
		processor: func(context.Context, *Context) (Processor, error) {
			return func(Node, any) (Replacement, error) { return consume, nil }, nil
		},
	}
}

// Extend is SOMOD::Extend. The extend graph and merge already happened
// when the template set was built; validation adds the access check,
// and processing removes the extending resource from the output.
func Extend() Keyword {
	return &definition{
		name: template.KeywordExtend,
		validator: func(_ context.Context, kc *Context) (Validator, error) {
			return requireResourceLevel(template.KeywordExtend, kc, func(node Node, value any) []error {
				target, err := template.DecodeIdentifier(kc.Module.Name, value)
				if err != nil {
					return []error{kc.structural(node, "%s: %v", template.KeywordExtend, err)}
				}
				resourceID, _ := node.ResourceID()
				from := template.ResourceIdentifier{Module: kc.Module.Name, Resource: resourceID}
				return kc.Resolver.ValidateTarget(reference.RelationExtend, from, target)
			}), nil
		},
		processor: func(context.Context, *Context) (Processor, error) {
			return func(Node, any) (Replacement, error) {
				return Replacement{Kind: ReplaceObject, Remove: true}, nil
			}, nil
		},
	}
}

// DependsOn is SOMOD::DependsOn: a list of {module?, resource} targets
// rewritten to the native DependsOn list of logical IDs.
func DependsOn() Keyword {
	return &definition{
		name: template.KeywordDependsOn,
		validator: func(_ context.Context, kc *Context) (Validator, error) {
			return requireResourceLevel(template.KeywordDependsOn, kc, func(node Node, value any) []error {
				items, ok := value.([]any)
				if !ok {
					return []error{kc.structural(node, "%s must be a list", template.KeywordDependsOn)}
				}
				resourceID, _ := node.ResourceID()
				from := template.ResourceIdentifier{Module: kc.Module.Name, Resource: resourceID}
				var errs []error
				for _, item := range items {
					target, err := template.DecodeIdentifier(kc.Module.Name, item)
					if err != nil {
						errs = append(errs, kc.structural(node, "%s: %v", template.KeywordDependsOn, err))
						continue
					}
					errs = append(errs, kc.Resolver.ValidateTarget(reference.RelationDependsOn, from, target)...)
				}
				return errs
			}), nil
		},
		processor: func(_ context.Context, kc *Context) (Processor, error) {
			return func(_ Node, value any) (Replacement, error) {
				items, _ := value.([]any)
				logicalIDs := make([]any, 0, len(items))
				for _, item := range items {
					target, err := template.DecodeIdentifier(kc.Module.Name, item)
					if err != nil {
						return Replacement{}, template.Errorf(template.ErrStructural, "%s: %v", template.KeywordDependsOn, err)
					}
					logicalID, err := kc.Resolver.LogicalID(target)
					if err != nil {
						return Replacement{}, err
					}
					logicalIDs = append(logicalIDs, logicalID)
				}
				return Replacement{Kind: ReplaceKeyword, Value: map[string]any{"DependsOn": logicalIDs}}, nil
			}, nil
		},
	}
}
