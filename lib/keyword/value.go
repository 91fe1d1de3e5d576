// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package keyword

import (
	"context"
	"sort"

	"github.com/sodaru/somod/lib/identifier"
	"github.com/sodaru/somod/lib/reference"
	"github.com/sodaru/somod/lib/template"
)

// Ref is SOMOD::Ref: a reference to another resource's logical ID or
// attribute, legal in any value position.
func Ref() Keyword {
	return &definition{
		name: template.KeywordRef,
		validator: func(_ context.Context, kc *Context) (Validator, error) {
			return func(node Node, value any) []error {
				ref, err := reference.ParseRef(value)
				if err != nil {
					return []error{kc.structural(node, "%v", err)}
				}
				return kc.Resolver.ValidateRef(kc.Module.Name, ref, node.Location())
			}, nil
		},
		processor: func(_ context.Context, kc *Context) (Processor, error) {
			return func(node Node, value any) (Replacement, error) {
				ref, err := reference.ParseRef(value)
				if err != nil {
					return Replacement{}, err
				}
				resolved, err := kc.Resolver.ResolveRef(kc.Module.Name, ref, node.Location())
				if err != nil {
					return Replacement{}, err
				}
				return replaceWith(resolved), nil
			}, nil
		},
	}
}

// DeclaredParameters maps every parameter declared in any module's
// Parameters section to the first (closest to root) declaring module.
func DeclaredParameters(set *template.Set) map[string]string {
	declared := make(map[string]string)
	for _, moduleTemplate := range set.Templates() {
		names := make([]string, 0, len(moduleTemplate.Parameters))
		for name := range moduleTemplate.Parameters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if _, exists := declared[name]; !exists {
				declared[name] = moduleTemplate.Module.Name
			}
		}
	}
	return declared
}

// TemplateOutputs handles the Outputs section of a template: every
// output is named after a declared parameter. It acts only on the
// document root.
func TemplateOutputs() Keyword {
	return &definition{
		name: template.SectionOutputs,
		validator: func(_ context.Context, kc *Context) (Validator, error) {
			declared := DeclaredParameters(kc.Set)
			return func(node Node, value any) []error {
				if len(node.Path()) != 0 {
					return nil
				}
				outputs, ok := value.(map[string]any)
				if !ok {
					return []error{kc.structural(node, "%s must be an object", template.SectionOutputs)}
				}
				names := make([]string, 0, len(outputs))
				for name := range outputs {
					names = append(names, name)
				}
				sort.Strings(names)
				var errs []error
				for _, name := range names {
					if _, ok := declared[name]; !ok {
						errs = append(errs, template.Errorf(template.ErrUnresolvedReference,
							"Output %s is not a declared parameter. Used in %q", name, kc.Module.Name))
					}
				}
				return errs
			}, nil
		},
		processor: noProcessorContext(func(_ Node, value any) (Replacement, error) {
			return Replacement{Kind: ReplaceKeyword, Value: map[string]any{template.SectionOutputs: value}}, nil
		}),
	}
}

// Parameter is SOMOD::Parameter: a reference to a declared parameter,
// rewritten to a Ref of the template parameter.
func Parameter() Keyword {
	return &definition{
		name: template.KeywordParameter,
		validator: func(_ context.Context, kc *Context) (Validator, error) {
			declared := DeclaredParameters(kc.Set)
			return func(node Node, value any) []error {
				name, ok := value.(string)
				if !ok || name == "" {
					return []error{kc.structural(node, "%s must be a non-empty string", template.KeywordParameter)}
				}
				if _, ok := declared[name]; !ok {
					return []error{template.Errorf(template.ErrUnresolvedReference,
						"Parameter %s not declared in any module. Referenced in %q at %q", name, kc.Module.Name, node.Location())}
				}
				return nil
			}, nil
		},
		processor: func(context.Context, *Context) (Processor, error) {
			return func(_ Node, value any) (Replacement, error) {
				name, _ := value.(string)
				return replaceWith(map[string]any{"Ref": identifier.ParameterName(name)}), nil
			}, nil
		},
	}
}

// ResourceName is SOMOD::ResourceName: a physical name unique per
// deployed stack.
func ResourceName() Keyword {
	return &definition{
		name: template.KeywordResourceName,
		validator: func(_ context.Context, kc *Context) (Validator, error) {
			return func(node Node, value any) []error {
				if name, ok := value.(string); !ok || name == "" {
					return []error{kc.structural(node, "%s must be a non-empty string", template.KeywordResourceName)}
				}
				return nil
			}, nil
		},
		processor: func(_ context.Context, kc *Context) (Processor, error) {
			return func(_ Node, value any) (Replacement, error) {
				name, _ := value.(string)
				return replaceWith(identifier.ResourceName(kc.Module.Name, name)), nil
			}, nil
		},
	}
}

// ModuleName is SOMOD::ModuleName: the name of the module that wrote
// the value.
func ModuleName() Keyword {
	return &definition{
		name: template.KeywordModuleName,
		validator: func(context.Context, *Context) (Validator, error) {
			return func(Node, any) []error { return nil }, nil
		},
		processor: func(_ context.Context, kc *Context) (Processor, error) {
			return func(Node, any) (Replacement, error) {
				return replaceWith(kc.Module.Name), nil
			}, nil
		},
	}
}
