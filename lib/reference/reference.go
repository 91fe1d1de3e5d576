// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

// Package reference validates and resolves symbolic cross-module
// references against a [template.Set].
//
// A reference names a target as {module, resource}; a missing module
// means the referencing module itself. Every reference is subject to
// the target's access policy ([CheckAccess]). Resolved references
// become logical IDs from [identifier.LogicalID].
package reference

import (
	"fmt"

	"github.com/sodaru/somod/lib/identifier"
	"github.com/sodaru/somod/lib/module"
	"github.com/sodaru/somod/lib/template"
)

// CheckAccess reports whether sourceModule may reference target under
// policy. "module" admits only the target's own module; "scope" admits
// any module sharing the target module's scope prefix.
func CheckAccess(sourceModule string, target template.ResourceIdentifier, policy template.AccessPolicy) []error {
	if policy == "" {
		policy = template.AccessScope
	}
	allowed := false
	switch policy {
	case template.AccessModule:
		allowed = sourceModule == target.Module
	case template.AccessScope:
		allowed = module.Scope(sourceModule) == module.Scope(target.Module)
	}
	if allowed {
		return nil
	}
	return []error{template.Errorf(template.ErrAccessDenied,
		"Referenced module resource %s can not be accessed from module %s (has %q access).",
		target, sourceModule, string(policy))}
}

// Ref is the decoded value of SOMOD::Ref.
type Ref struct {
	Module    string
	Resource  string
	Attribute string
}

// Target returns the referenced resource, defaulting the module to
// sourceModule.
func (r Ref) Target(sourceModule string) template.ResourceIdentifier {
	moduleName := r.Module
	if moduleName == "" {
		moduleName = sourceModule
	}
	return template.ResourceIdentifier{Module: moduleName, Resource: r.Resource}
}

// ParseRef decodes a SOMOD::Ref value: {module?, resource, attribute?}.
func ParseRef(value any) (Ref, error) {
	object, ok := value.(map[string]any)
	if !ok {
		return Ref{}, template.Errorf(template.ErrStructural, "%s must be an object, got %T", template.KeywordRef, value)
	}
	var ref Ref
	var err error
	if ref.Resource, err = stringField(object, "resource", true); err != nil {
		return Ref{}, err
	}
	if ref.Module, err = stringField(object, "module", false); err != nil {
		return Ref{}, err
	}
	if ref.Attribute, err = stringField(object, "attribute", false); err != nil {
		return Ref{}, err
	}
	return ref, nil
}

func stringField(object map[string]any, name string, required bool) (string, error) {
	value, present := object[name]
	if !present {
		if required {
			return "", template.Errorf(template.ErrStructural, "%s.%s is required", template.KeywordRef, name)
		}
		return "", nil
	}
	text, ok := value.(string)
	if !ok || text == "" {
		return "", template.Errorf(template.ErrStructural, "%s.%s must be a non-empty string", template.KeywordRef, name)
	}
	return text, nil
}

// Relation names the kind of cross-module link in error messages, for
// example "Extended module resource {m, r} not found. Extended from
// {m2, r2}".
type Relation struct {
	Target string
	Source string
}

var (
	RelationExtend     = Relation{Target: "Extended", Source: "Extended from"}
	RelationDependsOn  = Relation{Target: "Dependent", Source: "Depended from"}
	RelationMiddleware = Relation{Target: "Middleware", Source: "Used from"}
)

// Resolver validates and resolves references within one composition.
type Resolver struct {
	set *template.Set
}

// NewResolver returns a Resolver over set.
func NewResolver(set *template.Set) *Resolver {
	return &Resolver{set: set}
}

// ValidateTarget checks that target exists and that from's module may
// access it. Used for extends, depends-on, and middleware links.
func (r *Resolver) ValidateTarget(relation Relation, from, target template.ResourceIdentifier) []error {
	resource, ok := r.set.Lookup(target)
	if !ok {
		return []error{template.Errorf(template.ErrUnresolvedReference,
			"%s module resource %s not found. %s %s", relation.Target, target, relation.Source, from)}
	}
	return CheckAccess(from.Module, target, resource.Access)
}

// ValidateRef checks a reference made by sourceModule at location (a
// slash-joined template path). All problems are returned.
func (r *Resolver) ValidateRef(sourceModule string, ref Ref, location string) []error {
	target := ref.Target(sourceModule)
	fail := func(kind error, message string) []error {
		return []error{template.Errorf(kind, "Referenced module resource %s %s. Referenced in %q at %q",
			target, message, sourceModule, location)}
	}

	resource, ok := r.set.Lookup(target)
	switch {
	case !ok:
		return fail(template.ErrUnresolvedReference, "not found")
	case resource.Extend != nil:
		return fail(template.ErrStructural, "must not have "+template.KeywordExtend)
	case resource.Output == nil:
		return fail(template.ErrUnresolvedReference, "does not have "+template.KeywordOutput)
	case ref.Attribute != "" && !resource.Output.HasAttribute(ref.Attribute):
		return fail(template.ErrUnresolvedReference,
			fmt.Sprintf("does not have attribute %s in %s", ref.Attribute, template.KeywordOutput))
	case ref.Attribute == "" && !resource.Output.Default:
		return fail(template.ErrUnresolvedReference, "does not have default set to true in "+template.KeywordOutput)
	}
	return CheckAccess(sourceModule, target, resource.Access)
}

// ResolveRef validates a reference and returns its replacement value:
// {"Ref": logicalID}, or {"Fn::GetAtt": [logicalID, attribute]} when an
// attribute is requested.
func (r *Resolver) ResolveRef(sourceModule string, ref Ref, location string) (map[string]any, error) {
	if errs := r.ValidateRef(sourceModule, ref, location); len(errs) > 0 {
		return nil, errs[0]
	}
	target := ref.Target(sourceModule)
	logicalID := identifier.LogicalID(target.Module, target.Resource)
	if ref.Attribute != "" {
		return map[string]any{"Fn::GetAtt": []any{logicalID, ref.Attribute}}, nil
	}
	return map[string]any{"Ref": logicalID}, nil
}

// LogicalID returns the logical ID of the canonical resource that
// target resolves to. Extending resources are not emitted, so links to
// them follow the chain.
func (r *Resolver) LogicalID(target template.ResourceIdentifier) (string, error) {
	canonical, ok := r.set.Canonical(target)
	if !ok {
		return "", template.Errorf(template.ErrUnresolvedReference, "Module resource %s not found", target)
	}
	return identifier.LogicalID(canonical.Module, canonical.Resource), nil
}

// Set returns the template set the resolver reads.
func (r *Resolver) Set() *template.Set {
	return r.set
}
