// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/sodaru/somod/lib/jsontree"
	"github.com/sodaru/somod/lib/module"
)

// Keyword names. A keyword is an object property whose name is one of
// these; its value is interpreted during keyword processing.
const (
	KeywordAccess             = "SOMOD::Access"
	KeywordAnd                = "SOMOD::And"
	KeywordCreateIf           = "SOMOD::CreateIf"
	KeywordDependsOn          = "SOMOD::DependsOn"
	KeywordEquals             = "SOMOD::Equals"
	KeywordExtend             = "SOMOD::Extend"
	KeywordFunction           = "SOMOD::Function"
	KeywordFunctionLayer      = "SOMOD::FunctionLayer"
	KeywordFunctionMiddleware = "SOMOD::FunctionMiddleware"
	KeywordIf                 = "SOMOD::If"
	KeywordJSONParse          = "SOMOD::JSONParse"
	KeywordJSONStringify      = "SOMOD::JSONStringify"
	KeywordKey                = "SOMOD::Key"
	KeywordModuleName         = "SOMOD::ModuleName"
	KeywordOr                 = "SOMOD::Or"
	KeywordOutput             = "SOMOD::Output"
	KeywordParameter          = "SOMOD::Parameter"
	KeywordRef                = "SOMOD::Ref"
	KeywordResourceName       = "SOMOD::ResourceName"
)

var keywords = map[string]bool{
	KeywordAccess: true, KeywordAnd: true, KeywordCreateIf: true,
	KeywordDependsOn: true, KeywordEquals: true, KeywordExtend: true,
	KeywordFunction: true, KeywordFunctionLayer: true,
	KeywordFunctionMiddleware: true, KeywordIf: true,
	KeywordJSONParse: true, KeywordJSONStringify: true, KeywordKey: true,
	KeywordModuleName: true, KeywordOr: true, KeywordOutput: true,
	KeywordParameter: true, KeywordRef: true, KeywordResourceName: true,
}

// IsKeyword reports whether name is a SOMOD keyword.
func IsKeyword(name string) bool {
	return keywords[name]
}

// HoldsKeyword reports whether value is an object with a keyword
// property.
func HoldsKeyword(value any) bool {
	object, ok := value.(map[string]any)
	if !ok {
		return false
	}
	for key := range object {
		if keywords[key] {
			return true
		}
	}
	return false
}

// Resource types with keyword-specific positions.
const (
	TypeFunction           = "AWS::Serverless::Function"
	TypeLayerVersion       = "AWS::Serverless::LayerVersion"
	TypeFunctionMiddleware = "SOMOD::Serverless::FunctionMiddleware"
)

// Top-level template sections.
const (
	SectionResources  = "Resources"
	SectionOutputs    = "Outputs"
	SectionParameters = "Parameters"
)

// resourceIDPattern constrains per-module resource identifiers. The
// logical ID embeds the resource ID verbatim, so it must be alphanumeric.
var resourceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{1,64}$`)

// ValidResourceID reports whether id is a legal resource identifier.
func ValidResourceID(id string) bool {
	return resourceIDPattern.MatchString(id)
}

// ResourceIdentifier addresses a resource across modules.
type ResourceIdentifier struct {
	Module   string `json:"module" cbor:"module"`
	Resource string `json:"resource" cbor:"resource"`
}

// String renders the identifier as it appears in error messages:
// {module, resource}.
func (id ResourceIdentifier) String() string {
	return fmt.Sprintf("{%s, %s}", id.Module, id.Resource)
}

// AccessPolicy controls which modules may reference a resource.
type AccessPolicy string

const (
	// AccessScope permits modules sharing the target's scope prefix.
	AccessScope AccessPolicy = "scope"
	// AccessModule permits only the declaring module.
	AccessModule AccessPolicy = "module"
)

// MergeRule is the operation applied at one path when an extension is
// merged into its target.
type MergeRule string

const (
	RuleReplace MergeRule = "REPLACE"
	RuleCombine MergeRule = "COMBINE"
	RuleAppend  MergeRule = "APPEND"
	RulePrepend MergeRule = "PREPEND"
)

func (r MergeRule) valid() bool {
	switch r {
	case RuleReplace, RuleCombine, RuleAppend, RulePrepend:
		return true
	}
	return false
}

// ExtendTarget is the decoded value of SOMOD::Extend.
type ExtendTarget struct {
	ResourceIdentifier
	// Rules maps normalized JSON pointers (relative to Properties) to
	// merge rules. Paths without a rule use COMBINE.
	Rules map[string]MergeRule
}

// OutputDeclaration is the decoded value of SOMOD::Output.
type OutputDeclaration struct {
	Default    bool     `json:"default"`
	Attributes []string `json:"attributes,omitempty"`
}

// HasAttribute reports whether attribute is listed.
func (o *OutputDeclaration) HasAttribute(attribute string) bool {
	for _, listed := range o.Attributes {
		if listed == attribute {
			return true
		}
	}
	return false
}

// Resource is one entry of a module template's Resources section.
type Resource struct {
	ID     string
	Module string
	Type   string
	// Properties is the resource's own Properties object, before any
	// extension is merged in.
	Properties map[string]any
	Extend     *ExtendTarget
	Access     AccessPolicy
	Output     *OutputDeclaration
	DependsOn  []ResourceIdentifier
	// Raw is the resource object as authored, keywords included.
	Raw map[string]any
}

// Identifier returns the resource's cross-module address.
func (r *Resource) Identifier() ResourceIdentifier {
	return ResourceIdentifier{Module: r.Module, Resource: r.ID}
}

// ModuleTemplate is one module's template fragment. It is read-only
// after decoding.
type ModuleTemplate struct {
	Module module.Module
	// Path is the file the template was read from.
	Path string
	// Raw is the decoded document.
	Raw map[string]any
	// Resources indexes the Resources section by resource ID.
	Resources map[string]*Resource
	// ResourceOrder lists resource IDs in sorted order.
	ResourceOrder []string
	// Outputs maps parameter names to exported values.
	Outputs map[string]any
	// Parameters maps parameter names to their declarations.
	Parameters map[string]any
}

// Resource returns the resource with the given ID.
func (t *ModuleTemplate) Resource(id string) (*Resource, bool) {
	resource, ok := t.Resources[id]
	return resource, ok
}

// DecodeTemplate interprets a decoded document as a module template.
// The document is kept as Raw; structural problems in the Resources
// section are collected and returned together.
func DecodeTemplate(mod module.Module, path string, raw map[string]any) (*ModuleTemplate, error) {
	if raw == nil {
		raw = map[string]any{}
	}
	result := &ModuleTemplate{
		Module:    mod,
		Path:      path,
		Raw:       raw,
		Resources: make(map[string]*Resource),
	}

	var problems []error
	fail := func(format string, args ...any) {
		problems = append(problems, Errorf(ErrStructural, "%s (%s): %s", mod.Name, path, fmt.Sprintf(format, args...)))
	}

	if outputs, present := raw[SectionOutputs]; present {
		object, ok := outputs.(map[string]any)
		if !ok {
			fail("%s must be an object", SectionOutputs)
		}
		result.Outputs = object
	}
	if parameters, present := raw[SectionParameters]; present {
		object, ok := parameters.(map[string]any)
		if !ok {
			fail("%s must be an object", SectionParameters)
		}
		result.Parameters = object
	}

	resources, _ := raw[SectionResources].(map[string]any)
	if value, present := raw[SectionResources]; present && resources == nil {
		fail("%s must be an object, got %T", SectionResources, value)
	}

	for id, value := range resources {
		if !ValidResourceID(id) {
			fail("resource id %q must match %s", id, resourceIDPattern.String())
			continue
		}
		object, ok := value.(map[string]any)
		if !ok {
			fail("resource %s must be an object", id)
			continue
		}
		resource, err := decodeResource(mod.Name, id, object)
		if err != nil {
			fail("resource %s: %v", id, err)
			continue
		}
		result.Resources[id] = resource
		result.ResourceOrder = append(result.ResourceOrder, id)
	}
	sort.Strings(result.ResourceOrder)

	if len(problems) > 0 {
		return nil, joinProblems(problems)
	}
	return result, nil
}

func decodeResource(moduleName, id string, object map[string]any) (*Resource, error) {
	resourceType, ok := object["Type"].(string)
	if !ok || resourceType == "" {
		return nil, fmt.Errorf("Type must be a non-empty string")
	}
	resource := &Resource{
		ID:         id,
		Module:     moduleName,
		Type:       resourceType,
		Properties: map[string]any{},
		Access:     AccessScope,
		Raw:        object,
	}

	if value, present := object["Properties"]; present {
		properties, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("Properties must be an object")
		}
		resource.Properties = properties
	}

	if value, present := object[KeywordAccess]; present {
		access, _ := value.(string)
		switch AccessPolicy(access) {
		case AccessScope, AccessModule:
			resource.Access = AccessPolicy(access)
		default:
			return nil, fmt.Errorf("%s must be %q or %q", KeywordAccess, AccessScope, AccessModule)
		}
	}

	if value, present := object[KeywordOutput]; present {
		output, err := decodeOutput(value)
		if err != nil {
			return nil, err
		}
		resource.Output = output
	}

	if value, present := object[KeywordExtend]; present {
		extend, err := decodeExtend(moduleName, value)
		if err != nil {
			return nil, err
		}
		resource.Extend = extend
	}

	if value, present := object[KeywordDependsOn]; present {
		items, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("%s must be a list", KeywordDependsOn)
		}
		for index, item := range items {
			target, err := DecodeIdentifier(moduleName, item)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", KeywordDependsOn, index, err)
			}
			resource.DependsOn = append(resource.DependsOn, target)
		}
	}

	return resource, nil
}

// DecodeIdentifier reads a {module?, resource} object. A missing module
// defaults to defaultModule.
func DecodeIdentifier(defaultModule string, value any) (ResourceIdentifier, error) {
	object, ok := value.(map[string]any)
	if !ok {
		return ResourceIdentifier{}, fmt.Errorf("expected {module, resource} object, got %T", value)
	}
	resource, _ := object["resource"].(string)
	if resource == "" {
		return ResourceIdentifier{}, fmt.Errorf("resource must be a non-empty string")
	}
	moduleName := defaultModule
	if value, present := object["module"]; present {
		name, ok := value.(string)
		if !ok || name == "" {
			return ResourceIdentifier{}, fmt.Errorf("module must be a non-empty string")
		}
		moduleName = name
	}
	return ResourceIdentifier{Module: moduleName, Resource: resource}, nil
}

func decodeOutput(value any) (*OutputDeclaration, error) {
	object, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an object", KeywordOutput)
	}
	output := &OutputDeclaration{}
	if value, present := object["default"]; present {
		flag, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%s.default must be a boolean", KeywordOutput)
		}
		output.Default = flag
	}
	if value, present := object["attributes"]; present {
		items, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("%s.attributes must be a list", KeywordOutput)
		}
		for _, item := range items {
			attribute, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s.attributes must contain strings", KeywordOutput)
			}
			output.Attributes = append(output.Attributes, attribute)
		}
	}
	return output, nil
}

func decodeExtend(moduleName string, value any) (*ExtendTarget, error) {
	target, err := DecodeIdentifier(moduleName, value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", KeywordExtend, err)
	}
	extend := &ExtendTarget{ResourceIdentifier: target}

	object := value.(map[string]any)
	if value, present := object["rules"]; present {
		rules, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s.rules must be an object", KeywordExtend)
		}
		extend.Rules = make(map[string]MergeRule, len(rules))
		for pointer, value := range rules {
			name, _ := value.(string)
			rule := MergeRule(name)
			if !rule.valid() {
				return nil, fmt.Errorf("%s.rules[%q]: unknown rule %q", KeywordExtend, pointer, name)
			}
			path, err := jsontree.ParsePointer(pointer)
			if err != nil {
				return nil, fmt.Errorf("%s.rules: %w", KeywordExtend, err)
			}
			extend.Rules[path.Pointer()] = rule
		}
	}
	return extend, nil
}

// joinProblems returns a single problem unchanged and joins several in
// a stable order.
func joinProblems(problems []error) error {
	if len(problems) == 1 {
		return problems[0]
	}
	sort.Slice(problems, func(i, j int) bool { return problems[i].Error() < problems[j].Error() })
	return errors.Join(problems...)
}
