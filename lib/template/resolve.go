// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"fmt"

	"github.com/sodaru/somod/lib/jsontree"
	"github.com/sodaru/somod/lib/module"
)

// MergedResource is a canonical resource with every extension along its
// chain merged in. One MergedResource is shared by every resource of
// the chain; it must not be modified.
type MergedResource struct {
	// Resource is a copy of the canonical resource whose Properties hold
	// the merged result.
	Resource *Resource
	// PropertyModuleMap attributes each merged property to a module.
	PropertyModuleMap *PropertyModuleMap
	// Contributors lists the chain in merge order, canonical first.
	Contributors []ResourceIdentifier
}

// Set is the composed view of all module templates: the templates
// themselves, the extend forest, and the merged form of every canonical
// resource. It is read-only once built.
type Set struct {
	modules   module.List
	templates []*ModuleTemplate
	byModule  map[string]*ModuleTemplate
	nodes     map[ResourceIdentifier]*ExtendNode
	roots     []ResourceIdentifier
	merged    map[ResourceIdentifier]*MergedResource
}

// NewSet builds the extend forest over templates and resolves every
// canonical resource to its merged form. templates must be in module
// order (root first), as returned by [LoadAll].
func NewSet(modules module.List, templates []*ModuleTemplate) (*Set, error) {
	set := &Set{
		modules:   modules,
		templates: templates,
		byModule:  make(map[string]*ModuleTemplate, len(templates)),
		merged:    make(map[ResourceIdentifier]*MergedResource),
	}
	for _, moduleTemplate := range templates {
		if _, duplicate := set.byModule[moduleTemplate.Module.Name]; duplicate {
			return nil, fmt.Errorf("duplicate template for module %s", moduleTemplate.Module.Name)
		}
		set.byModule[moduleTemplate.Module.Name] = moduleTemplate
	}

	nodes, roots, err := buildExtendForest(templates, set.byModule)
	if err != nil {
		return nil, err
	}
	set.nodes = nodes
	set.roots = roots

	for _, root := range roots {
		set.merged[root] = set.mergeChain(nodes[root])
	}
	return set, nil
}

// mergeChain walks the extend tree under root breadth-first, merging
// each extension's Properties onto the accumulated result.
func (s *Set) mergeChain(root *ExtendNode) *MergedResource {
	canonical := s.resource(root.Resource)
	resource := *canonical
	resource.Properties = jsontree.CloneObject(canonical.Properties)

	merged := &MergedResource{
		Resource:          &resource,
		PropertyModuleMap: newPropertyModuleMap(canonical.Module),
		Contributors:      []ResourceIdentifier{root.Resource},
	}

	queue := append([]*ExtendNode(nil), root.From...)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		extension := s.resource(node.Resource)
		properties, changes := Merge(resource.Properties, extension.Properties, extension.Extend.Rules)
		resource.Properties = properties
		merged.PropertyModuleMap.apply(changes, extension.Module)
		merged.Contributors = append(merged.Contributors, node.Resource)

		queue = append(queue, node.From...)
	}
	return merged
}

func (s *Set) resource(id ResourceIdentifier) *Resource {
	return s.byModule[id.Module].Resources[id.Resource]
}

// Modules returns the module list the set was built from.
func (s *Set) Modules() module.List {
	return s.modules
}

// Templates returns the loaded templates in module order.
func (s *Set) Templates() []*ModuleTemplate {
	return s.templates
}

// Template returns the template of one module.
func (s *Set) Template(moduleName string) (*ModuleTemplate, bool) {
	moduleTemplate, ok := s.byModule[moduleName]
	return moduleTemplate, ok
}

// Lookup returns a resource as declared, extending or not.
func (s *Set) Lookup(id ResourceIdentifier) (*Resource, bool) {
	moduleTemplate, ok := s.byModule[id.Module]
	if !ok {
		return nil, false
	}
	return moduleTemplate.Resource(id.Resource)
}

// Node returns the extend-forest node of a resource.
func (s *Set) Node(id ResourceIdentifier) (*ExtendNode, bool) {
	node, ok := s.nodes[id]
	return node, ok
}

// Roots returns the canonical resources in module order.
func (s *Set) Roots() []ResourceIdentifier {
	return s.roots
}

// Canonical returns the root of the extend chain containing id.
func (s *Set) Canonical(id ResourceIdentifier) (ResourceIdentifier, bool) {
	node, ok := s.nodes[id]
	if !ok {
		return ResourceIdentifier{}, false
	}
	return node.Root().Resource, true
}

// Resolve returns the merged form of a resource. Every resource on one
// extend chain resolves to the same *MergedResource.
func (s *Set) Resolve(moduleName, resourceID string) (*MergedResource, error) {
	canonical, ok := s.Canonical(ResourceIdentifier{Module: moduleName, Resource: resourceID})
	if !ok {
		return nil, Errorf(ErrUnresolvedReference, "Module resource {%s, %s} not found", moduleName, resourceID)
	}
	return s.merged[canonical], nil
}

// Effective returns a deep copy of a module's template in which every
// canonical resource carries its merged Properties. Extending resources
// keep their own Properties; keyword processing removes them.
func (s *Set) Effective(moduleName string) (map[string]any, bool) {
	moduleTemplate, ok := s.byModule[moduleName]
	if !ok {
		return nil, false
	}
	document := jsontree.CloneObject(moduleTemplate.Raw)
	resources, _ := document[SectionResources].(map[string]any)
	for id, value := range resources {
		identifier := ResourceIdentifier{Module: moduleName, Resource: id}
		merged, isRoot := s.merged[identifier]
		if !isRoot {
			continue
		}
		if len(merged.Contributors) == 1 {
			continue
		}
		resource := value.(map[string]any)
		resource["Properties"] = jsontree.CloneObject(merged.Resource.Properties)
	}
	return document, true
}

// Owner returns the module that wrote the value at path in a module's
// effective template. Under Resources/<id>/Properties of a canonical
// resource the PropertyModuleMap decides; everywhere else the module
// itself owns the value.
func (s *Set) Owner(moduleName string, path jsontree.Path) string {
	if len(path) < 3 || path[0] != jsontree.Key(SectionResources) || path[2] != jsontree.Key("Properties") {
		return moduleName
	}
	merged, ok := s.merged[ResourceIdentifier{Module: moduleName, Resource: path[1].Name}]
	if !ok {
		return moduleName
	}
	return merged.PropertyModuleMap.ModuleAt(path[3:])
}
