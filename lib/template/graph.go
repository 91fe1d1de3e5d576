// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package template

// ExtendNode is one resource's position in the extend forest. A node
// with a nil To is a canonical root.
type ExtendNode struct {
	Resource ResourceIdentifier
	// From lists the resources extending this one, in merge order.
	From []*ExtendNode
	// To is the resource this one extends.
	To *ExtendNode
}

// Root follows To links to the canonical root of the node's chain.
func (n *ExtendNode) Root() *ExtendNode {
	current := n
	for current.To != nil {
		current = current.To
	}
	return current
}

// buildExtendForest creates one node per resource and links every
// extension to its target. Templates are visited dependency-first
// (reverse of the root-first order), so of two extensions of the same
// target the one declared closer to the root module is linked, and
// later merged, last.
//
// Errors are fail-fast: a dangling target, a type mismatch, or a cycle
// stops the build.
func buildExtendForest(templates []*ModuleTemplate, byModule map[string]*ModuleTemplate) (map[ResourceIdentifier]*ExtendNode, []ResourceIdentifier, error) {
	nodes := make(map[ResourceIdentifier]*ExtendNode)
	for _, moduleTemplate := range templates {
		for _, id := range moduleTemplate.ResourceOrder {
			identifier := ResourceIdentifier{Module: moduleTemplate.Module.Name, Resource: id}
			nodes[identifier] = &ExtendNode{Resource: identifier}
		}
	}

	for i := len(templates) - 1; i >= 0; i-- {
		moduleTemplate := templates[i]
		for _, id := range moduleTemplate.ResourceOrder {
			resource := moduleTemplate.Resources[id]
			if resource.Extend == nil {
				continue
			}
			source := resource.Identifier()
			target := resource.Extend.ResourceIdentifier

			targetNode, ok := nodes[target]
			if !ok {
				return nil, nil, Errorf(ErrUnresolvedReference,
					"Extended module resource %s not found. Extended from %s", target, source)
			}
			if target == source {
				return nil, nil, Errorf(ErrStructural, "Extend cycle detected at %s", source)
			}
			targetResource := byModule[target.Module].Resources[target.Resource]
			if targetResource.Type != resource.Type {
				return nil, nil, Errorf(ErrTypeMismatch,
					"Can extend only same type of resource. %s can not extend %s. Extended from %s to %s",
					resource.Type, targetResource.Type, source, target)
			}

			sourceNode := nodes[source]
			sourceNode.To = targetNode
			targetNode.From = append(targetNode.From, sourceNode)
		}
	}

	var roots []ResourceIdentifier
	for _, moduleTemplate := range templates {
		for _, id := range moduleTemplate.ResourceOrder {
			identifier := ResourceIdentifier{Module: moduleTemplate.Module.Name, Resource: id}
			if err := checkChain(nodes[identifier]); err != nil {
				return nil, nil, err
			}
			if nodes[identifier].To == nil {
				roots = append(roots, identifier)
			}
		}
	}
	return nodes, roots, nil
}

// checkChain walks To links from node and fails if a resource repeats.
func checkChain(node *ExtendNode) error {
	visited := make(map[ResourceIdentifier]bool)
	for current := node; current != nil; current = current.To {
		if visited[current.Resource] {
			return Errorf(ErrStructural, "Extend cycle detected at %s", current.Resource)
		}
		visited[current.Resource] = true
	}
	return nil
}
