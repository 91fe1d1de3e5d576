// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package compose

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/sodaru/somod/lib/identifier"
	"github.com/sodaru/somod/lib/jsontree"
	"github.com/sodaru/somod/lib/template"
)

// SAM document header values.
const (
	TemplateFormatVersion = "2010-09-09"
	ServerlessTransform   = "AWS::Serverless-2016-10-31"
)

// SAMTemplate assembles the deployable document of the whole
// composition: every module's resources keyed by logical ID, the
// template parameters the modules use, and the stack outputs the
// modules export. Pruned resources are left out.
func (c *Composition) SAMTemplate() map[string]any {
	serverless := c.config.Serverless
	architectures := make([]any, len(serverless.Architectures))
	for i, architecture := range serverless.Architectures {
		architectures[i] = architecture
	}

	resources := make(map[string]any)
	outputs := make(map[string]any)
	for _, mod := range c.set.Modules() {
		document, err := c.Document(mod.Name)
		if err != nil {
			continue
		}
		moduleResources, _ := document[template.SectionResources].(map[string]any)
		for logicalID, resource := range moduleResources {
			resources[logicalID] = resource
		}
		for id := range c.pruned {
			if id.Module == mod.Name {
				delete(resources, identifier.LogicalID(id.Module, id.Resource))
			}
		}
		moduleOutputs, _ := document[template.SectionOutputs].(map[string]any)
		for parameter, value := range moduleOutputs {
			outputs[identifier.OutputName(parameter)] = map[string]any{"Value": value}
		}
	}

	sam := map[string]any{
		"AWSTemplateFormatVersion": TemplateFormatVersion,
		"Transform":                ServerlessTransform,
		"Globals": map[string]any{
			"Function": map[string]any{
				"Runtime":       serverless.Runtime(),
				"Handler":       serverless.Handler,
				"Architectures": architectures,
			},
		},
		template.SectionResources: resources,
	}

	if used := c.UsedParameters(); len(used) > 0 {
		parameters := make(map[string]any, len(used))
		for _, name := range used {
			parameters[identifier.ParameterName(name)] = map[string]any{"Type": "String"}
		}
		sam[template.SectionParameters] = parameters
	}
	if len(outputs) > 0 {
		sam[template.SectionOutputs] = outputs
	}
	return sam
}

// UsedParameters returns the sorted names of parameters referenced
// through SOMOD::Parameter by resources that reach the SAM template.
func (c *Composition) UsedParameters() []string {
	seen := make(map[string]bool)
	for _, moduleTemplate := range c.set.Templates() {
		tree := jsontree.Parse(moduleTemplate.Raw)
		tree.Walk(func(id jsontree.NodeID) bool {
			if tree.Segment(id).Name != template.KeywordParameter {
				return true
			}
			parent, ok := tree.Parent(id)
			if !ok || tree.Kind(parent) != jsontree.KindObject {
				return true
			}
			path := tree.Path(id)
			if len(path) >= 2 && path[0] == jsontree.Key(template.SectionResources) &&
				c.pruned[template.ResourceIdentifier{Module: moduleTemplate.Module.Name, Resource: path[1].Name}] {
				return false
			}
			if name, ok := tree.Value(id).(string); ok {
				seen[name] = true
			}
			return false
		})
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Encode renders a document as "yaml" or "json".
func Encode(document map[string]any, format string) ([]byte, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(document, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding template as JSON: %w", err)
		}
		return append(data, '\n'), nil
	case "yaml":
		var buffer bytes.Buffer
		encoder := yaml.NewEncoder(&buffer)
		encoder.SetIndent(2)
		if err := encoder.Encode(document); err != nil {
			return nil, fmt.Errorf("encoding template as YAML: %w", err)
		}
		if err := encoder.Close(); err != nil {
			return nil, fmt.Errorf("encoding template as YAML: %w", err)
		}
		return buffer.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown template format %q (want yaml or json)", format)
	}
}
