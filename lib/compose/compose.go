// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sodaru/somod/lib/config"
	"github.com/sodaru/somod/lib/identifier"
	"github.com/sodaru/somod/lib/jsontree"
	"github.com/sodaru/somod/lib/keyword"
	"github.com/sodaru/somod/lib/module"
	"github.com/sodaru/somod/lib/reference"
	"github.com/sodaru/somod/lib/template"
)

// Options configures a composition. Modules is required; every other
// field has a default.
type Options struct {
	// Modules lists the modules root first.
	Modules module.List

	// Source reads module templates. Default: template.DirSource.
	Source template.Source

	// Registry holds the keywords. Default: keyword.DefaultRegistry().
	Registry *keyword.Registry

	// Config supplies serverless defaults and pruning.
	// Default: config.Default().
	Config *config.Config

	// Logger receives progress at debug and info level. Default: discard.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Source == nil {
		o.Source = template.DirSource{}
	}
	if o.Registry == nil {
		o.Registry = keyword.DefaultRegistry()
	}
	if o.Config == nil {
		o.Config = config.Default()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// Composition is the frozen result of one composition. Every accessor
// returns copies or read-only views; nothing mutates it after Compose
// returns.
type Composition struct {
	set         *template.Set
	config      *config.Config
	documents   map[string]map[string]any
	pruned      map[template.ResourceIdentifier]bool
	fingerprint Fingerprint
}

// Compose runs the full pipeline over opts.Modules.
func Compose(ctx context.Context, opts Options) (*Composition, error) {
	if len(opts.Modules) == 0 {
		return nil, errors.New("compose: no modules")
	}
	opts = opts.withDefaults()
	logger := opts.Logger.With("root", opts.Modules.Root().Name)

	templates, err := template.LoadAll(ctx, opts.Source, opts.Modules, logger)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	logger.Debug("templates loaded", "modules", len(opts.Modules), "templates", len(templates))

	set, err := template.NewSet(opts.Modules, templates)
	if err != nil {
		return nil, err
	}
	extended := 0
	for _, root := range set.Roots() {
		merged, _ := set.Resolve(root.Module, root.Resource)
		if len(merged.Contributors) > 1 {
			extended++
		}
	}
	logger.Debug("extend forest built", "canonical_resources", len(set.Roots()), "extended", extended)

	if err := keyword.Validate(ctx, opts.Registry, set); err != nil {
		var validationErr *keyword.ValidationError
		if errors.As(err, &validationErr) {
			logger.Info("validation failed", "errors", len(validationErr.Issues))
		}
		return nil, err
	}

	documents, err := keyword.Process(ctx, opts.Registry, set)
	if err != nil {
		return nil, err
	}

	fingerprint, err := computeFingerprint(set, opts.Config)
	if err != nil {
		return nil, err
	}

	composition := &Composition{
		set:         set,
		config:      opts.Config,
		documents:   documents,
		pruned:      make(map[template.ResourceIdentifier]bool),
		fingerprint: fingerprint,
	}
	if opts.Config.Prune.UnreferencedLayers {
		for _, layer := range composition.unreferencedLayers() {
			composition.pruned[layer] = true
			logger.Info("pruned unreferenced layer", "module", layer.Module, "resource", layer.Resource)
		}
	}

	logger.Info("composition complete",
		"modules", len(opts.Modules),
		"resources", len(set.Roots()),
		"fingerprint", fingerprint.String(),
	)
	return composition, nil
}

// unreferencedLayers returns the layer resources of dependency modules
// that nothing links to.
func (c *Composition) unreferencedLayers() []template.ResourceIdentifier {
	var layers []template.ResourceIdentifier
	for _, root := range c.set.Roots() {
		moduleTemplate, _ := c.set.Template(root.Module)
		if moduleTemplate.Module.Root {
			continue
		}
		resource, _ := c.set.Lookup(root)
		if resource.Type != template.TypeLayerVersion {
			continue
		}
		if reference.FindReferences(c.set, root).Count() == 0 {
			layers = append(layers, root)
		}
	}
	return layers
}

// Modules returns the module list, root first.
func (c *Composition) Modules() module.List {
	return c.set.Modules()
}

// Set returns the template set the composition was built from.
func (c *Composition) Set() *template.Set {
	return c.set
}

// Template returns a module's template as authored.
func (c *Composition) Template(moduleName string) (*template.ModuleTemplate, bool) {
	return c.set.Template(moduleName)
}

// Templates returns every loaded template in module order.
func (c *Composition) Templates() []*template.ModuleTemplate {
	return c.set.Templates()
}

// Resource returns the merged form of a resource. Resolving any
// resource of an extend chain yields the chain's single result.
func (c *Composition) Resource(moduleName, resourceID string) (*template.MergedResource, error) {
	return c.set.Resolve(moduleName, resourceID)
}

// References returns every link to target, grouped by referencing
// module.
func (c *Composition) References(target template.ResourceIdentifier) reference.References {
	return reference.FindReferences(c.set, target)
}

// Pruned reports whether a resource was left out of the SAM template
// because nothing references it.
func (c *Composition) Pruned(id template.ResourceIdentifier) bool {
	return c.pruned[id]
}

// Fingerprint identifies the composition's inputs.
func (c *Composition) Fingerprint() Fingerprint {
	return c.fingerprint
}

// Document returns a module's keyword-free document with resources
// keyed by logical ID. Extending and middleware resources are absent:
// their content lives in the resources they merge into or bundle with.
func (c *Composition) Document(moduleName string) (map[string]any, error) {
	processed, ok := c.documents[moduleName]
	if !ok {
		if _, known := c.set.Modules().Get(moduleName); known {
			return map[string]any{template.SectionResources: map[string]any{}}, nil
		}
		return nil, template.Errorf(template.ErrUnresolvedReference, "Module %s not found", moduleName)
	}

	document := jsontree.CloneObject(processed)
	resources, _ := document[template.SectionResources].(map[string]any)
	keyed := make(map[string]any, len(resources))
	for id, resource := range resources {
		keyed[identifier.LogicalID(moduleName, id)] = resource
	}
	document[template.SectionResources] = keyed
	return document, nil
}
