// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/sodaru/somod/cmd/somod/cli"
	"github.com/sodaru/somod/lib/compose"
	"github.com/sodaru/somod/lib/identifier"
	"github.com/sodaru/somod/lib/snapshot"
	"github.com/sodaru/somod/lib/template"
)

type showParams struct {
	cli.ProjectFlags
	cli.JSONOutput
	Format     string `flag:"format" default:"yaml" desc:"document encoding: yaml or json"`
	Provenance bool   `flag:"provenance" desc:"list the extend chain and which module set each property"`
}

// resourceView is the --json output of "somod show <module> <resource>".
type resourceView struct {
	Module       string                        `json:"module"`
	Resource     string                        `json:"resource"`
	Canonical    template.ResourceIdentifier   `json:"canonical"`
	LogicalID    string                        `json:"logical_id"`
	Pruned       bool                          `json:"pruned,omitempty"`
	Definition   any                           `json:"definition"`
	Contributors []template.ResourceIdentifier `json:"contributors,omitempty"`
	Properties   []snapshot.PropertyOwner      `json:"properties,omitempty"`
}

func showCommand(stdout io.Writer) *cli.Command {
	var params showParams
	return &cli.Command{
		Name:    "show",
		Summary: "Print a module's composed document or one merged resource",
		Description: `Without a resource, print the module's keyword-free document with
resources keyed by their logical IDs, as they appear in the composed
template.

With a resource, print that resource after extensions are merged and
keywords are processed. Every resource of an extend chain shows the same
merged result. --provenance adds the chain's contributors and the
module that set each property.`,
		Usage: "somod show [flags] <module> [resource]",
		Examples: []cli.Example{
			{
				Description: "Show the root module's composed document",
				Command:     "somod show @acme/app",
			},
			{
				Description: "Show a merged resource with provenance as JSON",
				Command:     "somod show --provenance --json @acme/auth UserPool",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("show", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.ExpectArgs(args, 1, 2, "somod show [flags] <module> [resource]"); err != nil {
				return err
			}
			project, err := params.Load()
			if err != nil {
				return err
			}
			composition, err := compose.Compose(ctx, project.ComposeOptions())
			if err != nil {
				return err
			}

			if len(args) == 1 {
				document, err := composition.Document(args[0])
				if err != nil {
					return err
				}
				if done, err := params.EmitJSON(stdout, document); done {
					return err
				}
				return writeEncoded(stdout, document, params.Format)
			}

			view, err := buildResourceView(composition, args[0], args[1], params.Provenance)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(stdout, view); done {
				return err
			}
			return printResourceView(stdout, view, params.Format)
		},
	}
}

func buildResourceView(composition *compose.Composition, moduleName, resourceID string, provenance bool) (resourceView, error) {
	merged, err := composition.Resource(moduleName, resourceID)
	if err != nil {
		return resourceView{}, err
	}
	canonical := merged.Contributors[0]
	document, err := composition.Document(canonical.Module)
	if err != nil {
		return resourceView{}, err
	}
	logicalID := identifier.LogicalID(canonical.Module, canonical.Resource)
	resources, _ := document[template.SectionResources].(map[string]any)

	view := resourceView{
		Module:     moduleName,
		Resource:   resourceID,
		Canonical:  canonical,
		LogicalID:  logicalID,
		Pruned:     composition.Pruned(canonical),
		Definition: resources[logicalID],
	}
	if provenance {
		view.Contributors = merged.Contributors
		view.Properties = snapshot.FlattenOwners(merged.PropertyModuleMap)
	}
	return view, nil
}

func printResourceView(w io.Writer, view resourceView, format string) error {
	fmt.Fprintf(w, "# %s (logical ID %s)\n", view.Canonical, view.LogicalID)
	if view.Pruned {
		fmt.Fprintf(w, "# pruned: not referenced by any resource\n")
	}
	if len(view.Contributors) > 0 {
		fmt.Fprintf(w, "# extend chain:\n")
		for i, contributor := range view.Contributors {
			fmt.Fprintf(w, "#   %d. %s\n", i+1, contributor)
		}
		fmt.Fprintf(w, "# property owners:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
		for _, owner := range view.Properties {
			path := owner.Path
			if path == "" {
				path = "/"
			}
			fmt.Fprintf(tw, "#   Properties%s\t%s\n", path, owner.Module)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return writeEncoded(w, view.Definition, format)
}

// writeEncoded encodes value as yaml or json and writes it, highlighted
// on a terminal.
func writeEncoded(w io.Writer, value any, format string) error {
	document, ok := value.(map[string]any)
	if !ok {
		document = map[string]any{}
	}
	data, err := compose.Encode(document, format)
	if err != nil {
		return err
	}
	return cli.WriteDocument(w, data, format)
}
