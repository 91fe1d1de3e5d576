// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/pflag"

	"github.com/sodaru/somod/cmd/somod/cli"
	"github.com/sodaru/somod/lib/compose"
	"github.com/sodaru/somod/lib/reference"
	"github.com/sodaru/somod/lib/template"
)

type refsParams struct {
	cli.ProjectFlags
	cli.JSONOutput
}

// referenceEntry is one line of "somod refs" output.
type referenceEntry struct {
	Module string `json:"module"`
	Path   string `json:"path"`
}

func refsCommand(stdout io.Writer) *cli.Command {
	var params refsParams
	return &cli.Command{
		Name:    "refs",
		Summary: "List the references to a resource",
		Description: `List every place in the module templates that links to a resource:
SOMOD::Ref values, SOMOD::DependsOn entries, SOMOD::Extend declarations
and function middleware entries. Paths are slash-separated locations in
the referencing module's template as authored.`,
		Usage: "somod refs [flags] <module> <resource>",
		Examples: []cli.Example{
			{
				Description: "Find what uses a shared layer",
				Command:     "somod refs @acme/base SharedLayer",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("refs", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.ExpectArgs(args, 2, 2, "somod refs [flags] <module> <resource>"); err != nil {
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
			target := template.ResourceIdentifier{Module: args[0], Resource: args[1]}
			if _, ok := composition.Set().Lookup(target); !ok {
				return template.Errorf(template.ErrUnresolvedReference, "Resource %s not found", target)
			}

			entries := referenceEntries(composition.References(target))
			if done, err := params.EmitJSON(stdout, entries); done {
				return err
			}
			if len(entries) == 0 {
				_, err := fmt.Fprintf(stdout, "no references to %s\n", target)
				return err
			}
			for _, entry := range entries {
				if _, err := fmt.Fprintf(stdout, "%s\t%s\n", entry.Module, entry.Path); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// referenceEntries flattens references into a list ordered by module
// name, then path.
func referenceEntries(references reference.References) []referenceEntry {
	var entries []referenceEntry
	for moduleName, paths := range references {
		for _, path := range paths {
			entries = append(entries, referenceEntry{Module: moduleName, Path: path.String()})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Module != entries[j].Module {
			return entries[i].Module < entries[j].Module
		}
		return entries[i].Path < entries[j].Path
	})
	return entries
}
