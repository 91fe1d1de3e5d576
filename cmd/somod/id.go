// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/sodaru/somod/cmd/somod/cli"
	"github.com/sodaru/somod/lib/identifier"
)

func idCommand(stdout io.Writer) *cli.Command {
	printLine := func(value string) error {
		_, err := fmt.Fprintln(stdout, value)
		return err
	}
	return &cli.Command{
		Name:    "id",
		Summary: "Print generated identifiers",
		Description: `Print the identifiers the composer generates, without loading a
project. With <module> <resource>, print the resource's logical ID in
the composed template.`,
		Usage: "somod id <module> <resource> | somod id <command> <name>",
		Examples: []cli.Example{
			{
				Description: "Logical ID of a module resource",
				Command:     "somod id @acme/auth UserPool",
			},
			{
				Description: "Stack output name of a parameter",
				Command:     "somod id output auth.userPoolId",
			},
		},
		Subcommands: []*cli.Command{
			{
				Name:    "output",
				Summary: "Stack output name of a parameter",
				Usage:   "somod id output <parameter>",
				Run: func(_ context.Context, args []string) error {
					if err := cli.ExpectArgs(args, 1, 1, "somod id output <parameter>"); err != nil {
						return err
					}
					return printLine(identifier.OutputName(args[0]))
				},
			},
			{
				Name:    "param",
				Summary: "Template parameter name of a parameter",
				Usage:   "somod id param <parameter>",
				Run: func(_ context.Context, args []string) error {
					if err := cli.ExpectArgs(args, 1, 1, "somod id param <parameter>"); err != nil {
						return err
					}
					return printLine(identifier.ParameterName(args[0]))
				},
			},
			{
				Name:    "decode",
				Summary: "Parameter name encoded in an output or template parameter name",
				Usage:   "somod id decode <name>",
				Run: func(_ context.Context, args []string) error {
					if err := cli.ExpectArgs(args, 1, 1, "somod id decode <name>"); err != nil {
						return err
					}
					if name, err := identifier.ParameterNameFromOutputName(args[0]); err == nil {
						return printLine(name)
					}
					name, err := identifier.ParameterNameFromTemplateParameter(args[0])
					if err != nil {
						return fmt.Errorf("%q is neither an output name nor a template parameter name", args[0])
					}
					return printLine(name)
				},
			},
			{
				Name:    "resource-name",
				Summary: "Deployed name expression of a module resource name",
				Usage:   "somod id resource-name <module> <name>",
				Run: func(_ context.Context, args []string) error {
					if err := cli.ExpectArgs(args, 2, 2, "somod id resource-name <module> <name>"); err != nil {
						return err
					}
					return cli.WriteJSON(stdout, identifier.ResourceName(args[0], args[1]))
				},
			},
		},
		Run: func(_ context.Context, args []string) error {
			if err := cli.ExpectArgs(args, 2, 2, "somod id <module> <resource>"); err != nil {
				return err
			}
			return printLine(identifier.LogicalID(args[0], args[1]))
		},
	}
}
