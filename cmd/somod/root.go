// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"

	"github.com/sodaru/somod/cmd/somod/cli"
)

// rootCommand builds the somod command tree. Command output goes to
// stdout; logs and help go to stderr.
func rootCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name: "somod",
		Description: `somod: compose SOMOD module templates.

Every module of a project ships a serverless template fragment that may
reference, extend, and depend on resources of the modules it depends on.
somod validates the fragments together and writes one AWS SAM template.`,
		Subcommands: []*cli.Command{
			composeCommand(stdout),
			validateCommand(stdout),
			showCommand(stdout),
			refsCommand(stdout),
			idCommand(stdout),
			inspectCommand(stdout),
			versionCommand(stdout),
		},
		Examples: []cli.Example{
			{
				Description: "Write template.yaml for the project in the current directory",
				Command:     "somod compose",
			},
			{
				Description: "Report every template problem as JSON",
				Command:     "somod validate --json",
			},
			{
				Description: "Show how an extended resource was merged",
				Command:     "somod show --provenance @acme/auth UserPool",
			},
			{
				Description: "Recompose on every template change",
				Command:     "somod compose --watch --snapshot build/somod.snapshot",
			},
		},
	}
}
