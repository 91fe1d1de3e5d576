// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/sodaru/somod/cmd/somod/cli"
	"github.com/sodaru/somod/lib/version"
)

type versionParams struct {
	cli.JSONOutput
}

func versionCommand(stdout io.Writer) *cli.Command {
	var params versionParams
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("version", &params)
		},
		Run: func(_ context.Context, args []string) error {
			if err := cli.ExpectArgs(args, 0, 0, "somod version [--json]"); err != nil {
				return err
			}
			if done, err := params.EmitJSON(stdout, version.Current()); done {
				return err
			}
			_, err := fmt.Fprintf(stdout, "somod %s\n", version.Full())
			return err
		},
	}
}
