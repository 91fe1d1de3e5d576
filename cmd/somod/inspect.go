// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/sodaru/somod/cmd/somod/cli"
	"github.com/sodaru/somod/lib/codec"
	"github.com/sodaru/somod/lib/snapshot"
)

type inspectParams struct {
	cli.JSONOutput
	Diagnose bool `flag:"diagnose" desc:"print the decompressed payload in CBOR diagnostic notation"`
	Template bool `flag:"template" desc:"print only the recorded SAM template"`
}

// snapshotSummary is the --json output of "somod inspect".
type snapshotSummary struct {
	Compression    string                        `json:"compression"`
	Size           int                           `json:"size"`
	CompressedSize int                           `json:"compressed_size"`
	Producer       string                        `json:"producer"`
	Fingerprint    string                        `json:"fingerprint"`
	Modules        []snapshot.Module             `json:"modules"`
	Provenance     []snapshot.ResourceProvenance `json:"provenance"`
}

func inspectCommand(stdout io.Writer) *cli.Command {
	var params inspectParams
	return &cli.Command{
		Name:    "inspect",
		Summary: "Read a composition snapshot",
		Description: `Print what a snapshot written by "somod compose --snapshot" records:
the composed modules, the fingerprint of the inputs, and the provenance
of every extended resource.

--diagnose prints the raw CBOR payload in RFC 8949 diagnostic notation.
--template prints the recorded SAM template as JSON.`,
		Usage: "somod inspect [flags] <snapshot>",
		Examples: []cli.Example{
			{
				Description: "Summarize a snapshot",
				Command:     "somod inspect build/somod.snapshot",
			},
			{
				Description: "Compare the templates of two snapshots",
				Command:     "diff <(somod inspect --template a.snapshot) <(somod inspect --template b.snapshot)",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("inspect", &params)
		},
		Run: func(_ context.Context, args []string) error {
			if err := cli.ExpectArgs(args, 1, 1, "somod inspect [flags] <snapshot>"); err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading snapshot: %w", err)
			}
			return inspectSnapshot(stdout, data, params)
		},
	}
}

func inspectSnapshot(w io.Writer, data []byte, params inspectParams) error {
	if params.Diagnose {
		_, payload, err := snapshot.Unpack(data)
		if err != nil {
			return err
		}
		notation, err := codec.Diagnose(payload)
		if err != nil {
			return fmt.Errorf("diagnosing snapshot payload: %w", err)
		}
		_, err = fmt.Fprintln(w, notation)
		return err
	}

	recorded, header, err := snapshot.Read(bytes.NewReader(data))
	if err != nil {
		return err
	}

	if params.Template {
		var indented bytes.Buffer
		if err := json.Indent(&indented, recorded.SAMTemplate, "", "  "); err != nil {
			return fmt.Errorf("formatting recorded template: %w", err)
		}
		indented.WriteByte('\n')
		return cli.WriteDocument(w, indented.Bytes(), "json")
	}

	summary := snapshotSummary{
		Compression:    header.Compression.String(),
		Size:           header.Size,
		CompressedSize: header.CompressedSize,
		Producer:       recorded.Producer,
		Fingerprint:    recorded.Fingerprint,
		Modules:        recorded.Modules,
		Provenance:     recorded.Provenance,
	}
	if done, err := params.EmitJSON(w, summary); done {
		return err
	}
	return printSnapshotSummary(w, summary)
}

func printSnapshotSummary(w io.Writer, summary snapshotSummary) error {
	fmt.Fprintf(w, "producer:    %s\n", summary.Producer)
	fmt.Fprintf(w, "fingerprint: %s\n", summary.Fingerprint)
	fmt.Fprintf(w, "payload:     %d bytes (%s, %d stored)\n", summary.Size, summary.Compression, summary.CompressedSize)

	fmt.Fprintf(w, "\nmodules:\n")
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	for _, mod := range summary.Modules {
		var notes string
		if mod.Root {
			notes = "root"
		}
		if !mod.Template {
			if notes != "" {
				notes += ", "
			}
			notes += "no template"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", mod.Name, mod.Version, notes)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(summary.Provenance) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\nextended resources:\n")
	for _, record := range summary.Provenance {
		fmt.Fprintf(w, "  {%s, %s} %s\n", record.Resource.Module, record.Resource.Resource, record.LogicalID)
		for _, owner := range record.Properties {
			path := owner.Path
			if path == "" {
				path = "/"
			}
			fmt.Fprintf(w, "    Properties%s <- %s\n", path, owner.Module)
		}
	}
	return nil
}
