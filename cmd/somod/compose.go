// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/sodaru/somod/cmd/somod/cli"
	"github.com/sodaru/somod/lib/compose"
	"github.com/sodaru/somod/lib/config"
	"github.com/sodaru/somod/lib/snapshot"
)

type composeParams struct {
	cli.ProjectFlags
	Out         string        `flag:"out,o" desc:"write the template here instead of output.template ('-' for stdout)"`
	Format      string        `flag:"format" desc:"template encoding: yaml or json (default output.format)"`
	Snapshot    string        `flag:"snapshot" desc:"also write a composition snapshot to this path"`
	Compression string        `flag:"compression" desc:"snapshot compression: zstd, lz4 or none (default snapshot.compression)"`
	NoPrune     bool          `flag:"no-prune" desc:"keep dependency layers that nothing references"`
	Watch       bool          `flag:"watch,w" desc:"recompose whenever a module template changes"`
	Debounce    time.Duration `flag:"debounce" default:"200ms" desc:"quiet period before recomposing in --watch mode"`
}

// apply layers the command-line overrides onto the loaded config.
func (p *composeParams) apply(cfg *config.Config) error {
	if p.Format != "" {
		cfg.Output.Format = p.Format
	}
	if p.Out != "" {
		cfg.Output.Template = p.Out
	}
	if p.Compression != "" {
		cfg.Snapshot.Compression = p.Compression
	}
	if p.NoPrune {
		cfg.Prune.UnreferencedLayers = false
	}
	return cfg.Validate()
}

func composeCommand(stdout io.Writer) *cli.Command {
	var params composeParams
	return &cli.Command{
		Name:    "compose",
		Summary: "Compose every module template into one SAM template",
		Description: `Load every module's template, validate them together, resolve
cross-module references and extensions, and write one AWS SAM template.

Validation problems are reported all at once; nothing is written unless
every template is valid. With --watch, the project is recomposed each
time a module template changes, and failures are logged without
stopping the watch.`,
		Usage: "somod compose [flags]",
		Examples: []cli.Example{
			{
				Description: "Compose into the configured output file",
				Command:     "somod compose",
			},
			{
				Description: "Print the template as JSON",
				Command:     "somod compose --format json --out -",
			},
			{
				Description: "Record a snapshot alongside the template",
				Command:     "somod compose --snapshot build/somod.snapshot --compression lz4",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("compose", &params)
		},
		Run: func(ctx context.Context, args []string) error {
			if err := cli.ExpectArgs(args, 0, 0, "somod compose [flags]"); err != nil {
				return err
			}
			project, err := params.Load()
			if err != nil {
				return err
			}
			if err := params.apply(project.Config); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			outputs := &composeOutputs{
				stdout:       stdout,
				config:       project.Config,
				snapshotPath: params.Snapshot,
				logger:       project.Logger,
			}

			if !params.Watch {
				composition, err := compose.Compose(ctx, project.ComposeOptions())
				if err != nil {
					return err
				}
				return outputs.write(composition)
			}

			return compose.Watch(ctx, project.ComposeOptions(), params.Debounce,
				func(composition *compose.Composition, err error) {
					if err != nil {
						project.Logger.Error("composition failed", "error", err)
						return
					}
					if err := outputs.write(composition); err != nil {
						project.Logger.Error("writing composition failed", "error", err)
					}
				})
		},
	}
}

// composeOutputs writes what one composition produces.
type composeOutputs struct {
	stdout       io.Writer
	config       *config.Config
	snapshotPath string
	logger       *slog.Logger
}

func (o *composeOutputs) write(composition *compose.Composition) error {
	sam := composition.SAMTemplate()
	data, err := compose.Encode(sam, o.config.Output.Format)
	if err != nil {
		return err
	}

	destination := o.config.Output.Template
	if destination == "-" {
		if err := cli.WriteDocument(o.stdout, data, o.config.Output.Format); err != nil {
			return err
		}
	} else if err := writeFileAtomic(destination, data); err != nil {
		return err
	}

	resources, _ := sam["Resources"].(map[string]any)
	o.logger.Info("template written",
		"path", destination,
		"resources", len(resources),
		"fingerprint", composition.Fingerprint().Short(),
	)

	if o.snapshotPath == "" {
		return nil
	}
	tag, err := snapshot.ParseCompressionTag(o.config.Snapshot.Compression)
	if err != nil {
		return err
	}
	recorded, err := snapshot.FromComposition(composition)
	if err != nil {
		return err
	}
	var buffer bytes.Buffer
	if err := snapshot.Write(&buffer, recorded, tag); err != nil {
		return err
	}
	if err := writeFileAtomic(o.snapshotPath, buffer.Bytes()); err != nil {
		return err
	}
	o.logger.Info("snapshot written", "path", o.snapshotPath, "bytes", buffer.Len(), "compression", tag.String())
	return nil
}
