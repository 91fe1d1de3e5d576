// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package template

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sodaru/somod/lib/module"
)

// LoadAll reads and decodes the template of every module concurrently.
// The result keeps the order of modules (root first) and omits modules
// without a template. The first read or decode error cancels the
// remaining reads and is returned.
func LoadAll(ctx context.Context, source Source, modules module.List, logger *slog.Logger) ([]*ModuleTemplate, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	loaded := make([]*ModuleTemplate, len(modules))
	group, groupCtx := errgroup.WithContext(ctx)
	for index, mod := range modules {
		group.Go(func() error {
			raw, err := source.Read(groupCtx, mod)
			if errors.Is(err, ErrNoTemplate) {
				logger.Debug("module has no template", "module", mod.Name)
				return nil
			}
			if err != nil {
				return err
			}
			document, err := DecodeDocument(raw)
			if err != nil {
				return fmt.Errorf("module %s: %w", mod.Name, err)
			}
			moduleTemplate, err := DecodeTemplate(mod, raw.Path, document)
			if err != nil {
				return err
			}
			logger.Debug("template loaded",
				"module", mod.Name,
				"path", raw.Path,
				"root", mod.Root,
				"resources", len(moduleTemplate.Resources),
			)
			loaded[index] = moduleTemplate
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	templates := make([]*ModuleTemplate, 0, len(loaded))
	for _, moduleTemplate := range loaded {
		if moduleTemplate != nil {
			templates = append(templates, moduleTemplate)
		}
	}
	return templates, nil
}
