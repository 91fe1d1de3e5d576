// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package compose

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sodaru/somod/lib/template"
)

// DefaultDebounce is the quiet period [Watch] waits after a template
// change before recomposing.
const DefaultDebounce = 200 * time.Millisecond

// Watch composes opts, then recomposes each time a module template
// changes on disk, until ctx is done. handle receives every result,
// including failed compositions; Watch keeps going after a failure.
// Each composition is fresh: nothing is carried over between runs.
//
// Templates are located as [template.DirSource] reads them, so opts
// should use the default Source. Watch returns nil when ctx ends.
func Watch(ctx context.Context, opts Options, debounce time.Duration, handle func(*Composition, error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	opts = opts.withDefaults()
	logger := opts.Logger

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	templates := make(map[string]bool, len(opts.Modules))
	watched := make(map[string]bool)
	for _, mod := range opts.Modules {
		path, _ := template.TemplatePath(mod)
		templates[filepath.Clean(path)] = true
		// Watch the directory: editors save by rename, which drops a
		// watch placed on the file itself.
		directory, err := existingAncestor(filepath.Dir(path), mod.PackageLocation)
		if err != nil {
			return err
		}
		if watched[directory] {
			continue
		}
		if err := watcher.Add(directory); err != nil {
			return fmt.Errorf("watching %s: %w", directory, err)
		}
		watched[directory] = true
		logger.Debug("watching templates", "module", mod.Name, "directory", directory)
	}

	handle(Compose(ctx, opts))

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !templates[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("template changed", "file", event.Name, "op", event.Op.String())
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("template watcher error", "error", err)

		case <-timer.C:
			logger.Info("recomposing after template change")
			handle(Compose(ctx, opts))
		}
	}
}

// existingAncestor returns directory, or its nearest existing parent no
// higher than limit. A dependency that has not been built has no build
// directory.
func existingAncestor(directory, limit string) (string, error) {
	limit = filepath.Clean(limit)
	for current := filepath.Clean(directory); ; current = filepath.Dir(current) {
		info, err := os.Stat(current)
		if err == nil && info.IsDir() {
			return current, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("checking %s: %w", current, err)
		}
		if current == limit || current == filepath.Dir(current) {
			return "", fmt.Errorf("module directory %s does not exist", limit)
		}
	}
}
