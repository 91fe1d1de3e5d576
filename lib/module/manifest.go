// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package module

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest is the on-disk form of a resolved module list.
//
//	modules:
//	  - name: "@acme/app"
//	    version: 1.0.0
//	    location: .
//	    root: true
//	  - name: "@acme/auth"
//	    version: 2.3.1
//	    location: node_modules/@acme/auth
type Manifest struct {
	Modules []Module `yaml:"modules"`
}

// LoadManifest reads a YAML module manifest. Relative package locations
// are resolved against the manifest's directory.
func LoadManifest(path string) (List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading module manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing module manifest %s: %w", path, err)
	}

	baseDirectory := filepath.Dir(path)
	for i := range manifest.Modules {
		location := manifest.Modules[i].PackageLocation
		if location != "" && !filepath.IsAbs(location) {
			manifest.Modules[i].PackageLocation = filepath.Join(baseDirectory, location)
		}
	}

	list, err := NewList(manifest.Modules)
	if err != nil {
		return nil, fmt.Errorf("module manifest %s: %w", path, err)
	}
	return list, nil
}
