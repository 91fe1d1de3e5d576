// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package compose

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/sodaru/somod/lib/codec"
	"github.com/sodaru/somod/lib/config"
	"github.com/sodaru/somod/lib/template"
)

// Fingerprint is a 32-byte BLAKE3 digest of a composition's inputs.
// Equal fingerprints mean equal module lists, equal templates (as JSON
// values) and equal serverless settings.
type Fingerprint [32]byte

// String returns the lowercase hex encoding.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short returns the first 12 hex characters, for log lines.
func (f Fingerprint) Short() string {
	return f.String()[:12]
}

// fingerprintDomainKey is the ASCII domain name zero-padded to 32
// bytes. Changing it changes every fingerprint.
var fingerprintDomainKey = [32]byte{
	's', 'o', 'm', 'o', 'd', '.', 'c', 'o', 'm', 'p', 'o', 's', 'e', '.',
	'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', 0, 0, 0, 0, 0, 0, 0,
}

// fingerprintInput is the canonical CBOR input of a fingerprint.
type fingerprintInput struct {
	Modules    []fingerprintModule     `cbor:"modules"`
	Serverless config.ServerlessConfig `cbor:"serverless"`
}

type fingerprintModule struct {
	Name     string         `cbor:"name"`
	Version  string         `cbor:"version"`
	Root     bool           `cbor:"root"`
	Template map[string]any `cbor:"template,omitempty"`
}

func computeFingerprint(set *template.Set, cfg *config.Config) (Fingerprint, error) {
	input := fingerprintInput{Serverless: cfg.Serverless}
	for _, mod := range set.Modules() {
		entry := fingerprintModule{Name: mod.Name, Version: mod.Version, Root: mod.Root}
		if moduleTemplate, ok := set.Template(mod.Name); ok {
			entry.Template = moduleTemplate.Raw
		}
		input.Modules = append(input.Modules, entry)
	}

	data, err := codec.Marshal(input)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("encoding fingerprint input: %w", err)
	}
	hasher, err := blake3.NewKeyed(fingerprintDomainKey[:])
	if err != nil {
		return Fingerprint{}, fmt.Errorf("creating fingerprint hasher: %w", err)
	}
	hasher.Write(data)

	var fingerprint Fingerprint
	copy(fingerprint[:], hasher.Sum(nil))
	return fingerprint, nil
}
