// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sodaru/somod/lib/codec"
	"github.com/sodaru/somod/lib/compose"
	"github.com/sodaru/somod/lib/identifier"
	"github.com/sodaru/somod/lib/jsontree"
	"github.com/sodaru/somod/lib/template"
	"github.com/sodaru/somod/lib/version"
)

// Magic opens every snapshot file.
const Magic = "SMSN"

// maxPayloadSize bounds the declared payload size so a corrupt header
// cannot trigger a huge allocation.
const maxPayloadSize = 1 << 30

// ErrNotSnapshot is returned when data does not start with [Magic].
var ErrNotSnapshot = errors.New("not a somod snapshot")

// Snapshot is the recorded result of one composition.
type Snapshot struct {
	Producer    string               `json:"producer"`
	Fingerprint string               `json:"fingerprint"`
	Modules     []Module             `json:"modules"`
	SAMTemplate json.RawMessage      `json:"sam_template"`
	Provenance  []ResourceProvenance `json:"provenance,omitempty"`
}

// Module is one entry of the composed module list.
type Module struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Root     bool   `json:"root,omitempty"`
	Template bool   `json:"template"`
}

// Resource names a module resource.
type Resource struct {
	Module   string `json:"module"`
	Resource string `json:"resource"`
}

// ResourceProvenance records how an extended resource was merged.
type ResourceProvenance struct {
	Resource     Resource        `json:"resource"`
	LogicalID    string          `json:"logical_id"`
	Contributors []Resource      `json:"contributors"`
	Properties   []PropertyOwner `json:"properties"`
}

// PropertyOwner attributes the subtree at Path (a JSON pointer into
// Properties) to Module. Only paths whose owner differs from the
// enclosing path's owner are listed; the empty path is always first.
type PropertyOwner struct {
	Path   string `json:"path"`
	Module string `json:"module"`
}

// Header describes a snapshot file without its payload.
type Header struct {
	Compression    CompressionTag
	Size           int
	CompressedSize int
}

// FromComposition records a composition. Provenance is kept for
// resources with at least one extension.
func FromComposition(composition *compose.Composition) (*Snapshot, error) {
	samTemplate, err := json.Marshal(composition.SAMTemplate())
	if err != nil {
		return nil, fmt.Errorf("encoding SAM template: %w", err)
	}

	snapshot := &Snapshot{
		Producer:    "somod " + version.Short(),
		Fingerprint: composition.Fingerprint().String(),
		SAMTemplate: samTemplate,
	}
	for _, mod := range composition.Modules() {
		_, hasTemplate := composition.Template(mod.Name)
		snapshot.Modules = append(snapshot.Modules, Module{
			Name: mod.Name, Version: mod.Version, Root: mod.Root, Template: hasTemplate,
		})
	}

	for _, root := range composition.Set().Roots() {
		merged, err := composition.Resource(root.Module, root.Resource)
		if err != nil {
			return nil, err
		}
		if len(merged.Contributors) < 2 {
			continue
		}
		record := ResourceProvenance{
			Resource:  Resource{Module: root.Module, Resource: root.Resource},
			LogicalID: identifier.LogicalID(root.Module, root.Resource),
		}
		for _, contributor := range merged.Contributors {
			record.Contributors = append(record.Contributors, Resource{Module: contributor.Module, Resource: contributor.Resource})
		}
		record.Properties = FlattenOwners(merged.PropertyModuleMap)
		snapshot.Provenance = append(snapshot.Provenance, record)
	}
	return snapshot, nil
}

// FlattenOwners lists the points of a PropertyModuleMap where the
// owning module changes, in a stable pre-order.
func FlattenOwners(owners *template.PropertyModuleMap) []PropertyOwner {
	result := []PropertyOwner{{Path: "", Module: owners.Module}}
	var visit func(node *template.PropertyModuleMap, path jsontree.Path)
	visit = func(node *template.PropertyModuleMap, path jsontree.Path) {
		for _, segment := range node.Segments() {
			child, _ := node.Child(segment)
			childPath := path.Append(segment)
			if child.Module != node.Module {
				result = append(result, PropertyOwner{Path: childPath.Pointer(), Module: child.Module})
			}
			visit(child, childPath)
		}
	}
	visit(owners, nil)
	return result
}

// Write encodes snapshot to w. A payload that does not compress is
// stored uncompressed.
func Write(w io.Writer, snapshot *Snapshot, tag CompressionTag) error {
	payload, err := codec.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	compressed, err := compress(payload, tag)
	if errors.Is(err, errIncompressible) {
		compressed, tag = payload, CompressionNone
	} else if err != nil {
		return err
	}

	header := make([]byte, 0, len(Magic)+1+binary.MaxVarintLen64)
	header = append(header, Magic...)
	header = append(header, byte(tag))
	header = binary.AppendUvarint(header, uint64(len(payload)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("writing snapshot header: %w", err)
	}
	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("writing snapshot payload: %w", err)
	}
	return nil
}

// Unpack validates a snapshot file's header and returns the
// decompressed CBOR payload.
func Unpack(data []byte) (Header, []byte, error) {
	if len(data) < len(Magic)+1 || string(data[:len(Magic)]) != Magic {
		return Header{}, nil, ErrNotSnapshot
	}
	header := Header{Compression: CompressionTag(data[len(Magic)])}

	reader := bytes.NewReader(data[len(Magic)+1:])
	size, err := binary.ReadUvarint(reader)
	if err != nil {
		return Header{}, nil, fmt.Errorf("reading snapshot size: %w", err)
	}
	if size > maxPayloadSize {
		return Header{}, nil, fmt.Errorf("snapshot payload size %d exceeds limit %d", size, maxPayloadSize)
	}
	header.Size = int(size)

	compressed := data[len(data)-reader.Len():]
	header.CompressedSize = len(compressed)
	payload, err := decompress(compressed, header.Compression, header.Size)
	if err != nil {
		return Header{}, nil, err
	}
	return header, payload, nil
}

// Read decodes a snapshot written by [Write].
func Read(r io.Reader) (*Snapshot, Header, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Header{}, fmt.Errorf("reading snapshot: %w", err)
	}
	header, payload, err := Unpack(data)
	if err != nil {
		return nil, Header{}, err
	}
	var snapshot Snapshot
	if err := codec.Unmarshal(payload, &snapshot); err != nil {
		return nil, Header{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snapshot, header, nil
}
