// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration shared by
// composition fingerprints and snapshots.
//
// Templates are JSON at every external boundary: module templates on
// disk, the composed SAM document, and CLI --json output. CBOR is used
// where bytes must be stable and compact: the fingerprint input (the
// canonical encoding of every loaded template) and the snapshot
// payload written by "somod compose --snapshot".
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. Two
// template documents that are equal as JSON values encode to identical
// bytes regardless of the key order they were authored in.
//
//	data, err := codec.Marshal(document)
//	err = codec.Unmarshal(data, &document)
//
// Decoding into any yields map[string]any for maps, so decoded
// documents can be handed straight to encoding/json and lib/jsontree.
//
// # Struct Tag Rules
//
// Types that only ever live inside a snapshot use `cbor` tags. Types
// that are also printed by the CLI use `json` tags, which fxamacker/cbor
// reads as a fallback. Never put both tags on one field.
package codec
