// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot stores a composition result in one compact file so
// it can be inspected later without the module packages it came from.
//
// A snapshot file is:
//
//	magic       4 bytes   "SMSN"
//	compression 1 byte    [CompressionTag]
//	size        uvarint   length of the uncompressed payload
//	payload     rest      CBOR of [Snapshot], compressed per the tag
//
// The payload records the composition fingerprint, the module list,
// the SAM template (as JSON bytes) and the provenance of every merged
// resource. [FromComposition] builds a Snapshot; [Write] and [Read]
// handle the file format.
package snapshot
