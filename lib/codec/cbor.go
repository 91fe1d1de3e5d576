// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// modes holds the package's encoding and decoding configuration. Both
// modes are immutable and safe for concurrent use.
var modes = newModes()

type codecModes struct {
	encode   cbor.EncMode
	decode   cbor.DecMode
	diagnose cbor.DiagMode
}

func newModes() codecModes {
	// Core Deterministic Encoding sorts map keys, so a template decoded
	// from JSON always encodes to the same bytes. Template numbers are
	// float64 after JSON decoding; shortest-float keeps them compact.
	encodeOptions := cbor.CoreDetEncOptions()
	encodeOptions.ShortestFloat = cbor.ShortestFloat16
	encode, err := encodeOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder configuration: " + err.Error())
	}

	// Untyped maps decode as map[string]any, the shape the template
	// packages walk. Unknown struct fields are ignored so a snapshot
	// from a newer somod still opens.
	decode, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder configuration: " + err.Error())
	}

	diagnose, err := cbor.DiagOptions{
		ByteStringText: true,
	}.DiagMode()
	if err != nil {
		panic("codec: CBOR diagnostic configuration: " + err.Error())
	}

	return codecModes{encode: encode, decode: decode, diagnose: diagnose}
}

// Marshal encodes v deterministically. Struct fields use their json
// tags when no cbor tag is present.
func Marshal(v any) ([]byte, error) {
	return modes.encode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return modes.decode.Unmarshal(data, v)
}

// Diagnose renders data in CBOR diagnostic notation (RFC 8949 §8).
// Byte strings holding UTF-8 text are shown as text.
func Diagnose(data []byte) (string, error) {
	return modes.diagnose.Diagnose(data)
}
