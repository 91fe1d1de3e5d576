// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag is the header byte naming how a snapshot payload is
// compressed. The values are part of the file format.
type CompressionTag uint8

const (
	CompressionNone CompressionTag = 0
	CompressionLZ4  CompressionTag = 1
	// CompressionZstd is the default: snapshots are mostly template
	// text and shrink several times over.
	CompressionZstd CompressionTag = 2
)

// errIncompressible means a payload did not shrink. [Write] stores such
// payloads with [CompressionNone].
var errIncompressible = errors.New("payload is incompressible")

// compressor is one payload encoding. decompress receives the
// uncompressed size recorded in the header and must produce exactly
// that many bytes.
type compressor struct {
	name       string
	compress   func(payload []byte) ([]byte, error)
	decompress func(stored []byte, size int) ([]byte, error)
}

var compressors = map[CompressionTag]compressor{
	CompressionNone: {name: "none", compress: storeRaw, decompress: loadRaw},
	CompressionLZ4:  {name: "lz4", compress: compressLZ4, decompress: decompressLZ4},
	CompressionZstd: {name: "zstd", compress: compressZstd, decompress: decompressZstd},
}

// String returns the configuration name of a tag.
func (tag CompressionTag) String() string {
	if c, ok := compressors[tag]; ok {
		return c.name
	}
	return fmt.Sprintf("unknown(%d)", uint8(tag))
}

// ParseCompressionTag parses a snapshot.compression setting.
func ParseCompressionTag(name string) (CompressionTag, error) {
	for tag, c := range compressors {
		if c.name == name {
			return tag, nil
		}
	}
	return 0, fmt.Errorf("unknown compression %q (want zstd, lz4 or none)", name)
}

func lookupCompressor(tag CompressionTag) (compressor, error) {
	c, ok := compressors[tag]
	if !ok {
		return compressor{}, fmt.Errorf("unsupported compression tag %d", uint8(tag))
	}
	return c, nil
}

func compress(payload []byte, tag CompressionTag) ([]byte, error) {
	c, err := lookupCompressor(tag)
	if err != nil {
		return nil, err
	}
	return c.compress(payload)
}

func decompress(stored []byte, tag CompressionTag, size int) ([]byte, error) {
	c, err := lookupCompressor(tag)
	if err != nil {
		return nil, err
	}
	payload, err := c.decompress(stored, size)
	if err != nil {
		return nil, err
	}
	if len(payload) != size {
		return nil, fmt.Errorf("%s payload: size %d does not match expected %d", c.name, len(payload), size)
	}
	return payload, nil
}

func storeRaw(payload []byte) ([]byte, error) { return payload, nil }

func loadRaw(stored []byte, _ int) ([]byte, error) { return stored, nil }

func compressLZ4(payload []byte) ([]byte, error) {
	var compressor lz4.Compressor
	destination := make([]byte, lz4.CompressBlockBound(len(payload)))
	written, err := compressor.CompressBlock(payload, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// Zero means the block did not fit, i.e. it is incompressible.
	if written == 0 || written >= len(payload) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(stored []byte, size int) ([]byte, error) {
	destination := make([]byte, size)
	read, err := lz4.UncompressBlock(stored, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return destination[:read], nil
}

// zstdCodec builds the shared encoder and decoder on first use. Both
// are safe for concurrent use.
var zstdCodec = sync.OnceValues(func() (*zstd.Encoder, *zstd.Decoder) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("snapshot: zstd encoder initialization failed: " + err.Error())
	}
	decoder, err := newZstdDecoder(maxPayloadSize)
	if err != nil {
		panic("snapshot: zstd decoder initialization failed: " + err.Error())
	}
	return encoder, decoder
})

// newZstdDecoder returns a decoder that refuses to inflate more than
// maxMemory bytes, whatever the frame claims.
func newZstdDecoder(maxMemory uint64) (*zstd.Decoder, error) {
	return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxMemory))
}

func compressZstd(payload []byte) ([]byte, error) {
	encoder, _ := zstdCodec()
	compressed := encoder.EncodeAll(payload, nil)
	if len(compressed) >= len(payload) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(stored []byte, size int) ([]byte, error) {
	_, decoder := zstdCodec()
	payload, err := decoder.DecodeAll(stored, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return payload, nil
}
