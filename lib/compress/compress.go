// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress compresses serialized telemetry batches before they
// are chunked and sent.
//
// Batches are CBOR: field names repeat in every record, so zstd
// typically shrinks them severalfold. LZ4 is the cheaper alternative
// for hosts where exporter CPU matters more than bandwidth. A payload
// that does not get smaller is sent uncompressed, and the returned
// [Algorithm] says which form was used.
package compress

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm identifies how a payload is compressed. The numeric values
// are wire constants.
type Algorithm uint8

const (
	None Algorithm = 0
	LZ4  Algorithm = 1
	Zstd Algorithm = 2
)

// MaxDecompressedSize bounds the size a receiver will allocate for one
// decompressed payload.
const MaxDecompressedSize = 256 << 20

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// Parse parses an algorithm name. The empty string is None.
func Parse(name string) (Algorithm, error) {
	switch name {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return 0, fmt.Errorf("compress: unknown algorithm %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so configuration
// files can name the algorithm.
func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

var errIncompressible = errors.New("compress: data is incompressible")

// Compress compresses data with algorithm and returns the result and
// the algorithm actually used: None, with data returned as is, when
// compression would not make it smaller.
func Compress(data []byte, algorithm Algorithm) ([]byte, Algorithm, error) {
	var compressed []byte
	var err error
	switch algorithm {
	case None:
		return data, None, nil
	case LZ4:
		compressed, err = compressLZ4(data)
	case Zstd:
		compressed, err = compressZstd(data)
	default:
		return nil, 0, fmt.Errorf("compress: unsupported algorithm %s", algorithm)
	}
	if errors.Is(err, errIncompressible) {
		return data, None, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return compressed, algorithm, nil
}

// Decompress reverses Compress. uncompressedSize must be the original
// length exactly; LZ4 blocks do not record it themselves.
func Decompress(compressed []byte, algorithm Algorithm, uncompressedSize int) ([]byte, error) {
	if uncompressedSize < 0 || uncompressedSize > MaxDecompressedSize {
		return nil, fmt.Errorf("compress: uncompressed size %d outside 0..%d", uncompressedSize, MaxDecompressedSize)
	}
	switch algorithm {
	case None:
		if len(compressed) != uncompressedSize {
			return nil, fmt.Errorf("compress: uncompressed payload is %d bytes, expected %d",
				len(compressed), uncompressedSize)
		}
		return compressed, nil
	case LZ4:
		return decompressLZ4(compressed, uncompressedSize)
	case Zstd:
		return decompressZstd(compressed, uncompressedSize)
	default:
		return nil, fmt.Errorf("compress: unsupported algorithm %s", algorithm)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("compress: lz4: %w", err)
	}
	// CompressBlock reports 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, uncompressedSize int) ([]byte, error) {
	destination := make([]byte, uncompressedSize)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("compress: lz4 decompress: %w", err)
	}
	if read != uncompressedSize {
		return nil, fmt.Errorf("compress: lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
	}
	return destination, nil
}

// zstd.Encoder and zstd.Decoder are safe for concurrent use with
// EncodeAll and DecodeAll, so one of each serves every caller.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxDecompressedSize))
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, uncompressedSize int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("compress: zstd decompress: %w", err)
	}
	if len(result) != uncompressedSize {
		return nil, fmt.Errorf("compress: zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
	}
	return result, nil
}
