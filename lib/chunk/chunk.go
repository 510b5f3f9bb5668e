// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chunk

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// Chunk is one piece of a split payload.
type Chunk struct {
	// Index is the chunk's position, from 0.
	Index int `cbor:"index"`

	// Total is the number of chunks the payload was split into. It is
	// the same on every chunk of a payload.
	Total int `cbor:"total"`

	Data []byte `cbor:"data"`
}

// Text decodes the chunk's bytes as UTF-8 independently of its
// neighbours. Sequences cut at a chunk boundary (and any other invalid
// bytes) become U+FFFD.
func (c Chunk) Text() string {
	return strings.ToValidUTF8(string(c.Data), "�")
}

// Encode splits payload into chunks of exactly maxChunkSize bytes (the
// last one may be shorter). The chunks share payload's backing array.
// An empty payload yields a single empty chunk so that a receiver
// always gets at least one message. Panics if maxChunkSize <= 0.
func Encode(payload []byte, maxChunkSize int) []Chunk {
	if maxChunkSize <= 0 {
		panic(fmt.Sprintf("chunk: maxChunkSize must be positive, got %d", maxChunkSize))
	}
	if len(payload) == 0 {
		return []Chunk{{Index: 0, Total: 1, Data: []byte{}}}
	}

	total := (len(payload) + maxChunkSize - 1) / maxChunkSize
	chunks := make([]Chunk, total)
	for index := range chunks {
		start := index * maxChunkSize
		end := min(start+maxChunkSize, len(payload))
		chunks[index] = Chunk{Index: index, Total: total, Data: payload[start:end:end]}
	}
	return chunks
}

// Join concatenates chunks in index order. The chunks must be the
// complete set produced by one Encode call, in any order.
func Join(chunks []Chunk) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("chunk: no chunks to join")
	}
	total := chunks[0].Total
	if total != len(chunks) {
		return nil, fmt.Errorf("chunk: have %d chunks, want %d", len(chunks), total)
	}
	ordered := make([][]byte, total)
	size := 0
	for _, c := range chunks {
		if c.Total != total {
			return nil, fmt.Errorf("chunk: chunk %d reports %d total, others %d", c.Index, c.Total, total)
		}
		if c.Index < 0 || c.Index >= total {
			return nil, fmt.Errorf("chunk: index %d out of range for %d chunks", c.Index, total)
		}
		if ordered[c.Index] != nil {
			return nil, fmt.Errorf("chunk: duplicate chunk %d", c.Index)
		}
		ordered[c.Index] = c.Data
		if ordered[c.Index] == nil {
			ordered[c.Index] = []byte{}
		}
		size += len(c.Data)
	}
	payload := make([]byte, 0, size)
	for _, data := range ordered {
		payload = append(payload, data...)
	}
	return payload, nil
}

// Digest is the BLAKE3 keyed hash of a complete payload.
type Digest [32]byte

// digestKey separates payload digests from any other BLAKE3 use of the
// same bytes. The value is the ASCII domain name, zero-padded.
var digestKey = [32]byte{
	'b', 'e', 'a', 'c', 'o', 'n', '.', 'c', 'h', 'u', 'n', 'k', '.',
	'p', 'a', 'y', 'l', 'o', 'a', 'd', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// DigestOf computes the digest of payload.
func DigestOf(payload []byte) Digest {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		// NewKeyed only fails for a key that is not 32 bytes.
		panic("chunk: blake3.NewKeyed: " + err.Error())
	}
	hasher.Write(payload)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// ParseDigest parses the hex form produced by Digest.String.
func ParseDigest(text string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(text)
	if err != nil {
		return digest, fmt.Errorf("chunk: invalid digest %q: %w", text, err)
	}
	if len(decoded) != len(digest) {
		return digest, fmt.Errorf("chunk: digest is %d bytes, want %d", len(decoded), len(digest))
	}
	copy(digest[:], decoded)
	return digest, nil
}

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// IsZero reports whether d is the zero digest, meaning "not supplied".
func (d Digest) IsZero() bool { return d == Digest{} }
