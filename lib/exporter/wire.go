// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package exporter

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/bureau-foundation/beacon/lib/chunk"
	"github.com/bureau-foundation/beacon/lib/compress"
)

// Request headers carried by every chunk POST.
const (
	HeaderPayloadID        = "Beacon-Payload-Id"
	HeaderChunkIndex       = "Beacon-Chunk-Index"
	HeaderChunkTotal       = "Beacon-Chunk-Total"
	HeaderDigest           = "Beacon-Payload-Digest"
	HeaderCompression      = "Beacon-Compression"
	HeaderUncompressedSize = "Beacon-Uncompressed-Size"

	ContentTypeChunk = "application/vnd.beacon.chunk"
)

// ChunkHeader is the metadata a collector needs to reassemble and
// decode one chunk.
type ChunkHeader struct {
	PayloadID        string
	Index            int
	Total            int
	Digest           chunk.Digest
	Compression      compress.Algorithm
	UncompressedSize int
}

// Apply sets the header fields on h.
func (c ChunkHeader) Apply(h http.Header) {
	h.Set("Content-Type", ContentTypeChunk)
	h.Set(HeaderPayloadID, c.PayloadID)
	h.Set(HeaderChunkIndex, strconv.Itoa(c.Index))
	h.Set(HeaderChunkTotal, strconv.Itoa(c.Total))
	h.Set(HeaderDigest, c.Digest.String())
	h.Set(HeaderCompression, c.Compression.String())
	h.Set(HeaderUncompressedSize, strconv.Itoa(c.UncompressedSize))
}

// ParseChunkHeader reads the fields Apply wrote.
func ParseChunkHeader(h http.Header) (ChunkHeader, error) {
	var parsed ChunkHeader
	parsed.PayloadID = h.Get(HeaderPayloadID)
	if parsed.PayloadID == "" {
		return parsed, fmt.Errorf("exporter: missing %s header", HeaderPayloadID)
	}

	var err error
	if parsed.Index, err = intHeader(h, HeaderChunkIndex); err != nil {
		return parsed, err
	}
	if parsed.Total, err = intHeader(h, HeaderChunkTotal); err != nil {
		return parsed, err
	}
	if parsed.UncompressedSize, err = intHeader(h, HeaderUncompressedSize); err != nil {
		return parsed, err
	}
	if parsed.Digest, err = chunk.ParseDigest(h.Get(HeaderDigest)); err != nil {
		return parsed, fmt.Errorf("exporter: %s header: %w", HeaderDigest, err)
	}
	if parsed.Compression, err = compress.Parse(h.Get(HeaderCompression)); err != nil {
		return parsed, fmt.Errorf("exporter: %s header: %w", HeaderCompression, err)
	}
	return parsed, nil
}

func intHeader(h http.Header, name string) (int, error) {
	value := h.Get(name)
	if value == "" {
		return 0, fmt.Errorf("exporter: missing %s header", name)
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("exporter: %s header %q: %w", name, value, err)
	}
	return parsed, nil
}
