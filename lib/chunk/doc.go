// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chunk splits large serialized payloads into bounded pieces
// for transport and puts them back together on the receiving side.
//
// [Encode] partitions a payload at exact byte boundaries. Each [Chunk]
// carries its index and the total count, which is all a receiver needs
// to reassemble in any arrival order. Splitting is on encoded bytes,
// so a multi-byte UTF-8 sequence may straddle two chunks; [Chunk.Text]
// decodes one chunk on its own and replaces such partial sequences.
// Reassembling the bytes is always exact.
//
// [DigestOf] computes a BLAKE3 keyed hash of the whole payload. The sender
// attaches it to every chunk and the [Reassembler] verifies it once
// all chunks have arrived, so a stale or corrupted chunk from another
// payload cannot silently produce garbage.
package chunk
