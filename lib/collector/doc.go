// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package collector receives the chunked batches the HTTP exporter
// sends. Each POST carries one chunk; the collector reassembles the
// chunks of a payload, verifies its digest, decompresses and decodes it
// into a [record.Batch], and hands the batch to a [Sink].
//
// Replay records arrive as [record.Opaque] payloads and are decoded
// back into [replay.Event] values before delivery, so a Sink sees the
// same payload types a producer pushed.
//
// The collector tracks the last batch sequence seen per session and
// logs gaps; a gap means an exporter dropped or failed a batch.
package collector
