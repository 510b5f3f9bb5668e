// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package exporter provides the batch.Exporter implementations that
// ship records out of the process.
//
// [HTTP] sends each batch to a collector endpoint. The batch is
// encoded as a CBOR record.Batch, compressed (lib/compress), and split
// into chunks no larger than MaxChunkSize (lib/chunk). Each chunk is
// one POST whose headers identify the payload, the chunk's position,
// the compression used, and the payload digest; lib/collector
// reassembles them. Requests are retried with exponential backoff by
// go-retryablehttp over a go-cleanhttp pooled transport.
//
// [Console] writes records to a terminal or file, as coloured
// human-readable lines when the destination is a TTY and as JSON lines
// otherwise.
package exporter
