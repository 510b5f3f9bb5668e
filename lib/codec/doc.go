// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the single CBOR configuration used for every
// binary encoding in the pipeline: record size accounting in
// lib/record, export batch bodies in lib/exporter, and batch decoding
// in lib/collector.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same record always encodes to the same bytes. That makes
// Record.SizeBytes stable and lets the exporter digest a batch body
// and have the collector verify it after reassembly.
//
// JSON is reserved for human-facing output (the console exporter and
// CLI). Struct tags follow one rule: `cbor` tags on wire-only types,
// `json` tags on types that are also printed as JSON (fxamacker/cbor
// falls back to `json` tags when `cbor` tags are absent). Never both on
// one field.
package codec
