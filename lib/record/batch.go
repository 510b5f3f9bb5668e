// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package record

// Batch is the envelope an exporter sends for one export call. Identity
// lives on the envelope, not on each record.
type Batch struct {
	// Service names the instrumented program.
	Service string `cbor:"service"`

	// SessionID identifies one run of the program. Replay consumers
	// group events by it.
	SessionID string `cbor:"session_id"`

	// Sequence increases by one per batch sent by an exporter, so the
	// collector can detect gaps.
	Sequence uint64 `cbor:"sequence"`

	Records []*Record `cbor:"records"`
}
