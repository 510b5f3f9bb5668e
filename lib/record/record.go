// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"fmt"
	"sync"

	"github.com/bureau-foundation/beacon/lib/codec"
)

// Kind identifies which pipeline a record belongs to. The values are
// wire constants.
type Kind uint8

const (
	KindLog    Kind = 1
	KindSpan   Kind = 2
	KindReplay Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindLog:
		return "log"
	case KindSpan:
		return "span"
	case KindReplay:
		return "replay"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Payload is the typed content of a record. Implementations must be
// CBOR-encodable through lib/codec.
type Payload interface {
	RecordKind() Kind
}

// Record is one unit of telemetry queued for export.
//
// Construct with [New]. A Record must not be modified after it has been
// pushed into a buffer: its size is cached on first measurement and
// the export path may be encoding it concurrently with a reader.
type Record struct {
	// Timestamp is the event time as Unix nanoseconds.
	Timestamp int64

	Payload Payload

	sizeOnce  sync.Once
	sizeBytes int
	sizeErr   error
}

// New returns a record for payload at timestamp (Unix nanoseconds).
func New(timestamp int64, payload Payload) *Record {
	return &Record{Timestamp: timestamp, Payload: payload}
}

// Kind returns the payload's kind, or 0 for a record with no payload.
func (r *Record) Kind() Kind {
	if r.Payload == nil {
		return 0
	}
	return r.Payload.RecordKind()
}

// Size returns the CBOR-encoded length of the record. The first call
// encodes the record; later calls return the cached result, including
// a cached encoding error.
func (r *Record) Size() (int, error) {
	r.sizeOnce.Do(func() {
		data, err := codec.Marshal(r)
		r.sizeBytes, r.sizeErr = len(data), err
	})
	return r.sizeBytes, r.sizeErr
}

// SizeBytes is Size without the error. A record that cannot be encoded
// reports zero.
func (r *Record) SizeBytes() int {
	size, err := r.Size()
	if err != nil {
		return 0
	}
	return size
}

// wireRecord is the CBOR form of a Record.
type wireRecord struct {
	Timestamp int64            `cbor:"timestamp"`
	Kind      Kind             `cbor:"kind"`
	Payload   codec.RawMessage `cbor:"payload"`
}

// MarshalCBOR implements cbor.Marshaler.
func (r *Record) MarshalCBOR() ([]byte, error) {
	if r.Payload == nil {
		return nil, fmt.Errorf("record: nil payload")
	}
	payload, err := codec.Marshal(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("record: encoding %s payload: %w", r.Kind(), err)
	}
	return codec.Marshal(wireRecord{
		Timestamp: r.Timestamp,
		Kind:      r.Kind(),
		Payload:   payload,
	})
}

// UnmarshalCBOR implements cbor.Unmarshaler. Log and span payloads
// decode to *LogEntry and *Span; every other kind decodes to *Opaque.
func (r *Record) UnmarshalCBOR(data []byte) error {
	var wire wireRecord
	if err := codec.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	r.Timestamp = wire.Timestamp

	switch wire.Kind {
	case KindLog:
		var entry LogEntry
		if err := codec.Unmarshal(wire.Payload, &entry); err != nil {
			return fmt.Errorf("record: decoding log payload: %w", err)
		}
		r.Payload = &entry
	case KindSpan:
		var span Span
		if err := codec.Unmarshal(wire.Payload, &span); err != nil {
			return fmt.Errorf("record: decoding span payload: %w", err)
		}
		r.Payload = &span
	default:
		r.Payload = &Opaque{Kind: wire.Kind, Raw: wire.Payload}
	}
	return nil
}

// Opaque carries a payload whose type lives outside this package. Raw
// is the payload's CBOR encoding, re-emitted unchanged if the record is
// encoded again.
type Opaque struct {
	Kind Kind
	Raw  codec.RawMessage
}

func (o *Opaque) RecordKind() Kind { return o.Kind }

// MarshalCBOR implements cbor.Marshaler.
func (o *Opaque) MarshalCBOR() ([]byte, error) {
	if len(o.Raw) == 0 {
		return nil, fmt.Errorf("record: empty opaque %s payload", o.Kind)
	}
	return o.Raw, nil
}
