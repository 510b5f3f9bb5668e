// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/bureau-foundation/beacon/lib/codec"
)

// TraceID is a 16-byte trace identifier. JSON and attribute maps use
// 32-character lowercase hex; CBOR uses a 16-byte byte string.
type TraceID [16]byte

// NewTraceID returns a random TraceID.
func NewTraceID() TraceID {
	var id TraceID
	_, _ = rand.Read(id[:])
	return id
}

// ParseTraceID parses a 32-character hex string.
func ParseTraceID(text string) (TraceID, error) {
	var id TraceID
	err := id.UnmarshalText([]byte(text))
	return id, err
}

func (id TraceID) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(id[:])), nil
}

func (id *TraceID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*id = TraceID{}
		return nil
	}
	decoded, err := hex.DecodeString(string(data))
	if err != nil {
		return fmt.Errorf("invalid TraceID hex: %w", err)
	}
	if len(decoded) != len(id) {
		return fmt.Errorf("invalid TraceID: expected %d bytes, got %d", len(id), len(decoded))
	}
	copy(id[:], decoded)
	return nil
}

func (id TraceID) MarshalCBOR() ([]byte, error) {
	return codec.Marshal(id[:])
}

func (id *TraceID) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := codec.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid TraceID CBOR: %w", err)
	}
	if len(raw) == 0 {
		*id = TraceID{}
		return nil
	}
	if len(raw) != len(id) {
		return fmt.Errorf("invalid TraceID: expected %d bytes, got %d", len(id), len(raw))
	}
	copy(id[:], raw)
	return nil
}

// IsZero reports whether the id is unset.
func (id TraceID) IsZero() bool { return id == TraceID{} }

func (id TraceID) String() string { return hex.EncodeToString(id[:]) }

// SpanID is an 8-byte span identifier, unique within a trace.
type SpanID [8]byte

// NewSpanID returns a random SpanID.
func NewSpanID() SpanID {
	var id SpanID
	_, _ = rand.Read(id[:])
	return id
}

// ParseSpanID parses a 16-character hex string.
func ParseSpanID(text string) (SpanID, error) {
	var id SpanID
	err := id.UnmarshalText([]byte(text))
	return id, err
}

func (id SpanID) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(id[:])), nil
}

func (id *SpanID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*id = SpanID{}
		return nil
	}
	decoded, err := hex.DecodeString(string(data))
	if err != nil {
		return fmt.Errorf("invalid SpanID hex: %w", err)
	}
	if len(decoded) != len(id) {
		return fmt.Errorf("invalid SpanID: expected %d bytes, got %d", len(id), len(decoded))
	}
	copy(id[:], decoded)
	return nil
}

func (id SpanID) MarshalCBOR() ([]byte, error) {
	return codec.Marshal(id[:])
}

func (id *SpanID) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := codec.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid SpanID CBOR: %w", err)
	}
	if len(raw) == 0 {
		*id = SpanID{}
		return nil
	}
	if len(raw) != len(id) {
		return fmt.Errorf("invalid SpanID: expected %d bytes, got %d", len(id), len(raw))
	}
	copy(id[:], raw)
	return nil
}

// IsZero reports whether the id is unset.
func (id SpanID) IsZero() bool { return id == SpanID{} }

func (id SpanID) String() string { return hex.EncodeToString(id[:]) }
