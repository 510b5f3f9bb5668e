// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bureau-foundation/beacon/lib/codec"
)

func TestRecordLogRoundtrip(t *testing.T) {
	original := New(1_700_000_000_000_000_000, &LogEntry{
		Severity:   SeverityWarn,
		Body:       "disk nearly full",
		TraceID:    TraceID{1, 2, 3},
		SpanID:     SpanID{4, 5},
		Attributes: map[string]any{"mount": "/var"},
	})

	data, err := codec.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Record
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Timestamp != original.Timestamp {
		t.Fatalf("timestamp = %d, want %d", decoded.Timestamp, original.Timestamp)
	}
	entry, ok := decoded.Payload.(*LogEntry)
	if !ok {
		t.Fatalf("payload decoded as %T", decoded.Payload)
	}
	if diff := cmp.Diff(original.Payload, entry); diff != "" {
		t.Fatalf("log entry mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordSpanRoundtrip(t *testing.T) {
	original := New(42, &Span{
		TraceID:   NewTraceID(),
		SpanID:    NewSpanID(),
		Name:      "http.client",
		StartTime: 40,
		Duration:  2,
		Status:    SpanStatusError,
		Events:    []SpanEvent{{Name: "retry", Timestamp: 41}},
	})

	data, err := codec.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Record
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Kind() != KindSpan {
		t.Fatalf("kind = %s, want span", decoded.Kind())
	}
	if diff := cmp.Diff(original.Payload, decoded.Payload); diff != "" {
		t.Fatalf("span mismatch (-want +got):\n%s", diff)
	}
}

type customPayload struct {
	Value string `cbor:"value"`
}

func (*customPayload) RecordKind() Kind { return KindReplay }

func TestRecordUnknownKindDecodesOpaque(t *testing.T) {
	original := New(7, &customPayload{Value: "frame"})
	data, err := codec.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Record
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	opaque, ok := decoded.Payload.(*Opaque)
	if !ok {
		t.Fatalf("payload decoded as %T, want *Opaque", decoded.Payload)
	}
	if opaque.Kind != KindReplay {
		t.Fatalf("opaque kind = %s", opaque.Kind)
	}
	var inner customPayload
	if err := codec.Unmarshal(opaque.Raw, &inner); err != nil {
		t.Fatalf("decoding opaque payload: %v", err)
	}
	if inner.Value != "frame" {
		t.Fatalf("inner value = %q", inner.Value)
	}

	// Re-encoding an opaque record reproduces the original bytes.
	again, err := codec.Marshal(&decoded)
	if err != nil {
		t.Fatalf("re-Marshal: %v", err)
	}
	if !bytes.Equal(again, data) {
		t.Fatal("opaque record did not re-encode identically")
	}
}

func TestRecordSizeIsCached(t *testing.T) {
	entry := &LogEntry{Severity: SeverityInfo, Body: "first"}
	r := New(1, entry)

	size := r.SizeBytes()
	if size == 0 {
		t.Fatal("SizeBytes returned 0 for an encodable record")
	}
	data, _ := codec.Marshal(r)
	if size != len(data) {
		t.Fatalf("SizeBytes = %d, encoded length = %d", size, len(data))
	}

	// The size is measured once; later mutation (which callers must
	// not do) does not change the cached value.
	entry.Body = "a considerably longer body than before"
	if r.SizeBytes() != size {
		t.Fatal("SizeBytes was recomputed")
	}
}

func TestRecordUnencodableReportsError(t *testing.T) {
	r := New(1, &LogEntry{Attributes: map[string]any{"callback": func() {}}})
	if _, err := r.Size(); err == nil {
		t.Fatal("expected an encoding error for a func attribute")
	}
	if r.SizeBytes() != 0 {
		t.Fatalf("SizeBytes = %d for unencodable record", r.SizeBytes())
	}
}

func TestBatchRoundtrip(t *testing.T) {
	batch := Batch{
		Service:   "checkout",
		SessionID: "session-1",
		Sequence:  3,
		Records: []*Record{
			New(1, &LogEntry{Body: "one"}),
			New(2, &LogEntry{Body: "two"}),
		},
	}
	data, err := codec.Marshal(batch)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Batch
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Sequence != 3 || len(decoded.Records) != 2 {
		t.Fatalf("decoded batch = %+v", decoded)
	}
	if body := decoded.Records[1].Payload.(*LogEntry).Body; body != "two" {
		t.Fatalf("second record body = %q", body)
	}
}

func TestTraceIDText(t *testing.T) {
	id := NewTraceID()
	parsed, err := ParseTraceID(id.String())
	if err != nil {
		t.Fatalf("ParseTraceID: %v", err)
	}
	if parsed != id {
		t.Fatalf("parsed %s, want %s", parsed, id)
	}
	if _, err := ParseTraceID("abcd"); err == nil {
		t.Fatal("expected error for short trace id")
	}
	if _, err := ParseSpanID("zz"); err == nil {
		t.Fatal("expected error for non-hex span id")
	}
}
