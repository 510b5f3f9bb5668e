// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package record

// SpanStatus is the outcome of a span's operation.
type SpanStatus uint8

const (
	SpanStatusUnset SpanStatus = 0
	SpanStatusOK    SpanStatus = 1
	SpanStatusError SpanStatus = 2
)

// Span is a timed unit of work within a trace.
type Span struct {
	TraceID TraceID `json:"trace_id"`
	SpanID  SpanID  `json:"span_id"`

	// ParentSpanID is zero for root spans.
	ParentSpanID SpanID `json:"parent_span_id,omitempty"`

	// Name follows a dotted convention: "http.client", "db.query".
	Name string `json:"name"`

	// StartTime is Unix nanoseconds; Duration is nanoseconds.
	StartTime int64 `json:"start_time"`
	Duration  int64 `json:"duration"`

	Status SpanStatus `json:"status"`

	// StatusMessage describes the failure when Status is
	// SpanStatusError.
	StatusMessage string `json:"status_message,omitempty"`

	Attributes map[string]any `json:"attributes,omitempty"`
	Events     []SpanEvent    `json:"events,omitempty"`
}

func (*Span) RecordKind() Kind { return KindSpan }

// SpanEvent is a timestamped annotation inside a span.
type SpanEvent struct {
	Name       string         `json:"name"`
	Timestamp  int64          `json:"timestamp"`
	Attributes map[string]any `json:"attributes,omitempty"`
}
