// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package record

// LogEntry is a structured log line with optional trace correlation.
type LogEntry struct {
	Severity Severity `json:"severity"`
	Body     string   `json:"body"`

	// TraceID and SpanID link the entry to the span that was active
	// when it was written. Zero when uncorrelated.
	TraceID TraceID `json:"trace_id,omitempty"`
	SpanID  SpanID  `json:"span_id,omitempty"`

	Attributes map[string]any `json:"attributes,omitempty"`
}

func (*LogEntry) RecordKind() Kind { return KindLog }
