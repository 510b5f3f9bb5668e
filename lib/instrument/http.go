// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package instrument

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/bureau-foundation/beacon/lib/clock"
	"github.com/bureau-foundation/beacon/lib/record"
)

// SpanRecorder receives finished spans.
type SpanRecorder interface {
	RecordSpan(span record.Span)
}

// traceparentHeader carries W3C trace context.
const traceparentHeader = "traceparent"

// HTTPClientOptions configures the HTTPClient instrumentation.
type HTTPClientOptions struct {
	// Skip excludes requests from tracing, for example the exporter's
	// own requests when it shares the instrumented client.
	Skip func(*http.Request) bool

	Clock clock.Clock
}

// HTTPClient wraps an *http.Client's Transport so each request records
// an "http.client" span and carries a traceparent header. A request
// that already has a valid traceparent continues that trace.
type HTTPClient struct {
	client   *http.Client
	recorder SpanRecorder
	options  HTTPClientOptions

	mu      sync.Mutex
	enabled bool
	prior   http.RoundTripper
}

// NewHTTPClient returns a disabled instrumentation for client. A nil
// clock uses the real one.
func NewHTTPClient(client *http.Client, recorder SpanRecorder, options HTTPClientOptions) *HTTPClient {
	options.Clock = clock.OrReal(options.Clock)
	return &HTTPClient{client: client, recorder: recorder, options: options}
}

func (h *HTTPClient) Name() string { return "http.client" }

// Enable wraps the client's transport.
func (h *HTTPClient) Enable() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.enabled {
		return ErrAlreadyEnabled
	}
	h.prior = h.client.Transport
	base := h.prior
	if base == nil {
		base = http.DefaultTransport
	}
	h.client.Transport = &tracingTransport{
		base:     base,
		recorder: h.recorder,
		skip:     h.options.Skip,
		clock:    h.options.Clock,
	}
	h.enabled = true
	return nil
}

// Disable puts back the transport Enable found, including nil.
func (h *HTTPClient) Disable() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.enabled {
		return ErrNotEnabled
	}
	h.client.Transport = h.prior
	h.prior = nil
	h.enabled = false
	return nil
}

type tracingTransport struct {
	base     http.RoundTripper
	recorder SpanRecorder
	skip     func(*http.Request) bool
	clock    clock.Clock
}

func (t *tracingTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	if t.skip != nil && t.skip(request) {
		return t.base.RoundTrip(request)
	}

	span := record.Span{
		TraceID: record.NewTraceID(),
		SpanID:  record.NewSpanID(),
		Name:    "http.client",
	}
	if traceID, parentID, ok := parseTraceparent(request.Header.Get(traceparentHeader)); ok {
		span.TraceID, span.ParentSpanID = traceID, parentID
	}

	// RoundTrippers must not modify the caller's request.
	outgoing := request.Clone(request.Context())
	outgoing.Header.Set(traceparentHeader, fmt.Sprintf("00-%s-%s-01", span.TraceID, span.SpanID))

	start := t.clock.Now()
	response, err := t.base.RoundTrip(outgoing)
	span.StartTime = start.UnixNano()
	span.Duration = int64(t.clock.Now().Sub(start))

	span.Attributes = map[string]any{
		"http.method": request.Method,
		"http.url":    request.URL.Redacted(),
	}
	switch {
	case err != nil:
		span.Status = record.SpanStatusError
		span.StatusMessage = err.Error()
	case response.StatusCode >= 500:
		span.Attributes["http.status_code"] = response.StatusCode
		span.Status = record.SpanStatusError
		span.StatusMessage = response.Status
	default:
		span.Attributes["http.status_code"] = response.StatusCode
		span.Status = record.SpanStatusOK
	}
	t.recorder.RecordSpan(span)
	return response, err
}

// parseTraceparent parses "00-<trace id>-<span id>-<flags>".
func parseTraceparent(value string) (record.TraceID, record.SpanID, bool) {
	parts := strings.Split(value, "-")
	if len(parts) != 4 || parts[0] != "00" || len(parts[3]) != 2 {
		return record.TraceID{}, record.SpanID{}, false
	}
	traceID, err := record.ParseTraceID(parts[1])
	if err != nil || traceID.IsZero() {
		return record.TraceID{}, record.SpanID{}, false
	}
	spanID, err := record.ParseSpanID(parts[2])
	if err != nil || spanID.IsZero() {
		return record.TraceID{}, record.SpanID{}, false
	}
	return traceID, spanID, true
}
