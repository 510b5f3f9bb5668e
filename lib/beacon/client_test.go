// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package beacon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/bureau-foundation/beacon/lib/clock"
	"github.com/bureau-foundation/beacon/lib/config"
	"github.com/bureau-foundation/beacon/lib/instrument"
	"github.com/bureau-foundation/beacon/lib/record"
	"github.com/bureau-foundation/beacon/lib/replay"
	"github.com/bureau-foundation/beacon/lib/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

// memoryExporter keeps every exported record, grouped by kind.
type memoryExporter struct {
	mu        sync.Mutex
	records   map[record.Kind][]*record.Record
	shutdowns atomic.Int32

	// exported receives a signal after every Export.
	exported chan struct{}
}

func (e *memoryExporter) Export(_ context.Context, records []*record.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.records == nil {
		e.records = make(map[record.Kind][]*record.Record)
	}
	for _, r := range records {
		e.records[r.Kind()] = append(e.records[r.Kind()], r)
	}
	select {
	case e.exported <- struct{}{}:
	default:
	}
	return nil
}

func (e *memoryExporter) Shutdown(context.Context) error {
	e.shutdowns.Add(1)
	return nil
}

func (e *memoryExporter) kind(kind record.Kind) []*record.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*record.Record(nil), e.records[kind]...)
}

func (e *memoryExporter) logs(t *testing.T) []*record.LogEntry {
	t.Helper()
	var entries []*record.LogEntry
	for _, r := range e.kind(record.KindLog) {
		entry, ok := r.Payload.(*record.LogEntry)
		if !ok {
			t.Fatalf("log record payload = %T", r.Payload)
		}
		entries = append(entries, entry)
	}
	return entries
}

func newTestClient(t *testing.T, configure func(*Config)) (*Client, *memoryExporter, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(epoch)
	exporter := &memoryExporter{exported: make(chan struct{}, 64)}
	logger, _ := testutil.CaptureLogger()
	config := Config{
		Service:  "checkout",
		Exporter: exporter,
		Clock:    fake,
		Logger:   logger,
	}
	if configure != nil {
		configure(&config)
	}
	client, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { client.Shutdown(context.Background()) })
	return client, exporter, fake
}

func flush(t *testing.T, client *Client) {
	t.Helper()
	if err := client.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush: %v", err)
	}
}

func TestPostRecordUsesClockAndSeverity(t *testing.T) {
	client, exporter, _ := newTestClient(t, nil)

	client.PostRecord("warning", "inventory low", map[string]any{"sku": "A-1"})
	flush(t, client)

	records := exporter.kind(record.KindLog)
	if len(records) != 1 {
		t.Fatalf("exported %d log records, want 1", len(records))
	}
	if records[0].Timestamp != epoch.UnixNano() {
		t.Fatalf("timestamp = %d, want the clock's %d", records[0].Timestamp, epoch.UnixNano())
	}
	entry := records[0].Payload.(*record.LogEntry)
	if entry.Severity != record.SeverityWarn || entry.Body != "inventory low" {
		t.Fatalf("entry = %v %q", entry.Severity, entry.Body)
	}
	if diff := cmp.Diff(map[string]any{"sku": "A-1"}, entry.Attributes); diff != "" {
		t.Fatalf("attributes mismatch (-want +got):\n%s", diff)
	}
}

func TestPostRecordTimestampAttribute(t *testing.T) {
	explicit := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)
	cases := []struct {
		name  string
		value any
		want  int64
	}{
		{"time", explicit, explicit.UnixNano()},
		{"nanos", explicit.UnixNano(), explicit.UnixNano()},
		{"rfc3339", explicit.Format(time.RFC3339), explicit.UnixNano()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, exporter, _ := newTestClient(t, nil)
			client.PostRecord("info", "replayed", map[string]any{TimestampKey: tc.value})
			flush(t, client)

			records := exporter.kind(record.KindLog)
			if len(records) != 1 || records[0].Timestamp != tc.want {
				t.Fatalf("records = %d, timestamp %d, want %d", len(records), records[0].Timestamp, tc.want)
			}
			if _, kept := records[0].Payload.(*record.LogEntry).Attributes[TimestampKey]; kept {
				t.Fatal("timestamp attribute was not consumed")
			}
		})
	}

	t.Run("unparseable", func(t *testing.T) {
		client, exporter, _ := newTestClient(t, nil)
		client.PostRecord("info", "odd", map[string]any{TimestampKey: "yesterday"})
		flush(t, client)

		records := exporter.kind(record.KindLog)
		if records[0].Timestamp != epoch.UnixNano() {
			t.Fatalf("timestamp = %d, want the clock", records[0].Timestamp)
		}
		if records[0].Payload.(*record.LogEntry).Attributes[TimestampKey] != "yesterday" {
			t.Fatal("an unparseable timestamp attribute should be kept as an attribute")
		}
	})
}

func TestPostRecordMergesTraceAttributes(t *testing.T) {
	client, exporter, _ := newTestClient(t, nil)
	traceID := record.NewTraceID().String()

	client.SetTraceAttributes(traceID, map[string]any{"user": "u-17", "plan": "pro"})
	client.PostRecord("error", "charge failed", map[string]any{TraceIDKey: traceID, "plan": "trial"})
	client.PostRecord("info", "unrelated", map[string]any{TraceIDKey: "other"})
	flush(t, client)

	entries := exporter.logs(t)
	if len(entries) != 2 {
		t.Fatalf("exported %d entries, want 2", len(entries))
	}
	want := map[string]any{TraceIDKey: traceID, "user": "u-17", "plan": "trial"}
	if diff := cmp.Diff(want, entries[0].Attributes); diff != "" {
		t.Fatalf("attributes mismatch (-want +got):\n%s", diff)
	}
	if entries[0].TraceID.String() != traceID {
		t.Fatalf("entry trace ID = %s, want %s", entries[0].TraceID, traceID)
	}
	if !entries[1].TraceID.IsZero() || len(entries[1].Attributes) != 1 {
		t.Fatalf("unknown trace picked up attributes: %+v", entries[1])
	}
}

func TestPostRecordDoesNotModifyCallerAttributes(t *testing.T) {
	client, _, _ := newTestClient(t, nil)
	traceID := record.NewTraceID().String()
	client.SetTraceAttributes(traceID, map[string]any{"user": "u-1"})

	attributes := map[string]any{TraceIDKey: traceID, TimestampKey: epoch}
	client.PostRecord("info", "x", attributes)
	if len(attributes) != 2 {
		t.Fatalf("caller's map changed: %v", attributes)
	}
}

func TestRecordSpan(t *testing.T) {
	client, exporter, _ := newTestClient(t, nil)
	traceID := record.NewTraceID()
	client.SetTraceAttributes(traceID.String(), map[string]any{"tenant": "acme"})

	client.RecordSpan(record.Span{
		TraceID:    traceID,
		SpanID:     record.NewSpanID(),
		Name:       "db.query",
		StartTime:  epoch.Add(-time.Second).UnixNano(),
		Duration:   int64(20 * time.Millisecond),
		Attributes: map[string]any{"db.table": "orders"},
	})
	flush(t, client)

	records := exporter.kind(record.KindSpan)
	if len(records) != 1 {
		t.Fatalf("exported %d spans, want 1", len(records))
	}
	if records[0].Timestamp != epoch.Add(-time.Second).UnixNano() {
		t.Fatalf("span record timestamp = %d, want the span start", records[0].Timestamp)
	}
	span := records[0].Payload.(*record.Span)
	if diff := cmp.Diff(map[string]any{"tenant": "acme", "db.table": "orders"}, span.Attributes); diff != "" {
		t.Fatalf("span attributes mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordReplayThrottlesAndResyncs(t *testing.T) {
	root := replay.Node{ID: 1, Type: replay.NodeDocument, Children: []replay.Node{
		{ID: 2, Type: replay.NodeElement, Tag: "body"},
	}}
	var snapshots atomic.Int32
	client, exporter, fake := newTestClient(t, func(config *Config) {
		config.Throttle.Capacity = 2
		config.Throttle.RefillRate = 1
		config.ResyncDelay = time.Second
		config.Snapshotter = replay.SnapshotterFunc(func() (replay.Node, error) {
			snapshots.Add(1)
			return root, nil
		})
	})

	if !client.RecordReplay(&replay.FullSnapshot{Root: root}) {
		t.Fatal("full snapshot was not queued")
	}
	mutate := func() bool {
		return client.RecordReplay(&replay.Mutation{Batch: replay.MutationBatch{
			Attributes: []replay.AttributeChange{{ID: 2, Set: map[string]string{"class": "busy"}}},
		}})
	}
	if !mutate() || !mutate() {
		t.Fatal("mutations within capacity were not queued")
	}
	if mutate() {
		t.Fatal("mutation over capacity was queued")
	}

	fake.Advance(time.Second)
	if snapshots.Load() != 1 {
		t.Fatalf("snapshotter called %d times, want 1", snapshots.Load())
	}
	flush(t, client)

	var kinds []replay.EventKind
	for _, r := range exporter.kind(record.KindReplay) {
		event, err := replay.FromPayload(r.Payload)
		if err != nil {
			t.Fatalf("FromPayload: %v", err)
		}
		kinds = append(kinds, event.Kind())
	}
	want := []replay.EventKind{replay.EventFullSnapshot, replay.EventMutation, replay.EventMutation, replay.EventFullSnapshot}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("replay events mismatch (-want +got):\n%s", diff)
	}
}

func TestReplayPipelineFlushesBeforeLogs(t *testing.T) {
	client, exporter, fake := newTestClient(t, nil)
	client.PostRecord("info", "waits for the five second flush", nil)
	if !client.RecordReplay(&replay.Meta{Href: "https://shop.example/"}) {
		t.Fatal("meta event was not queued")
	}

	fake.Advance(DefaultReplayScheduledDelay)
	testutil.RequireReceive(t, exporter.exported, testutil.DefaultTimeout, "replay flush")
	if got := len(exporter.kind(record.KindReplay)); got != 1 {
		t.Fatalf("replay records exported = %d, want 1", got)
	}
	if got := len(exporter.kind(record.KindLog)); got != 0 {
		t.Fatalf("log records exported after %v = %d, want 0", DefaultReplayScheduledDelay, got)
	}
}

func TestShutdownIsIdempotentAndStopsIntake(t *testing.T) {
	client, exporter, _ := newTestClient(t, nil)
	client.PostRecord("info", "before", nil)

	for i := 0; i < 2; i++ {
		if err := client.Shutdown(context.Background()); err != nil {
			t.Fatalf("Shutdown %d: %v", i, err)
		}
	}
	if exporter.shutdowns.Load() != 1 {
		t.Fatalf("exporter shut down %d times, want 1", exporter.shutdowns.Load())
	}
	if len(exporter.kind(record.KindLog)) != 1 {
		t.Fatal("Shutdown did not drain the queued record")
	}

	client.PostRecord("info", "after", nil)
	client.RecordSpan(record.Span{Name: "late"})
	if client.RecordReplay(&replay.Meta{Href: "/"}) {
		t.Fatal("replay event queued after Shutdown")
	}
	if err := client.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush after Shutdown: %v", err)
	}
	if len(exporter.kind(record.KindLog)) != 1 || len(exporter.kind(record.KindSpan)) != 0 {
		t.Fatal("records were exported after Shutdown")
	}
}

func TestNilClientIsInert(t *testing.T) {
	var client *Client
	client.PostRecord("info", "x", map[string]any{"a": 1})
	client.RecordSpan(record.Span{})
	client.SetTraceAttributes("t", map[string]any{"a": 1})
	if client.RecordReplay(&replay.Meta{}) {
		t.Fatal("nil client queued a replay event")
	}
	slog.New(client.Handler()).Info("ignored")
	if err := client.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush: %v", err)
	}
	if err := client.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if client.SessionID() != "" {
		t.Fatal("nil client has a session ID")
	}
}

func TestRecordReplayIgnoresTypedNilEvents(t *testing.T) {
	client, _, _ := newTestClient(t, nil)
	if client.RecordReplay((*replay.Mutation)(nil)) {
		t.Fatal("typed-nil mutation was queued")
	}
	if client.RecordReplay((*replay.FullSnapshot)(nil)) {
		t.Fatal("typed-nil snapshot was queued")
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{Clock: clock.Fake(epoch)}); err == nil {
		t.Fatal("New accepted a config without an exporter")
	}
	if _, err := New(Config{Exporter: &memoryExporter{}}); err == nil {
		t.Fatal("New accepted a config without a clock")
	}
	_, err := New(Config{
		Exporter: &memoryExporter{},
		Clock:    clock.Fake(epoch),
		Spans:    Pipeline{ScheduledDelay: -time.Second},
	})
	if err == nil {
		t.Fatal("New accepted a negative scheduled delay")
	}
}

func TestNewAssignsSessionID(t *testing.T) {
	client, _, _ := newTestClient(t, nil)
	if len(client.SessionID()) != 36 {
		t.Fatalf("SessionID = %q, want a UUID", client.SessionID())
	}
	supplied, _, _ := newTestClient(t, func(config *Config) { config.SessionID = "fixed" })
	if supplied.SessionID() != "fixed" {
		t.Fatalf("SessionID = %q, want the configured one", supplied.SessionID())
	}
}

type failingInstrumentation struct{}

func (failingInstrumentation) Name() string   { return "failing" }
func (failingInstrumentation) Enable() error  { return errors.New("no hook point") }
func (failingInstrumentation) Disable() error { return nil }

func TestNewFailsWhenInstrumentationFails(t *testing.T) {
	before := slog.Default()
	_, err := New(Config{
		Exporter:         &memoryExporter{},
		Clock:            clock.Fake(epoch),
		CaptureSlog:      true,
		Instrumentations: []instrument.Instrumentation{failingInstrumentation{}},
	})
	if err == nil {
		t.Fatal("New succeeded with an instrumentation that cannot enable")
	}
	if slog.Default() != before {
		t.Fatal("slog capture was left installed after New failed")
	}
}

func TestCaptureSlog(t *testing.T) {
	before := slog.Default()
	client, exporter, _ := newTestClient(t, func(config *Config) {
		config.CaptureSlog = true
	})

	slog.Warn("captured through the default logger", "attempt", 2)
	flush(t, client)
	if err := client.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if slog.Default() != before {
		t.Fatal("Shutdown did not restore the default logger")
	}

	entries := exporter.logs(t)
	if len(entries) != 1 {
		t.Fatalf("captured %d entries, want 1", len(entries))
	}
	if entries[0].Body != "captured through the default logger" || entries[0].Severity != record.SeverityWarn {
		t.Fatalf("entry = %v %q", entries[0].Severity, entries[0].Body)
	}
	if entries[0].Attributes["attempt"] != int64(2) {
		t.Fatalf("attempt attribute = %#v", entries[0].Attributes["attempt"])
	}
}

func TestInstrumentHTTPClientRecordsSpans(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("traceparent") == "" {
			t.Error("request carried no traceparent")
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	httpClient := &http.Client{Transport: &http.Transport{}}
	defer httpClient.CloseIdleConnections()
	client, exporter, _ := newTestClient(t, func(config *Config) {
		config.InstrumentHTTPClients = []*http.Client{httpClient}
	})

	response, err := httpClient.Get(server.URL + "/inventory")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	response.Body.Close()
	flush(t, client)

	spans := exporter.kind(record.KindSpan)
	if len(spans) != 1 {
		t.Fatalf("exported %d spans, want 1", len(spans))
	}
	span := spans[0].Payload.(*record.Span)
	if span.Name != "http.client" || span.Attributes["http.status_code"] != http.StatusNoContent {
		t.Fatalf("span = %q %v", span.Name, span.Attributes)
	}

	if err := client.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, wrapped := httpClient.Transport.(*http.Transport); !wrapped {
		t.Fatalf("transport after Shutdown = %T, want the original", httpClient.Transport)
	}
}

func TestConfigFrom(t *testing.T) {
	file := config.Default()
	file.Service = "worker"
	file.Logs.MaxExportBatchSize = 64
	file.Throttle.BucketCapacity = 7

	cfg := ConfigFrom(file)
	if cfg.Service != "worker" || cfg.Logs.MaxExportBatchSize != 64 || cfg.Throttle.Capacity != 7 {
		t.Fatalf("ConfigFrom = %+v", cfg)
	}
	if cfg.Replay.ScheduledDelay != 2*time.Second {
		t.Fatalf("replay scheduled delay = %v, want 2s", cfg.Replay.ScheduledDelay)
	}
	if cfg.TraceAttributes.TTL != 10*time.Minute {
		t.Fatalf("trace TTL = %v", cfg.TraceAttributes.TTL)
	}
}
