// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buffer

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/bureau-foundation/beacon/lib/record"
	"github.com/bureau-foundation/beacon/lib/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func logRecord(sequence int64, body string) *record.Record {
	return record.New(sequence, &record.LogEntry{Severity: record.SeverityInfo, Body: body})
}

func TestBufferFIFOOrdering(t *testing.T) {
	buffer := New(Config{MaxQueueSize: 16, MaxExportBatchSize: 4}, quietLogger())

	for i := int64(0); i < 10; i++ {
		if buffer.Push(logRecord(i, "entry")) {
			t.Fatalf("Push(%d) rejected", i)
		}
	}

	var drained []int64
	for !buffer.IsEmpty() {
		batch := buffer.Drain(4)
		if len(batch) > 4 {
			t.Fatalf("Drain(4) returned %d records", len(batch))
		}
		for _, r := range batch {
			drained = append(drained, r.Timestamp)
		}
	}
	for i, timestamp := range drained {
		if timestamp != int64(i) {
			t.Fatalf("drain order = %v, want 0..9", drained)
		}
	}
	if len(drained) != 10 {
		t.Fatalf("drained %d records, want 10", len(drained))
	}
	if buffer.Drain(4) != nil {
		t.Fatal("Drain on an empty buffer should return nil")
	}
}

func TestBufferRejectsNewestWhenFull(t *testing.T) {
	buffer := New(Config{MaxQueueSize: 3, MaxExportBatchSize: 1}, quietLogger())

	for i := int64(0); i < 3; i++ {
		buffer.Push(logRecord(i, "kept"))
	}
	if !buffer.Push(logRecord(3, "overflow")) {
		t.Fatal("push into a full buffer was accepted")
	}
	if buffer.Dropped() != 1 {
		t.Fatalf("Dropped = %d, want 1", buffer.Dropped())
	}

	batch := buffer.Drain(0)
	if len(batch) != 3 {
		t.Fatalf("buffer holds %d records, want 3", len(batch))
	}
	for i, r := range batch {
		if r.Timestamp != int64(i) {
			t.Fatalf("record %d has timestamp %d: older records were evicted", i, r.Timestamp)
		}
	}
	if buffer.Push(logRecord(4, "after drain")) {
		t.Fatal("push after draining was rejected")
	}
}

func TestBufferRejectsPastByteBound(t *testing.T) {
	first := logRecord(0, strings.Repeat("a", 100))
	bound := first.SizeBytes() + first.SizeBytes()/2

	buffer := New(Config{MaxQueueSize: 100, MaxQueueBytes: bound}, quietLogger())
	if buffer.Push(first) {
		t.Fatal("first record rejected")
	}
	if !buffer.Push(logRecord(1, strings.Repeat("b", 100))) {
		t.Fatal("record exceeding the byte bound was accepted")
	}
	if buffer.SizeBytes() != first.SizeBytes() {
		t.Fatalf("SizeBytes = %d, want %d", buffer.SizeBytes(), first.SizeBytes())
	}

	buffer.Drain(0)
	if buffer.SizeBytes() != 0 {
		t.Fatalf("SizeBytes after drain = %d, want 0", buffer.SizeBytes())
	}
}

func TestBufferClampsQueueSizeToBatchSize(t *testing.T) {
	logger, logs := testutil.CaptureLogger()
	buffer := New(Config{Name: "spans", MaxQueueSize: 10, MaxExportBatchSize: 50}, logger)

	if got := buffer.Config().MaxQueueSize; got != 50 {
		t.Fatalf("MaxQueueSize = %d, want 50", got)
	}
	if !strings.Contains(logs.String(), "max export batch size exceeds max queue size") {
		t.Fatalf("no configuration warning logged: %q", logs.String())
	}
	for i := int64(0); i < 50; i++ {
		if buffer.Push(logRecord(i, "x")) {
			t.Fatalf("push %d rejected below the raised bound", i)
		}
	}
}

func TestBufferDefaults(t *testing.T) {
	config := New(Config{}, quietLogger()).Config()
	if config.MaxQueueSize != DefaultMaxQueueSize || config.MaxExportBatchSize != DefaultMaxExportBatchSize {
		t.Fatalf("defaults = %+v", config)
	}
}

func TestBufferNotify(t *testing.T) {
	buffer := New(Config{}, quietLogger())
	buffer.Push(logRecord(0, "one"))
	buffer.Push(logRecord(1, "two"))

	testutil.RequireReceive(t, buffer.Notify(), testutil.DefaultTimeout, "notify after push")
	select {
	case <-buffer.Notify():
		t.Fatal("notify signals should coalesce")
	default:
	}
}

func TestBufferOverflowWarningIsRateLimited(t *testing.T) {
	logger, logs := testutil.CaptureLogger()
	buffer := New(Config{MaxQueueSize: 1, MaxExportBatchSize: 1}, logger)
	buffer.Push(logRecord(0, "kept"))
	for i := int64(1); i <= 20; i++ {
		buffer.Push(logRecord(i, "dropped"))
	}
	if got := logs.Count("telemetry buffer dropping records"); got != 1 {
		t.Fatalf("logged %d overflow warnings, want 1", got)
	}
	if buffer.Dropped() != 20 {
		t.Fatalf("Dropped = %d, want 20", buffer.Dropped())
	}
}
