// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/beacon/lib/record"
)

var consoleEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestConsoleJSONLines(t *testing.T) {
	var output bytes.Buffer
	console := NewConsole(ConsoleConfig{Writer: &output})

	records := []*record.Record{
		record.New(consoleEpoch.UnixNano(), &record.LogEntry{
			Severity:   record.SeverityWarn,
			Body:       "disk nearly full",
			Attributes: map[string]any{"free_bytes": 1024},
		}),
		record.New(consoleEpoch.UnixNano(), &record.Span{Name: "db.query", Duration: int64(time.Millisecond)}),
	}
	if err := console.Export(context.Background(), records); err != nil {
		t.Fatalf("Export: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("wrote %d lines, want 2:\n%s", len(lines), output.String())
	}
	var first struct {
		Timestamp string `json:"timestamp"`
		Kind      string `json:"kind"`
		Payload   struct {
			Severity   int            `json:"severity"`
			Body       string         `json:"body"`
			Attributes map[string]any `json:"attributes"`
		} `json:"payload"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 0 is not JSON: %v", err)
	}
	if first.Kind != "log" || first.Payload.Body != "disk nearly full" || first.Payload.Severity != int(record.SeverityWarn) {
		t.Fatalf("line 0 = %+v", first)
	}
	if first.Timestamp != "2026-03-01T12:00:00Z" {
		t.Fatalf("timestamp = %q", first.Timestamp)
	}
	if !strings.Contains(lines[1], `"kind":"span"`) || !strings.Contains(lines[1], `"name":"db.query"`) {
		t.Fatalf("line 1 = %s", lines[1])
	}
}

func TestConsolePrettyWithoutTerminalHasNoEscapes(t *testing.T) {
	var output bytes.Buffer
	console := NewConsole(ConsoleConfig{Writer: &output, Pretty: true})

	records := []*record.Record{
		record.New(consoleEpoch.UnixNano(), &record.LogEntry{
			Severity:   record.SeverityError,
			Body:       "payment declined",
			Attributes: map[string]any{"b": 2, "a": 1},
		}),
		record.New(consoleEpoch.UnixNano(), &record.Span{
			Name:          "http.client",
			Duration:      int64(250 * time.Millisecond),
			Status:        record.SpanStatusError,
			StatusMessage: "timeout",
		}),
	}
	if err := console.Export(context.Background(), records); err != nil {
		t.Fatalf("Export: %v", err)
	}

	text := output.String()
	if strings.Contains(text, "\x1b[") {
		t.Fatalf("pretty output to a non-terminal contains escape sequences: %q", text)
	}
	for _, want := range []string{"ERROR", "payment declined", " a=1 b=2", "SPAN", "http.client", "250ms", "error timeout"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestConsoleJSONOverridesPretty(t *testing.T) {
	var output bytes.Buffer
	console := NewConsole(ConsoleConfig{Writer: &output, Pretty: true, JSON: true})
	if err := console.Export(context.Background(), logRecords(1, "x")); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !json.Valid(bytes.TrimSpace(output.Bytes())) {
		t.Fatalf("output is not JSON: %q", output.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestConsoleReportsWriteErrors(t *testing.T) {
	console := NewConsole(ConsoleConfig{Writer: failingWriter{}})
	if err := console.Export(context.Background(), logRecords(1, "x")); err == nil {
		t.Fatal("Export succeeded with a failing writer")
	}
}
