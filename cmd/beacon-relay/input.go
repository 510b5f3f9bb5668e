// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/bureau-foundation/beacon/lib/record"
)

// maxLineBytes bounds one input line.
const maxLineBytes = 4 << 20

// inputLine is one JSON line on stdin.
type inputLine struct {
	Kind       string         `json:"kind"`
	Level      string         `json:"level"`
	Body       string         `json:"body"`
	Attributes map[string]any `json:"attributes"`
	Span       *record.Span   `json:"span"`
}

// producer is the part of beacon.Client the relay feeds.
type producer interface {
	PostRecord(level, body string, attributes map[string]any)
	RecordSpan(span record.Span)
}

type relayStats struct {
	records int
	skipped int
}

// relay reads lines from input until EOF or ctx ends.
func relay(ctx context.Context, input io.Reader, client producer, logger *slog.Logger) (relayStats, error) {
	var stats relayStats
	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(input)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := bytes.Clone(scanner.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return stats, nil
		case line, ok := <-lines:
			if !ok {
				return stats, <-scanErr
			}
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			if err := submit(line, client); err != nil {
				stats.skipped++
				logger.Warn("skipping input line", "error", err, "line", stats.records+stats.skipped)
				continue
			}
			stats.records++
		}
	}
}

// submit decodes one line and hands it to client.
func submit(line []byte, client producer) error {
	decoder := json.NewDecoder(bytes.NewReader(line))
	decoder.UseNumber()
	var input inputLine
	if err := decoder.Decode(&input); err != nil {
		return fmt.Errorf("decoding line: %w", err)
	}

	switch input.Kind {
	case "", "log":
		if input.Body == "" {
			return fmt.Errorf("log line has no body")
		}
		client.PostRecord(input.Level, input.Body, normalizeAttributes(input.Attributes))
	case "span":
		if input.Span == nil || input.Span.Name == "" {
			return fmt.Errorf("span line has no span name")
		}
		span := *input.Span
		span.Attributes = normalizeAttributes(span.Attributes)
		client.RecordSpan(span)
	default:
		return fmt.Errorf("unknown record kind %q", input.Kind)
	}
	return nil
}

// normalizeAttributes turns json.Number values into int64 or float64
// so integer attributes (a "timestamp" in nanoseconds) keep their
// precision.
func normalizeAttributes(attributes map[string]any) map[string]any {
	for key, value := range attributes {
		attributes[key] = normalizeValue(value)
	}
	return attributes
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case json.Number:
		if integer, err := typed.Int64(); err == nil {
			return integer
		}
		if float, err := typed.Float64(); err == nil {
			return float
		}
		return typed.String()
	case map[string]any:
		return normalizeAttributes(typed)
	case []any:
		for index, element := range typed {
			typed[index] = normalizeValue(element)
		}
		return typed
	default:
		return value
	}
}
