// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/bureau-foundation/beacon/lib/record"
)

// ConsoleConfig configures a Console exporter.
type ConsoleConfig struct {
	// Writer defaults to os.Stdout.
	Writer io.Writer

	// Pretty forces a human-readable, coloured rendering. When false,
	// Pretty is still chosen if Writer is a terminal.
	Pretty bool

	// JSON forces JSON lines even on a terminal. Takes precedence over
	// Pretty.
	JSON bool
}

// Console writes records to a local stream. JSON lines by default;
// one coloured line per record on a terminal. Used for local
// development and by the collector's stdout sink.
type Console struct {
	mu     sync.Mutex
	writer io.Writer
	output *termenv.Output
	pretty bool
}

// NewConsole returns a console exporter.
func NewConsole(config ConsoleConfig) *Console {
	writer := config.Writer
	if writer == nil {
		writer = os.Stdout
	}
	pretty := config.Pretty
	if file, ok := writer.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		pretty = true
	}
	if config.JSON {
		pretty = false
	}

	console := &Console{writer: writer, pretty: pretty}
	if pretty {
		profile := termenv.Ascii
		if file, ok := writer.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
			profile = termenv.ANSI256
		}
		console.output = termenv.NewOutput(writer, termenv.WithProfile(profile))
	}
	return console
}

// consoleLine is the JSON form of one record.
type consoleLine struct {
	Timestamp string         `json:"timestamp"`
	Kind      string         `json:"kind"`
	Payload   record.Payload `json:"payload"`
}

// Export writes every record. A record that fails to render fails the
// export after the records before it have been written.
func (c *Console) Export(_ context.Context, records []*record.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		var line []byte
		if c.pretty {
			line = []byte(c.render(r))
		} else {
			encoded, err := json.Marshal(consoleLine{
				Timestamp: formatTimestamp(r.Timestamp),
				Kind:      r.Kind().String(),
				Payload:   r.Payload,
			})
			if err != nil {
				return fmt.Errorf("exporter: rendering %s record: %w", r.Kind(), err)
			}
			line = encoded
		}
		line = append(line, '\n')
		if _, err := c.writer.Write(line); err != nil {
			return fmt.Errorf("exporter: writing console record: %w", err)
		}
	}
	return nil
}

func (c *Console) render(r *record.Record) string {
	timestamp := c.output.String(formatTimestamp(r.Timestamp)).Faint().String()

	switch payload := r.Payload.(type) {
	case *record.LogEntry:
		level := c.output.String(fmt.Sprintf("%-5s", payload.Severity)).
			Foreground(c.output.Color(severityColor(payload.Severity))).Bold().String()
		line := timestamp + " " + level + " " + payload.Body
		if !payload.TraceID.IsZero() {
			line += " " + c.output.String("trace="+payload.TraceID.String()).Faint().String()
		}
		return line + formatAttributes(payload.Attributes)

	case *record.Span:
		status := "ok"
		color := "2"
		if payload.Status == record.SpanStatusError {
			status, color = "error", "1"
		}
		line := fmt.Sprintf("%s %s %s %s %s",
			timestamp,
			c.output.String("SPAN ").Foreground(c.output.Color("5")).Bold().String(),
			payload.Name,
			time.Duration(payload.Duration),
			c.output.String(status).Foreground(c.output.Color(color)).String(),
		)
		if payload.StatusMessage != "" {
			line += " " + payload.StatusMessage
		}
		return line + formatAttributes(payload.Attributes)

	default:
		label := strings.ToUpper(r.Kind().String())
		summary := fmt.Sprintf("%T", payload)
		if stringer, ok := payload.(fmt.Stringer); ok {
			summary = stringer.String()
		}
		return timestamp + " " + c.output.String(label).Foreground(c.output.Color("6")).String() + " " + summary
	}
}

func severityColor(severity record.Severity) string {
	switch {
	case severity >= record.SeverityError:
		return "1"
	case severity >= record.SeverityWarn:
		return "3"
	case severity >= record.SeverityInfo:
		return "4"
	default:
		return "8"
	}
}

func formatTimestamp(nanos int64) string {
	return time.Unix(0, nanos).UTC().Format(time.RFC3339Nano)
}

// formatAttributes renders attrs as sorted key=value pairs.
func formatAttributes(attrs map[string]any) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for key := range attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&builder, " %s=%v", key, attrs[key])
	}
	return builder.String()
}
