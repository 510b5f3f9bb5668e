// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Beacon-relay ships telemetry written by another program as JSON
// lines on stdin. Each line is one record:
//
//	{"level": "warn", "body": "cache miss", "attributes": {"trace_id": "..."}}
//	{"kind": "span", "span": {"trace_id": "...", "span_id": "...", "name": "db.query", ...}}
//
// A line without "kind" is a log record. Log lines go through the same
// producer API an embedded client uses, so "timestamp" and "trace_id"
// attributes behave the same way.
//
// Data flow:
//
//	stdin -> Client.PostRecord / RecordSpan -> batch pipelines -> exporter (HTTP or console)
//
// The relay exits at end of input or on SIGINT/SIGTERM, draining every
// pipeline within the shutdown grace period first. Lines that do not
// parse are logged and skipped.
package main
