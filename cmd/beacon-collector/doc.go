// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Beacon-collector receives the chunked batches Beacon's HTTP exporter
// sends and prints every record it decodes. It is the development
// counterpart of a production telemetry backend: point an instrumented
// program's exporter at it to see exactly what would be shipped.
//
// Endpoints:
//
//	POST /v1/chunks   chunk intake (see lib/collector)
//	GET  /metrics     Prometheus metrics for the collector and the Go runtime
//	GET  /healthz     liveness
//
// Records print as coloured lines on a terminal and as JSON lines
// otherwise (or always, with --json).
package main
