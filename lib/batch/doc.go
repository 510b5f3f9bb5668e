// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package batch moves buffered telemetry records to an [Exporter] in
// bounded batches.
//
// A [Processor] owns a lib/buffer Buffer and a background goroutine.
// Records are exported when the scheduled delay elapses or as soon as
// a push fills a whole batch, whichever comes first. Exports run one
// at a time, each bounded by an export timeout measured on the
// injected clock. A batch whose export fails, times out, or panics is
// dropped rather than requeued: the producer must never be slowed by a
// struggling collector.
//
// The lifecycle is explicit. [Processor.ForceFlush] exports everything
// buffered and returns when done. [Processor.Shutdown] stops the timer
// and the loop, runs a final flush, shuts down the exporter if it
// implements [ShutdownExporter], and leaves the processor Stopped;
// later pushes are ignored.
//
// Counters for queued, dropped, exported, and failed records are
// Prometheus collectors, registered when a Registerer is configured.
package batch
