// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package beacon is the producer-facing Beacon client. A [Client] owns
// one batch pipeline per record kind (logs, spans, replay), the replay
// [replay.Recorder] that throttles mutation events, the trace
// attribute store, and any enabled instrumentations.
//
// Every Client method is safe to call on a nil *Client and does
// nothing. Telemetry problems never reach the caller: queue overflow,
// export failures, and unencodable attributes are counted and logged
// by the pipeline, not returned. ForceFlush and Shutdown return only
// their context's error or an exporter's shutdown error.
//
//	client, err := beacon.New(beacon.Config{
//		Service:  "checkout",
//		Exporter: httpExporter,
//		Clock:    clock.Real(),
//	})
//	...
//	defer client.Shutdown(ctx)
//	client.PostRecord("warn", "cart total mismatch", map[string]any{"trace_id": traceID})
package beacon
