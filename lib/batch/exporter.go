// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package batch

import (
	"context"

	"github.com/bureau-foundation/beacon/lib/record"
)

// Exporter sends one batch of records to a sink. Export must honor ctx
// cancellation: the processor cancels it when the export timeout
// expires, and the next export waits until a cancelled one returns.
// The records slice belongs to the exporter only for the duration of
// the call.
type Exporter interface {
	Export(ctx context.Context, records []*record.Record) error
}

// ShutdownExporter is an Exporter with resources to release. The
// processor calls Shutdown once, after its final flush.
type ShutdownExporter interface {
	Exporter
	Shutdown(ctx context.Context) error
}

// ExporterFunc adapts a function to Exporter.
type ExporterFunc func(ctx context.Context, records []*record.Record) error

func (f ExporterFunc) Export(ctx context.Context, records []*record.Record) error {
	return f(ctx, records)
}
