// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package beacon

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/bureau-foundation/beacon/lib/batch"
	"github.com/bureau-foundation/beacon/lib/config"
	"github.com/bureau-foundation/beacon/lib/exporter"
	"github.com/bureau-foundation/beacon/lib/ratelimit"
	"github.com/bureau-foundation/beacon/lib/traceattr"
)

// NewExporter builds the exporter cfg selects. console writes to
// consoleOutput.
func NewExporter(cfg *config.Config, sessionID string, consoleOutput io.Writer, logger *slog.Logger) (batch.Exporter, error) {
	switch cfg.Exporter.Kind {
	case config.ExporterConsole:
		return exporter.NewConsole(exporter.ConsoleConfig{Writer: consoleOutput}), nil
	case config.ExporterHTTP:
		algorithm, err := cfg.Exporter.Algorithm()
		if err != nil {
			return nil, fmt.Errorf("beacon: %w", err)
		}
		httpExporter, err := exporter.NewHTTP(exporter.HTTPConfig{
			Endpoint:     cfg.Exporter.Endpoint,
			Service:      cfg.Service,
			SessionID:    sessionID,
			MaxChunkSize: cfg.Exporter.MaxChunkSize,
			Compression:  algorithm,
			RetryMax:     cfg.Exporter.RetryMax,
			RetryWaitMin: cfg.Exporter.RetryWaitMin,
			RetryWaitMax: cfg.Exporter.RetryWaitMax,
			Headers:      cfg.Exporter.Headers,
			Logger:       logger,
		})
		if err != nil {
			return nil, fmt.Errorf("beacon: %w", err)
		}
		return httpExporter, nil
	default:
		return nil, fmt.Errorf("beacon: unknown exporter kind %q", cfg.Exporter.Kind)
	}
}

// ConfigFrom translates a loaded configuration file into a Config.
// The caller supplies the exporter, clock, and anything else the file
// cannot describe.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Service: cfg.Service,
		Logs:    pipelineFrom(cfg.Logs),
		Spans:   pipelineFrom(cfg.Spans),
		Replay:  pipelineFrom(cfg.Replay),
		Throttle: ratelimit.Config{
			Capacity:       cfg.Throttle.BucketCapacity,
			RefillRate:     cfg.Throttle.RefillRate,
			RefillInterval: cfg.Throttle.RefillInterval,
		},
		ResyncDelay: cfg.Throttle.ResyncDelay,
		TraceAttributes: traceattr.Config{
			MaxTraces:     cfg.TraceAttributes.MaxTraces,
			TTL:           cfg.TraceAttributes.TTL,
			SweepInterval: cfg.TraceAttributes.SweepInterval,
		},
	}
}

func pipelineFrom(section config.PipelineConfig) Pipeline {
	return Pipeline{
		MaxQueueSize:       section.MaxQueueSize,
		MaxExportBatchSize: section.MaxExportBatchSize,
		MaxQueueBytes:      section.MaxQueueBytes,
		ScheduledDelay:     section.ScheduledDelay,
		ExportTimeout:      section.ExportTimeout,
	}
}
