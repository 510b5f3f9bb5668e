// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bureau-foundation/beacon/lib/chunk"
	"github.com/bureau-foundation/beacon/lib/clock"
	"github.com/bureau-foundation/beacon/lib/codec"
	"github.com/bureau-foundation/beacon/lib/compress"
	"github.com/bureau-foundation/beacon/lib/exporter"
	"github.com/bureau-foundation/beacon/lib/record"
	"github.com/bureau-foundation/beacon/lib/replay"
)

const (
	// DefaultMaxChunkBytes is the largest chunk body accepted. It
	// leaves headroom over the exporter's default chunk size.
	DefaultMaxChunkBytes = 4 << 20

	// DefaultMaxSessions bounds the per-session sequence tracking.
	DefaultMaxSessions = 4096

	// ChunksPath is where the HTTP exporter POSTs chunks.
	ChunksPath = "/v1/chunks"
)

// Sink receives each decoded batch. An error makes the collector
// answer the final chunk with 500 and keep the reassembled payload, so
// the exporter's retry of that chunk delivers it again.
type Sink interface {
	Deliver(ctx context.Context, batch record.Batch) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, batch record.Batch) error

func (f SinkFunc) Deliver(ctx context.Context, batch record.Batch) error { return f(ctx, batch) }

// Config configures a Collector.
type Config struct {
	Sink Sink

	// MaxChunkBytes bounds one request body. Zero means
	// DefaultMaxChunkBytes.
	MaxChunkBytes int64

	// MaxPending and MaxAge bound in-flight reassembly; zero values
	// take the chunk package defaults.
	MaxPending int
	MaxAge     time.Duration

	// MaxChunks bounds the chunk count one payload may declare. Zero
	// takes chunk.DefaultMaxChunks.
	MaxChunks int

	MaxSessions int

	Clock      clock.Clock
	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

// Collector is an http.Handler for chunk POSTs.
type Collector struct {
	sink          Sink
	maxChunkBytes int64
	reassembler   *chunk.Reassembler
	sequences     *lru.Cache[string, uint64]
	logger        *slog.Logger
	metrics       *collectorMetrics
}

// New validates config and returns a Collector.
func New(config Config) (*Collector, error) {
	if config.Sink == nil {
		return nil, fmt.Errorf("collector: sink is required")
	}
	if config.Clock == nil {
		return nil, fmt.Errorf("collector: clock is required")
	}
	if config.MaxChunkBytes < 0 || config.MaxSessions < 0 {
		return nil, fmt.Errorf("collector: limits must not be negative")
	}
	if config.MaxChunkBytes == 0 {
		config.MaxChunkBytes = DefaultMaxChunkBytes
	}
	if config.MaxSessions == 0 {
		config.MaxSessions = DefaultMaxSessions
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	reassembler, err := chunk.NewReassembler(chunk.ReassemblerConfig{
		MaxPending: config.MaxPending,
		MaxAge:     config.MaxAge,
		MaxChunks:  config.MaxChunks,
		Clock:      config.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("collector: %w", err)
	}
	sequences, err := lru.New[string, uint64](config.MaxSessions)
	if err != nil {
		return nil, fmt.Errorf("collector: session cache: %w", err)
	}

	metrics := newCollectorMetrics()
	if config.Registerer != nil {
		if err := metrics.register(config.Registerer); err != nil {
			return nil, fmt.Errorf("collector: registering metrics: %w", err)
		}
	}

	return &Collector{
		sink:          config.Sink,
		maxChunkBytes: config.MaxChunkBytes,
		reassembler:   reassembler,
		sequences:     sequences,
		logger:        config.Logger,
		metrics:       metrics,
	}, nil
}

// Mux returns a ServeMux with the collector on ChunksPath, gatherer's
// metrics on /metrics, and a liveness probe on /healthz.
func (c *Collector) Mux(gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST "+ChunksPath, c)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// ServeHTTP accepts one chunk. It answers 202 for a chunk held for
// reassembly or a batch delivered, 4xx for a chunk that can never
// succeed, and 500 when the sink fails.
func (c *Collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	header, err := exporter.ParseChunkHeader(r.Header)
	if err != nil {
		c.reject(w, "header", http.StatusBadRequest, err)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, c.maxChunkBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.reject(w, "too_large", http.StatusRequestEntityTooLarge, err)
			return
		}
		c.reject(w, "read", http.StatusBadRequest, err)
		return
	}

	payload, complete, err := c.reassembler.Add(chunk.Fragment{
		PayloadID: header.PayloadID,
		Digest:    header.Digest,
		Chunk:     chunk.Chunk{Index: header.Index, Total: header.Total, Data: data},
	})
	if err != nil {
		reason := "invalid"
		if errors.Is(err, chunk.ErrDigestMismatch) {
			reason = "digest"
		}
		c.reject(w, reason, http.StatusBadRequest, err)
		return
	}
	c.metrics.chunks.Inc()
	if !complete {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	batch, err := decodeBatch(payload, header)
	if err != nil {
		c.reassembler.Done(header.PayloadID)
		c.reject(w, "decode", http.StatusUnprocessableEntity, err)
		return
	}
	c.checkSequence(batch)

	if err := c.sink.Deliver(r.Context(), batch); err != nil {
		c.reassembler.Retry(header.PayloadID)
		c.logger.Error("collector sink failed",
			"error", err,
			"service", batch.Service,
			"session_id", batch.SessionID,
			"sequence", batch.Sequence,
		)
		http.Error(w, "sink failed", http.StatusInternalServerError)
		return
	}
	c.reassembler.Done(header.PayloadID)
	c.metrics.batches.Inc()
	for _, r := range batch.Records {
		c.metrics.records.WithLabelValues(r.Kind().String()).Inc()
	}
	w.WriteHeader(http.StatusAccepted)
}

func (c *Collector) reject(w http.ResponseWriter, reason string, status int, err error) {
	c.metrics.rejectedChunks.WithLabelValues(reason).Inc()
	c.logger.Warn("collector rejected chunk", "reason", reason, "error", err)
	http.Error(w, err.Error(), status)
}

// checkSequence logs a gap when a session's batch sequence skips
// ahead. A sequence at or below the last one seen is a retry or a
// restarted exporter and is not a gap.
func (c *Collector) checkSequence(batch record.Batch) {
	key := batch.Service + "/" + batch.SessionID
	last, seen := c.sequences.Get(key)
	if !seen || batch.Sequence > last {
		c.sequences.Add(key, batch.Sequence)
	}
	if seen && batch.Sequence > last+1 {
		missing := batch.Sequence - last - 1
		c.metrics.sequenceGaps.Add(float64(missing))
		c.logger.Warn("batch sequence gap",
			"service", batch.Service,
			"session_id", batch.SessionID,
			"last", last,
			"received", batch.Sequence,
			"missing", missing,
		)
	}
}

// decodeBatch decompresses and decodes a reassembled payload and turns
// replay payloads back into events.
func decodeBatch(payload []byte, header exporter.ChunkHeader) (record.Batch, error) {
	encoded, err := compress.Decompress(payload, header.Compression, header.UncompressedSize)
	if err != nil {
		return record.Batch{}, fmt.Errorf("collector: payload %s: %w", header.PayloadID, err)
	}
	var batch record.Batch
	if err := codec.Unmarshal(encoded, &batch); err != nil {
		return record.Batch{}, fmt.Errorf("collector: payload %s: decoding batch: %w", header.PayloadID, err)
	}
	for index, r := range batch.Records {
		if r == nil {
			return record.Batch{}, fmt.Errorf("collector: payload %s: record %d is null", header.PayloadID, index)
		}
		if r.Kind() != record.KindReplay {
			continue
		}
		event, err := replay.FromPayload(r.Payload)
		if err != nil {
			return record.Batch{}, fmt.Errorf("collector: payload %s: record %d: %w", header.PayloadID, index, err)
		}
		r.Payload = event
	}
	return batch, nil
}
