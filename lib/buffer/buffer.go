// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buffer

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bureau-foundation/beacon/lib/record"
)

const (
	DefaultMaxQueueSize       = 2048
	DefaultMaxExportBatchSize = 512
)

// dropWarningInterval bounds how often overflow is logged.
const dropWarningInterval = 10 * time.Second

// Config bounds a Buffer. Zero values take the defaults.
type Config struct {
	// Name identifies the buffer in log output ("logs", "spans").
	Name string

	// MaxQueueSize is the maximum number of queued records.
	MaxQueueSize int

	// MaxExportBatchSize is the largest batch a consumer drains at
	// once. The buffer only uses it to keep MaxQueueSize at least as
	// large.
	MaxExportBatchSize int

	// MaxQueueBytes bounds the total encoded size of queued records.
	// Zero means unbounded.
	MaxQueueBytes int
}

// Normalize fills defaults and raises MaxQueueSize to
// MaxExportBatchSize when it is smaller, logging a warning for the
// correction.
func (c Config) Normalize(logger *slog.Logger) Config {
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = DefaultMaxQueueSize
	}
	if c.MaxExportBatchSize <= 0 {
		c.MaxExportBatchSize = DefaultMaxExportBatchSize
	}
	if c.MaxQueueBytes < 0 {
		c.MaxQueueBytes = 0
	}
	if c.MaxExportBatchSize > c.MaxQueueSize {
		logger.Warn("max export batch size exceeds max queue size, raising queue size",
			"buffer", c.Name,
			"max_export_batch_size", c.MaxExportBatchSize,
			"max_queue_size", c.MaxQueueSize,
		)
		c.MaxQueueSize = c.MaxExportBatchSize
	}
	return c
}

// Buffer is a bounded FIFO of records. Push and Drain are atomic with
// respect to each other.
//
// Thread-safe: all methods may be called concurrently.
type Buffer struct {
	config Config
	logger *slog.Logger

	mu        sync.Mutex
	records   []*record.Record
	totalSize int
	dropped   uint64

	dropWarning rate.Sometimes

	notify chan struct{}
}

// New returns an empty Buffer. Configuration problems are corrected
// and logged, never returned.
func New(config Config, logger *slog.Logger) *Buffer {
	if logger == nil {
		logger = slog.Default()
	}
	config = config.Normalize(logger)
	return &Buffer{
		config:      config,
		logger:      logger,
		records:     make([]*record.Record, 0, min(config.MaxQueueSize, config.MaxExportBatchSize)),
		dropWarning: rate.Sometimes{First: 1, Interval: dropWarningInterval},
		notify:      make(chan struct{}, 1),
	}
}

// Config returns the normalized configuration.
func (b *Buffer) Config() Config {
	return b.config
}

// Push appends r and reports whether it was rejected instead. A record
// is rejected when the queue is full, when it would push the queue
// past MaxQueueBytes, or when it cannot be encoded. The queued records
// are never evicted to make room.
func (b *Buffer) Push(r *record.Record) (rejected bool) {
	if r == nil {
		return true
	}
	size, err := r.Size()
	if err != nil {
		b.reject("unencodable", slog.String("error", err.Error()))
		return true
	}

	b.mu.Lock()
	if len(b.records) >= b.config.MaxQueueSize {
		b.mu.Unlock()
		b.reject("queue full", slog.Int("max_queue_size", b.config.MaxQueueSize))
		return true
	}
	if b.config.MaxQueueBytes > 0 && b.totalSize+size > b.config.MaxQueueBytes {
		b.mu.Unlock()
		b.reject("queue bytes exceeded", slog.Int("max_queue_bytes", b.config.MaxQueueBytes))
		return true
	}
	b.records = append(b.records, r)
	b.totalSize += size
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return false
}

func (b *Buffer) reject(reason string, detail slog.Attr) {
	b.mu.Lock()
	b.dropped++
	dropped := b.dropped
	b.mu.Unlock()

	b.dropWarning.Do(func() {
		b.logger.Warn("telemetry buffer dropping records",
			"buffer", b.config.Name,
			"reason", reason,
			detail,
			"dropped_total", dropped,
		)
	})
}

// Drain removes and returns up to limit of the oldest records, oldest
// first. A non-positive limit drains everything. Returns nil when the
// buffer is empty.
func (b *Buffer) Drain(limit int) []*record.Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := len(b.records)
	if count == 0 {
		return nil
	}
	if limit > 0 && limit < count {
		count = limit
	}

	drained := make([]*record.Record, count)
	copy(drained, b.records)
	for _, r := range drained {
		b.totalSize -= r.SizeBytes()
	}
	if count == len(b.records) {
		clear(b.records)
		b.records = b.records[:0]
		return drained
	}
	clear(b.records[:count]) // release for GC
	b.records = b.records[count:]
	return drained
}

// Len returns the number of queued records.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// IsEmpty reports whether no records are queued.
func (b *Buffer) IsEmpty() bool {
	return b.Len() == 0
}

// SizeBytes returns the total encoded size of the queued records.
func (b *Buffer) SizeBytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalSize
}

// Dropped returns the number of rejected records since creation.
func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Notify returns a channel that receives a signal (coalesced, capacity
// one) after each successful Push.
func (b *Buffer) Notify() <-chan struct{} {
	return b.notify
}
