// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/bureau-foundation/beacon/lib/buffer"
	"github.com/bureau-foundation/beacon/lib/clock"
	"github.com/bureau-foundation/beacon/lib/record"
)

const (
	DefaultScheduledDelay = 5 * time.Second
	DefaultExportTimeout  = 30 * time.Second
)

// Export failure diagnostics are limited to a short burst and then one
// per interval, so a dead collector does not flood the host's logs.
const (
	diagnosticInterval = 10 * time.Second
	diagnosticBurst    = 3
)

// State is a processor lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateExporting
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExporting:
		return "exporting"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Config configures a Processor. Zero durations and sizes take the
// defaults; Clock is required.
type Config struct {
	// Name labels the processor's logs and metrics ("logs", "spans",
	// "replay").
	Name string

	MaxQueueSize       int
	MaxExportBatchSize int
	MaxQueueBytes      int

	ScheduledDelay time.Duration
	ExportTimeout  time.Duration

	Clock  clock.Clock
	Logger *slog.Logger

	// Registerer receives the processor's counters. Nil leaves them
	// unregistered.
	Registerer prometheus.Registerer
}

// Processor batches records from its buffer into an Exporter.
type Processor struct {
	name          string
	exporter      Exporter
	clock         clock.Clock
	logger        *slog.Logger
	buffer        *buffer.Buffer
	batchSize     int
	exportTimeout time.Duration
	metrics       *processorMetrics
	diagnostics   *rate.Limiter

	state atomic.Int32

	// exportMu is held for each drain-and-export pass, so exports are
	// serialized and a record is never drained by two passes.
	exportMu sync.Mutex

	// abandoned is closed when an export that timed out finally
	// returns. Guarded by exportMu.
	abandoned chan struct{}

	ticker *clock.Ticker
	eager  chan struct{}
	stop   chan struct{}
	done   chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

// New validates config, starts the flush loop, and returns the
// processor. Call Shutdown to stop it.
func New(exporter Exporter, config Config) (*Processor, error) {
	if exporter == nil {
		return nil, fmt.Errorf("batch: exporter is required")
	}
	if config.Clock == nil {
		return nil, fmt.Errorf("batch: clock is required")
	}
	if config.MaxQueueSize < 0 || config.MaxExportBatchSize < 0 || config.MaxQueueBytes < 0 {
		return nil, fmt.Errorf("batch: queue sizes must not be negative (queue %d, batch %d, bytes %d)",
			config.MaxQueueSize, config.MaxExportBatchSize, config.MaxQueueBytes)
	}
	if config.ScheduledDelay < 0 || config.ExportTimeout < 0 {
		return nil, fmt.Errorf("batch: durations must not be negative (scheduled delay %v, export timeout %v)",
			config.ScheduledDelay, config.ExportTimeout)
	}
	if config.ScheduledDelay == 0 {
		config.ScheduledDelay = DefaultScheduledDelay
	}
	if config.ExportTimeout == 0 {
		config.ExportTimeout = DefaultExportTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	queue := buffer.New(buffer.Config{
		Name:               config.Name,
		MaxQueueSize:       config.MaxQueueSize,
		MaxExportBatchSize: config.MaxExportBatchSize,
		MaxQueueBytes:      config.MaxQueueBytes,
	}, config.Logger)

	processor := &Processor{
		name:          config.Name,
		exporter:      exporter,
		clock:         config.Clock,
		logger:        config.Logger,
		buffer:        queue,
		batchSize:     queue.Config().MaxExportBatchSize,
		exportTimeout: config.ExportTimeout,
		diagnostics:   rate.NewLimiter(rate.Every(diagnosticInterval), diagnosticBurst),
		eager:         make(chan struct{}, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	processor.metrics = newProcessorMetrics(config.Name, func() float64 {
		return float64(queue.Len())
	})
	if config.Registerer != nil {
		if err := processor.metrics.register(config.Registerer); err != nil {
			return nil, fmt.Errorf("batch: registering %s metrics: %w", config.Name, err)
		}
	}

	// The ticker exists before New returns so tests can advance a fake
	// clock immediately.
	processor.ticker = config.Clock.NewTicker(config.ScheduledDelay)
	go processor.run()
	return processor, nil
}

// Push queues r for export and reports whether it was rejected: a nil
// processor or record, a processor shutting down, or a buffer bound.
// Rejections are counted, not logged per record.
func (p *Processor) Push(r *record.Record) (rejected bool) {
	if p == nil || r == nil {
		return true
	}
	if State(p.state.Load()) >= StateShuttingDown {
		return true
	}
	if p.buffer.Push(r) {
		p.metrics.dropped.Inc()
		return true
	}
	p.metrics.queued.Inc()

	if p.buffer.Len() >= p.batchSize {
		select {
		case p.eager <- struct{}{}:
		default:
		}
	}
	return false
}

// ForceFlush exports every buffered record, in batches of at most
// MaxExportBatchSize, and returns once they have been handed to the
// exporter. Export failures are logged, not returned; the error is
// ctx's if it ended the flush early. No-op after Shutdown.
func (p *Processor) ForceFlush(ctx context.Context) error {
	if p == nil || State(p.state.Load()) == StateStopped {
		return nil
	}
	p.flush(ctx, false)
	return ctx.Err()
}

// Shutdown stops the flush loop, exports what is left, and shuts the
// exporter down. Only the first call does any work; later calls return
// its result.
func (p *Processor) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.shutdownOnce.Do(func() {
		p.state.Store(int32(StateShuttingDown))
		p.ticker.Stop()
		close(p.stop)
		select {
		case <-p.done:
		case <-ctx.Done():
		}

		p.flush(ctx, false)

		if shutdowner, ok := p.exporter.(ShutdownExporter); ok {
			if err := shutdowner.Shutdown(ctx); err != nil {
				p.shutdownErr = fmt.Errorf("batch: shutting down %s exporter: %w", p.name, err)
			}
		}
		p.state.Store(int32(StateStopped))
		p.logger.Debug("batch processor stopped",
			"pipeline", p.name,
			"dropped", p.buffer.Dropped(),
			"abandoned", p.buffer.Len(),
		)
	})
	return p.shutdownErr
}

// State returns the current lifecycle state.
func (p *Processor) State() State {
	return State(p.state.Load())
}

// Len returns the number of records waiting for export.
func (p *Processor) Len() int {
	return p.buffer.Len()
}

// Dropped returns the number of records the buffer has rejected.
func (p *Processor) Dropped() uint64 {
	return p.buffer.Dropped()
}

// Done is closed when the flush loop has exited.
func (p *Processor) Done() <-chan struct{} {
	return p.done
}

func (p *Processor) run() {
	defer close(p.done)

	for {
		select {
		case <-p.ticker.C:
			p.flush(context.Background(), false)
		case <-p.eager:
			p.flush(context.Background(), true)
		case <-p.stop:
			return
		}
	}
}

// flush drains and exports batches until the buffer is empty, or with
// fullOnly until less than a whole batch remains.
func (p *Processor) flush(ctx context.Context, fullOnly bool) {
	p.exportMu.Lock()
	defer p.exportMu.Unlock()

	for ctx.Err() == nil {
		if fullOnly && p.buffer.Len() < p.batchSize {
			return
		}
		records := p.buffer.Drain(p.batchSize)
		if records == nil {
			return
		}
		p.exportBatch(ctx, records)
	}
}

func (p *Processor) exportBatch(ctx context.Context, records []*record.Record) {
	// Exporting is only entered from Idle, so a shutdown in progress
	// keeps its state.
	if p.state.CompareAndSwap(int32(StateIdle), int32(StateExporting)) {
		defer p.state.CompareAndSwap(int32(StateExporting), int32(StateIdle))
	}

	if err := p.callExporter(ctx, records); err != nil {
		p.metrics.exportFailures.Inc()
		p.metrics.failed.Add(float64(len(records)))
		if p.diagnostics.Allow() {
			p.logger.Warn("telemetry export failed, dropping batch",
				"pipeline", p.name,
				"error", err,
				"records", len(records),
				"queued", p.buffer.Len(),
			)
		}
		return
	}
	p.metrics.batches.Inc()
	p.metrics.exported.Add(float64(len(records)))
}

// callExporter runs one Export bounded by the export timeout on the
// processor's clock. A panicking exporter is reported as an error. An
// export that timed out but has not returned yet holds off the next
// one, so two Export calls never overlap. Called with exportMu held.
func (p *Processor) callExporter(ctx context.Context, records []*record.Record) error {
	exportContext, cancel := context.WithCancel(ctx)
	defer cancel()

	timedOut := make(chan struct{})
	timer := p.clock.AfterFunc(p.exportTimeout, func() { close(timedOut) })
	defer timer.Stop()

	if previous := p.abandoned; previous != nil {
		select {
		case <-previous:
			p.abandoned = nil
		case <-timedOut:
			return fmt.Errorf("previous export still running after %v", p.exportTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	result := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer func() {
			if recovered := recover(); recovered != nil {
				result <- fmt.Errorf("exporter panicked: %v", recovered)
			}
		}()
		result <- p.exporter.Export(exportContext, records)
	}()

	select {
	case err := <-result:
		return err
	case <-timedOut:
		p.abandoned = finished
		return fmt.Errorf("export timed out after %v", p.exportTimeout)
	case <-ctx.Done():
		p.abandoned = finished
		return ctx.Err()
	}
}
