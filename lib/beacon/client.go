// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package beacon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/beacon/lib/batch"
	"github.com/bureau-foundation/beacon/lib/clock"
	"github.com/bureau-foundation/beacon/lib/instrument"
	"github.com/bureau-foundation/beacon/lib/ratelimit"
	"github.com/bureau-foundation/beacon/lib/record"
	"github.com/bureau-foundation/beacon/lib/replay"
	"github.com/bureau-foundation/beacon/lib/traceattr"
)

// Attribute keys PostRecord interprets.
const (
	TimestampKey = "timestamp"
	TraceIDKey   = "trace_id"
	SpanIDKey    = "span_id"
)

// DefaultReplayScheduledDelay is the replay pipeline's flush interval
// when none is configured. Replay flushes sooner than logs and spans.
const DefaultReplayScheduledDelay = 2 * time.Second

// Pipeline sizes one of the client's batch pipelines. Zero fields take
// the batch package defaults, except that the replay pipeline flushes
// every DefaultReplayScheduledDelay.
type Pipeline struct {
	MaxQueueSize       int
	MaxExportBatchSize int
	MaxQueueBytes      int
	ScheduledDelay     time.Duration
	ExportTimeout      time.Duration
}

// Config configures a Client.
type Config struct {
	Service string

	// SessionID defaults to a random UUID.
	SessionID string

	// Exporter receives every pipeline's batches. If it implements
	// batch.ShutdownExporter, Client.Shutdown shuts it down once after
	// all pipelines have drained.
	Exporter batch.Exporter

	Logs   Pipeline
	Spans  Pipeline
	Replay Pipeline

	// Throttle limits replay mutations per node.
	Throttle    ratelimit.Config
	ResyncDelay time.Duration

	// Snapshotter serves replay resyncs after throttling. Nil disables
	// them.
	Snapshotter replay.Snapshotter

	TraceAttributes traceattr.Config

	// HandlerLevel is the minimum level Handler accepts. Defaults to
	// slog.LevelInfo.
	HandlerLevel slog.Leveler

	// CaptureSlog routes slog.Default through Handler while the client
	// is running.
	CaptureSlog bool

	// InstrumentHTTPClients have their transports wrapped to record an
	// "http.client" span per request.
	InstrumentHTTPClients []*http.Client

	// Instrumentations are enabled after the built-in ones and
	// disabled before them.
	Instrumentations []instrument.Instrumentation

	Clock clock.Clock

	// Logger receives the client's own diagnostics. Defaults to the
	// slog.Default in effect when New is called, so capturing slog
	// does not feed the client's diagnostics back into itself.
	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

// Client ships records from the producer API to an exporter.
type Client struct {
	service   string
	sessionID string
	clock     clock.Clock
	logger    *slog.Logger
	level     slog.Leveler
	exporter  batch.Exporter

	logs     *batch.Processor
	spans    *batch.Processor
	replay   *batch.Processor
	recorder *replay.Recorder
	traces   *traceattr.Store
	registry *instrument.Registry

	shutdownOnce sync.Once
	shutdownErr  error
}

// New validates config, starts the pipelines, and enables the
// configured instrumentations. Call Shutdown to stop everything.
func New(config Config) (*Client, error) {
	if config.Exporter == nil {
		return nil, fmt.Errorf("beacon: exporter is required")
	}
	if config.Clock == nil {
		return nil, fmt.Errorf("beacon: clock is required")
	}
	if config.SessionID == "" {
		config.SessionID = uuid.NewString()
	}
	if config.HandlerLevel == nil {
		config.HandlerLevel = slog.LevelInfo
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	logger := config.Logger.With("service", config.Service, "session_id", config.SessionID)

	client := &Client{
		service:   config.Service,
		sessionID: config.SessionID,
		clock:     config.Clock,
		logger:    logger,
		level:     config.HandlerLevel,
		exporter:  config.Exporter,
	}

	// The pipelines share the exporter and must not each shut it down.
	shared := batch.ExporterFunc(config.Exporter.Export)

	// Anything started before a failure is torn down again.
	abort := func(err error) (*Client, error) {
		client.teardown(context.Background())
		return nil, err
	}

	var err error
	if client.logs, err = newPipeline("logs", shared, config.Logs, config, logger); err != nil {
		return abort(err)
	}
	if client.spans, err = newPipeline("spans", shared, config.Spans, config, logger); err != nil {
		return abort(err)
	}
	replayPipeline := config.Replay
	if replayPipeline.ScheduledDelay == 0 {
		replayPipeline.ScheduledDelay = DefaultReplayScheduledDelay
	}
	if client.replay, err = newPipeline("replay", shared, replayPipeline, config, logger); err != nil {
		return abort(err)
	}

	traceConfig := config.TraceAttributes
	traceConfig.Clock = config.Clock
	if client.traces, err = traceattr.New(traceConfig); err != nil {
		return abort(fmt.Errorf("beacon: %w", err))
	}

	client.recorder, err = replay.NewRecorder(replay.RecorderConfig{
		Sink:        client.replay,
		Snapshotter: config.Snapshotter,
		Limits:      config.Throttle,
		ResyncDelay: config.ResyncDelay,
		Clock:       config.Clock,
		Logger:      logger,
	})
	if err != nil {
		return abort(fmt.Errorf("beacon: %w", err))
	}

	var instrumentations []instrument.Instrumentation
	if config.CaptureSlog {
		instrumentations = append(instrumentations, instrument.NewSlog(client.Handler(), instrument.SlogOptions{}))
	}
	for _, httpClient := range config.InstrumentHTTPClients {
		instrumentations = append(instrumentations,
			instrument.NewHTTPClient(httpClient, client, instrument.HTTPClientOptions{Clock: config.Clock}))
	}
	instrumentations = append(instrumentations, config.Instrumentations...)
	if client.registry, err = instrument.NewRegistry(instrumentations...); err != nil {
		return abort(fmt.Errorf("beacon: %w", err))
	}
	if err := client.registry.EnableAll(); err != nil {
		return abort(fmt.Errorf("beacon: enabling instrumentations: %w", err))
	}

	logger.Debug("beacon client started", "instrumentations", client.registry.Names())
	return client, nil
}

func newPipeline(name string, exporter batch.Exporter, pipeline Pipeline, config Config, logger *slog.Logger) (*batch.Processor, error) {
	processor, err := batch.New(exporter, batch.Config{
		Name:               name,
		MaxQueueSize:       pipeline.MaxQueueSize,
		MaxExportBatchSize: pipeline.MaxExportBatchSize,
		MaxQueueBytes:      pipeline.MaxQueueBytes,
		ScheduledDelay:     pipeline.ScheduledDelay,
		ExportTimeout:      pipeline.ExportTimeout,
		Clock:              config.Clock,
		Logger:             logger,
		Registerer:         config.Registerer,
	})
	if err != nil {
		return nil, fmt.Errorf("beacon: %s pipeline: %w", name, err)
	}
	return processor, nil
}

// SessionID returns the session every batch is stamped with.
func (c *Client) SessionID() string {
	if c == nil {
		return ""
	}
	return c.sessionID
}

// PostRecord queues a log record. level is a severity name ("info",
// "warning", ...); unknown names are INFO.
//
// A "timestamp" attribute (time.Time, Unix nanoseconds, or an RFC 3339
// string) sets the record time and is removed from the attributes. A
// "trace_id" attribute merges in the attributes stored for that trace,
// with the record's own attributes taking precedence, and sets the
// entry's trace correlation when it is a valid hex trace ID.
func (c *Client) PostRecord(level, body string, attributes map[string]any) {
	if c == nil {
		return
	}
	c.postLog(record.ParseSeverity(level), body, attributes, time.Time{})
}

// postLog builds and queues a log entry. A timestamp attribute wins
// over at; a zero at with no timestamp attribute takes the clock.
func (c *Client) postLog(severity record.Severity, body string, attributes map[string]any, at time.Time) {
	attributes = maps.Clone(attributes)

	if value, ok := attributes[TimestampKey]; ok {
		if parsed, ok := parseTimestamp(value); ok {
			at = parsed
			delete(attributes, TimestampKey)
		}
	}
	if at.IsZero() {
		at = c.clock.Now()
	}

	entry := &record.LogEntry{Severity: severity, Body: body}
	if traceID, ok := attributes[TraceIDKey].(string); ok && traceID != "" {
		attributes = c.withTraceAttributes(traceID, attributes)
		if parsed, err := record.ParseTraceID(traceID); err == nil {
			entry.TraceID = parsed
		}
	}
	if spanID, ok := attributes[SpanIDKey].(string); ok {
		if parsed, err := record.ParseSpanID(spanID); err == nil {
			entry.SpanID = parsed
		}
	}
	if len(attributes) > 0 {
		entry.Attributes = attributes
	}
	c.logs.Push(record.New(at.UnixNano(), entry))
}

// withTraceAttributes returns attributes with the stored attributes of
// traceID added under them.
func (c *Client) withTraceAttributes(traceID string, attributes map[string]any) map[string]any {
	stored := c.traces.Get(traceID)
	if len(stored) == 0 {
		return attributes
	}
	maps.Copy(stored, attributes)
	return stored
}

// parseTimestamp accepts a time.Time, Unix nanoseconds as any integer
// type, or an RFC 3339 string.
func parseTimestamp(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case time.Time:
		return typed, !typed.IsZero()
	case int64:
		return time.Unix(0, typed), true
	case int:
		return time.Unix(0, int64(typed)), true
	case uint64:
		return time.Unix(0, int64(typed)), true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, typed)
		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}

// RecordSpan queues a finished span. Attributes stored for its trace
// are merged in under the span's own.
func (c *Client) RecordSpan(span record.Span) {
	if c == nil {
		return
	}
	if !span.TraceID.IsZero() {
		span.Attributes = c.withTraceAttributes(span.TraceID.String(), maps.Clone(span.Attributes))
	}
	timestamp := span.StartTime
	if timestamp == 0 {
		timestamp = c.clock.Now().UnixNano()
	}
	c.spans.Push(record.New(timestamp, &span))
}

// RecordReplay passes a replay event through the mutation throttle and
// queues what survives. It reports whether the event was queued.
func (c *Client) RecordReplay(event replay.Event) bool {
	if c == nil || replay.IsNil(event) {
		return false
	}
	return c.recorder.Record(event)
}

// SetTraceAttributes merges attributes into the set attached to every
// later record carrying traceID.
func (c *Client) SetTraceAttributes(traceID string, attributes map[string]any) {
	if c == nil {
		return
	}
	c.traces.Set(traceID, attributes)
}

// ForceFlush exports everything queued in every pipeline.
func (c *Client) ForceFlush(ctx context.Context) error {
	if c == nil {
		return nil
	}
	group, ctx := errgroup.WithContext(ctx)
	for _, processor := range c.processors() {
		group.Go(func() error { return processor.ForceFlush(ctx) })
	}
	return group.Wait()
}

// Shutdown disables instrumentations, stops replay throttling, drains
// and stops every pipeline, and shuts the exporter down. Later calls
// return the first call's result.
func (c *Client) Shutdown(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.shutdownOnce.Do(func() {
		c.shutdownErr = c.teardown(ctx)
		c.logger.Debug("beacon client stopped", "error", c.shutdownErr)
	})
	return c.shutdownErr
}

// teardown stops whatever New managed to start.
func (c *Client) teardown(ctx context.Context) error {
	var errs []error
	if c.registry != nil {
		if err := c.registry.DisableAll(); err != nil {
			errs = append(errs, fmt.Errorf("beacon: disabling instrumentations: %w", err))
		}
	}
	if c.recorder != nil {
		c.recorder.Close()
	}

	var group errgroup.Group
	for _, processor := range c.processors() {
		group.Go(func() error { return processor.Shutdown(ctx) })
	}
	if err := group.Wait(); err != nil {
		errs = append(errs, err)
	}

	if shutdown, ok := c.exporter.(batch.ShutdownExporter); ok {
		if err := shutdown.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("beacon: exporter shutdown: %w", err))
		}
	}
	c.traces.Close()
	return errors.Join(errs...)
}

func (c *Client) processors() []*batch.Processor {
	var processors []*batch.Processor
	for _, processor := range []*batch.Processor{c.logs, c.spans, c.replay} {
		if processor != nil {
			processors = append(processors, processor)
		}
	}
	return processors
}
