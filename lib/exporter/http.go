// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package exporter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/bureau-foundation/beacon/lib/chunk"
	"github.com/bureau-foundation/beacon/lib/codec"
	"github.com/bureau-foundation/beacon/lib/compress"
	"github.com/bureau-foundation/beacon/lib/record"
	"github.com/bureau-foundation/beacon/lib/version"
)

const (
	DefaultMaxChunkSize = 1 << 20
	DefaultRetryMax     = 3
	DefaultRetryWaitMin = 500 * time.Millisecond
	DefaultRetryWaitMax = 5 * time.Second

	// requestTimeout bounds one attempt. The batch processor's export
	// timeout bounds the whole export including retries.
	requestTimeout = 15 * time.Second
)

// HTTPConfig configures an HTTP exporter.
type HTTPConfig struct {
	// Endpoint is the collector URL chunks are POSTed to.
	Endpoint string

	// Service and SessionID are stamped on every batch.
	Service   string
	SessionID string

	MaxChunkSize int
	Compression  compress.Algorithm

	// RetryMax is the number of retries after the first attempt. Zero
	// means DefaultRetryMax; negative disables retries.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// Headers are added to every request (authentication, routing).
	Headers map[string]string

	// HTTPClient defaults to a client on a go-cleanhttp pooled
	// transport, never http.DefaultClient, so instrumenting the
	// default client does not trace the exporter's own traffic.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// HTTP exports batches to a collector over HTTP. It implements
// batch.ShutdownExporter.
type HTTP struct {
	endpoint     string
	service      string
	sessionID    string
	maxChunkSize int
	compression  compress.Algorithm
	headers      map[string]string
	client       *retryablehttp.Client
	logger       *slog.Logger

	sequence atomic.Uint64
}

// NewHTTP validates config and returns an exporter.
func NewHTTP(config HTTPConfig) (*HTTP, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("exporter: endpoint is required")
	}
	parsed, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("exporter: endpoint %q: %w", config.Endpoint, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("exporter: endpoint %q must be http or https", config.Endpoint)
	}
	if config.MaxChunkSize < 0 || config.RetryWaitMin < 0 || config.RetryWaitMax < 0 {
		return nil, fmt.Errorf("exporter: chunk size and retry settings must not be negative")
	}
	if config.MaxChunkSize == 0 {
		config.MaxChunkSize = DefaultMaxChunkSize
	}
	switch {
	case config.RetryMax == 0:
		config.RetryMax = DefaultRetryMax
	case config.RetryMax < 0:
		config.RetryMax = 0
	}
	if config.RetryWaitMin == 0 {
		config.RetryWaitMin = DefaultRetryWaitMin
	}
	if config.RetryWaitMax == 0 {
		config.RetryWaitMax = DefaultRetryWaitMax
	}
	if config.RetryWaitMax < config.RetryWaitMin {
		return nil, fmt.Errorf("exporter: retry wait max %v is below retry wait min %v", config.RetryWaitMax, config.RetryWaitMin)
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{
			Transport: cleanhttp.DefaultPooledTransport(),
			Timeout:   requestTimeout,
		}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	logger := config.Logger.With("exporter", "http", "endpoint", parsed.Redacted())

	client := &retryablehttp.Client{
		HTTPClient: config.HTTPClient,
		// *slog.Logger satisfies retryablehttp.LeveledLogger.
		Logger:       logger,
		RetryWaitMin: config.RetryWaitMin,
		RetryWaitMax: config.RetryWaitMax,
		RetryMax:     config.RetryMax,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}

	return &HTTP{
		endpoint:     config.Endpoint,
		service:      config.Service,
		sessionID:    config.SessionID,
		maxChunkSize: config.MaxChunkSize,
		compression:  config.Compression,
		headers:      config.Headers,
		client:       client,
		logger:       logger,
	}, nil
}

// Export encodes records as one batch and sends it as one or more
// chunks. The first chunk that cannot be delivered fails the export;
// chunks already sent are not recalled, and the collector discards the
// incomplete payload when it ages out.
func (e *HTTP) Export(ctx context.Context, records []*record.Record) error {
	batch := record.Batch{
		Service:   e.service,
		SessionID: e.sessionID,
		Sequence:  e.sequence.Add(1),
		Records:   records,
	}
	encoded, err := codec.Marshal(batch)
	if err != nil {
		return fmt.Errorf("exporter: encoding batch %d: %w", batch.Sequence, err)
	}
	body, algorithm, err := compress.Compress(encoded, e.compression)
	if err != nil {
		return fmt.Errorf("exporter: compressing batch %d: %w", batch.Sequence, err)
	}

	chunks := chunk.Encode(body, e.maxChunkSize)
	header := ChunkHeader{
		PayloadID:        uuid.NewString(),
		Total:            len(chunks),
		Digest:           chunk.DigestOf(body),
		Compression:      algorithm,
		UncompressedSize: len(encoded),
	}
	for _, piece := range chunks {
		header.Index = piece.Index
		if err := e.send(ctx, header, piece.Data); err != nil {
			return fmt.Errorf("exporter: batch %d chunk %d/%d: %w", batch.Sequence, piece.Index+1, piece.Total, err)
		}
	}
	e.logger.Debug("exported batch",
		"sequence", batch.Sequence,
		"records", len(records),
		"bytes", len(encoded),
		"compressed_bytes", len(body),
		"chunks", len(chunks),
	)
	return nil
}

func (e *HTTP) send(ctx context.Context, header ChunkHeader, data []byte) error {
	request, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	request.Header.Set("User-Agent", version.UserAgent())
	for name, value := range e.headers {
		request.Header.Set(name, value)
	}
	header.Apply(request.Header)

	response, err := e.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	// Drain so the pooled connection can be reused.
	message, _ := io.ReadAll(io.LimitReader(response.Body, 4096))

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("collector returned %s: %s", response.Status, bytes.TrimSpace(message))
	}
	return nil
}

// Shutdown closes idle pooled connections.
func (e *HTTP) Shutdown(context.Context) error {
	e.client.HTTPClient.CloseIdleConnections()
	return nil
}
