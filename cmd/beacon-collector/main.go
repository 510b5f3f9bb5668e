// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/beacon/lib/cli"
	"github.com/bureau-foundation/beacon/lib/clock"
	"github.com/bureau-foundation/beacon/lib/collector"
	"github.com/bureau-foundation/beacon/lib/config"
	"github.com/bureau-foundation/beacon/lib/exporter"
	"github.com/bureau-foundation/beacon/lib/record"
	"github.com/bureau-foundation/beacon/lib/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run serves until ctx ends. ready, when non-nil, receives the bound
// address once the listener is open.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, ready chan<- net.Addr) error {
	var (
		configPath  string
		listen      string
		jsonOutput  bool
		verbose     bool
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("beacon-collector", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&configPath, "config", "", "path to beacon.yaml or beacon.jsonc (default: $BEACON_CONFIG, else built-in defaults)")
	flagSet.StringVar(&listen, "listen", "", "address to listen on (overrides collector.listen)")
	flagSet.BoolVar(&jsonOutput, "json", false, "print JSON lines even on a terminal")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log debug diagnostics")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		if verbose {
			fmt.Fprintf(stdout, "beacon-collector %s\n", version.Full())
		} else {
			fmt.Fprintf(stdout, "beacon-collector %s\n", version.Info())
		}
		return nil
	}

	cfg := config.Default()
	var err error
	switch {
	case configPath != "":
		cfg, err = config.LoadFile(configPath)
	case os.Getenv("BEACON_CONFIG") != "":
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Collector.Listen = listen
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := cli.NewCommandLogger(stderr, verbose).With("command", "beacon-collector")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	printer := &printSink{
		console: exporter.NewConsole(exporter.ConsoleConfig{Writer: stdout, JSON: jsonOutput}),
		logger:  logger,
	}
	receiver, err := collector.New(collector.Config{
		Sink:          printer,
		MaxChunkBytes: cfg.Collector.MaxChunkBytes,
		MaxPending:    cfg.Collector.MaxPending,
		MaxAge:        cfg.Collector.MaxAge,
		Clock:         clock.Real(),
		Logger:        logger,
		Registerer:    registry,
	})
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.Collector.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Collector.Listen, err)
	}
	server := &http.Server{
		Handler:           receiver.Mux(registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(listener) }()
	logger.Info("collector listening", "address", listener.Addr().String())
	if ready != nil {
		ready <- listener.Addr()
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	logger.Info("collector stopped")
	return nil
}

// printSink writes each batch's records to the console exporter.
type printSink struct {
	console *exporter.Console
	logger  *slog.Logger
}

func (p *printSink) Deliver(ctx context.Context, batch record.Batch) error {
	p.logger.Debug("batch received",
		"service", batch.Service,
		"session_id", batch.SessionID,
		"sequence", batch.Sequence,
		"records", len(batch.Records),
	)
	return p.console.Export(ctx, batch.Records)
}
