// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/beacon/lib/beacon"
	"github.com/bureau-foundation/beacon/lib/cli"
	"github.com/bureau-foundation/beacon/lib/clock"
	"github.com/bureau-foundation/beacon/lib/config"
	"github.com/bureau-foundation/beacon/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var (
		configPath  string
		service     string
		endpoint    string
		console     bool
		verbose     bool
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("beacon-relay", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&configPath, "config", "", "path to beacon.yaml or beacon.jsonc (default: $BEACON_CONFIG, else built-in defaults)")
	flagSet.StringVar(&service, "service", "", "service name stamped on every batch (overrides the config file)")
	flagSet.StringVar(&endpoint, "endpoint", "", "collector URL (overrides the config file)")
	flagSet.BoolVar(&console, "console", false, "print records to stdout instead of exporting them")
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
			fmt.Fprintf(stdout, "beacon-relay %s\n", version.Full())
		} else {
			fmt.Fprintf(stdout, "beacon-relay %s\n", version.Info())
		}
		return nil
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if service != "" {
		cfg.Service = service
	}
	if endpoint != "" {
		cfg.Exporter.Kind, cfg.Exporter.Endpoint = config.ExporterHTTP, endpoint
	}
	if console {
		cfg.Exporter.Kind = config.ExporterConsole
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := cli.NewCommandLogger(stderr, verbose).With("command", "beacon-relay")

	clientConfig := beacon.ConfigFrom(cfg)
	clientConfig.Clock = clock.Real()
	clientConfig.Logger = logger
	clientConfig.SessionID = uuid.NewString()
	clientConfig.Exporter, err = beacon.NewExporter(cfg, clientConfig.SessionID, stdout, logger)
	if err != nil {
		return err
	}
	client, err := beacon.New(clientConfig)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("relay running",
		"service", cfg.Service,
		"session_id", client.SessionID(),
		"exporter", cfg.Exporter.Kind,
		"endpoint", cfg.Exporter.Endpoint,
	)
	stats, readErr := relay(ctx, stdin, client, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
	defer cancel()
	shutdownErr := client.Shutdown(shutdownCtx)

	logger.Info("relay stopped", "records", stats.records, "skipped", stats.skipped)
	if readErr != nil {
		return fmt.Errorf("reading stdin: %w", readErr)
	}
	return shutdownErr
}

// loadConfig reads path, then $BEACON_CONFIG, and falls back to the
// defaults when neither is set.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("BEACON_CONFIG") != "" {
		return config.Load()
	}
	return config.Default(), nil
}
