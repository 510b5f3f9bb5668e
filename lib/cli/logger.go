// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli holds the pieces the Beacon commands share: the
// diagnostic logger and the shutdown grace period.
package cli

import (
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/term"
)

// ShutdownTimeout bounds the final drain when a command exits.
const ShutdownTimeout = 10 * time.Second

// NewCommandLogger creates the logger a command writes its own
// diagnostics to. When output is a terminal it uses slog.TextHandler;
// otherwise slog.JSONHandler, so a supervisor or a collector can
// ingest the lines. verbose lowers the level to Debug.
func NewCommandLogger(output io.Writer, verbose bool) *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		options.Level = slog.LevelDebug
	}
	if file, ok := output.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return slog.New(slog.NewTextHandler(output, options))
	}
	return slog.New(slog.NewJSONHandler(output, options))
}
