// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
)

// LogCapture collects text-handler log output for assertions. Safe
// for use from the background goroutines of the component under test.
type LogCapture struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

// CaptureLogger returns a debug-level logger writing into a new
// LogCapture.
//
//	logger, logs := testutil.CaptureLogger()
//	...
//	if logs.Count("export failed") != 1 { ... }
func CaptureLogger() (*slog.Logger, *LogCapture) {
	capture := &LogCapture{}
	handler := slog.NewTextHandler(capture, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), capture
}

// Write implements io.Writer.
func (c *LogCapture) Write(data []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.Write(data)
}

// String returns everything logged so far.
func (c *LogCapture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.String()
}

// Count returns how many log lines contain substring.
func (c *LogCapture) Count(substring string) int {
	count := 0
	for _, line := range strings.Split(c.String(), "\n") {
		if strings.Contains(line, substring) {
			count++
		}
	}
	return count
}
