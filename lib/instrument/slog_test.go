// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package instrument

import (
	"bytes"
	"errors"
	"log"
	"log/slog"
	"strings"
	"testing"
)

// Tests in this file change process-wide logging state and restore it
// before returning; they must not run in parallel.

func TestSlogEnableRoutesDefaultLogger(t *testing.T) {
	var prior, captured bytes.Buffer
	priorLogger := slog.New(slog.NewTextHandler(&prior, nil))
	original := slog.Default()
	slog.SetDefault(priorLogger)
	t.Cleanup(func() { slog.SetDefault(original) })

	instrumentation := NewSlog(slog.NewTextHandler(&captured, nil), SlogOptions{})
	if err := instrumentation.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	slog.Info("order placed", "order_id", 42)
	if err := instrumentation.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}

	for name, output := range map[string]string{"capture": captured.String(), "prior": prior.String()} {
		if !strings.Contains(output, "order placed") || !strings.Contains(output, "order_id=42") {
			t.Fatalf("%s handler missed the record: %q", name, output)
		}
	}
	if slog.Default() != priorLogger {
		t.Fatal("Disable did not restore the prior default logger")
	}
}

func TestSlogReplaceSkipsPriorHandler(t *testing.T) {
	var prior, captured bytes.Buffer
	original := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&prior, nil)))
	t.Cleanup(func() { slog.SetDefault(original) })

	instrumentation := NewSlog(slog.NewTextHandler(&captured, nil), SlogOptions{Replace: true})
	if err := instrumentation.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	slog.Warn("disk nearly full")
	instrumentation.Disable()

	if prior.Len() != 0 {
		t.Fatalf("prior handler received output in replace mode: %q", prior.String())
	}
	if !strings.Contains(captured.String(), "disk nearly full") {
		t.Fatalf("capture missed the record: %q", captured.String())
	}
}

func TestSlogRestoresPackageLogExactly(t *testing.T) {
	var logOutput, captured bytes.Buffer
	original := slog.Default()
	originalWriter, originalFlags := log.Writer(), log.Flags()
	log.SetOutput(&logOutput)
	log.SetFlags(log.Lshortfile)
	t.Cleanup(func() {
		slog.SetDefault(original)
		log.SetOutput(originalWriter)
		log.SetFlags(originalFlags)
	})

	instrumentation := NewSlog(slog.NewTextHandler(&captured, nil), SlogOptions{})
	if err := instrumentation.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	log.Print("legacy call site")
	if !strings.Contains(captured.String(), "legacy call site") {
		t.Fatalf("package log output not captured: %q", captured.String())
	}
	if err := instrumentation.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}

	if log.Writer() != &logOutput {
		t.Fatal("package log output not restored")
	}
	if log.Flags() != log.Lshortfile {
		t.Fatalf("package log flags = %d, want %d", log.Flags(), log.Lshortfile)
	}
	if slog.Default() != original {
		t.Fatal("default logger not restored")
	}

	captured.Reset()
	log.Print("after disable")
	if captured.Len() != 0 {
		t.Fatalf("capture still receiving after Disable: %q", captured.String())
	}
	if !strings.Contains(logOutput.String(), "after disable") {
		t.Fatalf("package log no longer writes to its own output: %q", logOutput.String())
	}
}

func TestSlogEnableTwice(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	instrumentation := NewSlog(slog.NewTextHandler(&bytes.Buffer{}, nil), SlogOptions{})
	if err := instrumentation.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	wrapped := slog.Default()
	if err := instrumentation.Enable(); !errors.Is(err, ErrAlreadyEnabled) {
		t.Fatalf("second Enable = %v, want ErrAlreadyEnabled", err)
	}
	if slog.Default() != wrapped {
		t.Fatal("second Enable changed the default logger")
	}
	instrumentation.Disable()
	if err := instrumentation.Disable(); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("second Disable = %v, want ErrNotEnabled", err)
	}
}
