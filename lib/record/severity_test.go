// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"log/slog"
	"testing"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		level string
		want  Severity
	}{
		{"trace", SeverityTrace},
		{"DEBUG", SeverityDebug},
		{"info", SeverityInfo},
		{"log", SeverityInfo},
		{" warning ", SeverityWarn},
		{"warn", SeverityWarn},
		{"error", SeverityError},
		{"critical", SeverityFatal},
		{"no-such-level", SeverityInfo},
	}
	for _, test := range tests {
		if got := ParseSeverity(test.level); got != test.want {
			t.Errorf("ParseSeverity(%q) = %d, want %d", test.level, got, test.want)
		}
	}
}

func TestSeverityFromSlog(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  Severity
	}{
		{slog.LevelDebug, SeverityDebug},
		{slog.LevelInfo, SeverityInfo},
		{slog.LevelInfo + 2, SeverityInfo + 2},
		{slog.LevelWarn, SeverityWarn},
		{slog.LevelError, SeverityError},
		{slog.Level(-100), SeverityTrace},
		{slog.Level(100), 24},
	}
	for _, test := range tests {
		if got := SeverityFromSlog(test.level); got != test.want {
			t.Errorf("SeverityFromSlog(%v) = %d, want %d", test.level, got, test.want)
		}
	}
}

func TestSeverityString(t *testing.T) {
	if got := (SeverityWarn + 2).String(); got != "WARN" {
		t.Fatalf("WARN+2 = %q", got)
	}
	if got := SeverityFatal.String(); got != "FATAL" {
		t.Fatalf("FATAL = %q", got)
	}
}
