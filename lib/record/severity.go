// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"log/slog"
	"strings"
)

// Severity follows OpenTelemetry severity numbering. Each named level
// is the lowest number of its range: TRACE=1-4, DEBUG=5-8, INFO=9-12,
// WARN=13-16, ERROR=17-20, FATAL=21-24.
type Severity uint8

const (
	SeverityUnset Severity = 0
	SeverityTrace Severity = 1
	SeverityDebug Severity = 5
	SeverityInfo  Severity = 9
	SeverityWarn  Severity = 13
	SeverityError Severity = 17
	SeverityFatal Severity = 21
)

// ParseSeverity maps a producer's level string to a Severity. Matching
// is case-insensitive and accepts the aliases console-style producers
// use ("log", "warning", "critical"). Unknown levels map to INFO so
// that a typo never loses the record.
func ParseSeverity(level string) Severity {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return SeverityTrace
	case "debug":
		return SeverityDebug
	case "info", "log", "":
		return SeverityInfo
	case "warn", "warning":
		return SeverityWarn
	case "error":
		return SeverityError
	case "fatal", "critical", "panic":
		return SeverityFatal
	default:
		return SeverityInfo
	}
}

// SeverityFromSlog converts a slog level. slog's levels are spaced by
// four, the same width as the OpenTelemetry ranges, so offsets within a
// range carry over (slog.LevelInfo+2 becomes INFO+2).
func SeverityFromSlog(level slog.Level) Severity {
	value := int(level) + int(SeverityInfo)
	if value < int(SeverityTrace) {
		return SeverityTrace
	}
	if value > 24 {
		return 24
	}
	return Severity(value)
}

// String returns the short name of the range the severity falls in.
func (s Severity) String() string {
	switch {
	case s == SeverityUnset:
		return "UNSET"
	case s < SeverityDebug:
		return "TRACE"
	case s < SeverityInfo:
		return "DEBUG"
	case s < SeverityWarn:
		return "INFO"
	case s < SeverityError:
		return "WARN"
	case s < SeverityFatal:
		return "ERROR"
	default:
		return "FATAL"
	}
}
