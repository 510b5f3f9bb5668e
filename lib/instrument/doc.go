// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package instrument hooks telemetry capture into process-wide
// facilities that the host program already uses.
//
// Each hook is an [Instrumentation] with an explicit Enable and
// Disable. Enabling twice fails with [ErrAlreadyEnabled] and Disable
// puts back exactly what Enable replaced, so a host can turn capture
// on and off without accumulating wrappers. A [Registry] enables a set
// of instrumentations together and rolls back the ones it enabled if
// a later one fails.
//
// Two instrumentations are provided: [Slog] routes the slog default
// logger (and, through it, package log) into a capture handler, and
// [HTTPClient] wraps an *http.Client's transport to record a span per
// request and propagate W3C trace context.
package instrument
