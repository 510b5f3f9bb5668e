// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Beacon packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. These are
// the only place in the test suite where real wall-clock timeouts are
// used: everything with a timer takes a lib/clock Clock and tests drive
// a FakeClock.
//
// [CaptureLogger] returns a *slog.Logger whose output tests can search,
// for asserting that a warning was (or was not) logged from a
// component's background goroutine.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Beacon-internal dependencies.
package testutil
