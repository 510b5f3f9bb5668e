// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source shared by every
// component in the pipeline that owns a timer: the token bucket refill
// in lib/ratelimit, the flush ticker and export timeout in lib/batch,
// the resynchronization delay in lib/replay, and the TTL sweep in
// lib/traceattr.
//
// Production code passes Real(). Tests pass Fake(), which only moves
// when Advance is called:
//
//	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	processor := batch.NewProcessor(config, exporter, batch.Options{Clock: fakeClock})
//	fakeClock.WaitForTimers(1)        // flush ticker registered
//	fakeClock.Advance(5 * time.Second) // fire it deterministically
//
// # Synchronization
//
// Every After, AfterFunc, and NewTicker call on a FakeClock registers a
// pending waiter. WaitForTimers blocks until a given number of waiters
// exist, which closes the race between a goroutine arming a timer and
// the test advancing past it. AfterFunc callbacks run synchronously
// inside Advance, so a component built on AfterFunc (the limiter
// refill) has observably finished its tick when Advance returns.
package clock
