// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit provides a keyed token bucket limiter with
// integer tokens, periodic refill, and a one-shot notification when a
// key runs dry.
//
// Each key gets its own bucket, created full on first use. A tick of
// the refill timer adds RefillRate tokens to every tracked bucket, and
// a bucket that is full again is forgotten. Memory is therefore
// proportional to the number of keys currently being limited, not to
// the number of keys ever seen.
package ratelimit
