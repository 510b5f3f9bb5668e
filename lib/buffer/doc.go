// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package buffer holds telemetry records between the producer and the
// batch processor.
//
// A [Buffer] is a FIFO bounded by record count and, optionally, by
// total encoded bytes. When a push would exceed either bound the new
// record is rejected: the records already queued are older and closer
// to export, and the producer is never blocked. Rejections are counted
// and reported through a rate-limited warning.
package buffer
