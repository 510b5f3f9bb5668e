// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package replay models session replay events and bounds the volume of
// DOM mutation data a recording produces.
//
// [Event] is a closed tagged union: [Meta], [FullSnapshot],
// [Mutation], [Interaction], and [Custom]. Every event is also a
// record.Payload, so it travels through the same buffer and batch
// processor as logs and spans.
//
// [Throttler] filters mutation events through a per-node token bucket
// (lib/ratelimit). Changes to nodes inside a compound element such as
// an SVG drawing are charged to the drawing's root, so an animation
// touching hundreds of paths is limited as one unit. A mutation whose
// every change was throttled is dropped outright; a mutation that was
// empty to begin with is forwarded untouched.
//
// [Recorder] ties the pieces together for a recording session: it
// keeps a [NodeIndex] of the page structure current, throttles
// mutations, pushes surviving events to a sink, and when a node is
// throttled schedules one full snapshot shortly afterwards so the
// replay can recover whatever state was lost.
package replay
