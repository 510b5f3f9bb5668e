// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replay

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/beacon/lib/clock"
	"github.com/bureau-foundation/beacon/lib/ratelimit"
	"github.com/bureau-foundation/beacon/lib/record"
)

// DefaultResyncDelay is how long the recorder waits after a node is
// throttled before taking a full snapshot.
const DefaultResyncDelay = time.Second

// Sink accepts recorded events. Push reports whether the record was
// rejected (a full buffer, a stopped pipeline).
type Sink interface {
	Push(*record.Record) (rejected bool)
}

// Snapshotter serializes the current page tree for a resync.
type Snapshotter interface {
	Snapshot() (Node, error)
}

// SnapshotterFunc adapts a function to Snapshotter.
type SnapshotterFunc func() (Node, error)

func (f SnapshotterFunc) Snapshot() (Node, error) { return f() }

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	Sink Sink

	// Snapshotter is asked for a full snapshot after throttling. Nil
	// disables resynchronization; throttled changes are then lost
	// until the producer records its own snapshot.
	Snapshotter Snapshotter

	Limits ratelimit.Config

	// ResyncDelay defaults to DefaultResyncDelay. Blocks within the
	// delay share one snapshot.
	ResyncDelay time.Duration

	// CompoundTags defaults to DefaultCompoundTags.
	CompoundTags []string

	Clock  clock.Clock
	Logger *slog.Logger
}

// Recorder is a recording session: it keeps a NodeIndex of the page
// current, throttles mutations, forwards surviving events to a Sink,
// and schedules a full snapshot after any node is throttled.
type Recorder struct {
	sink        Sink
	snapshotter Snapshotter
	resyncDelay time.Duration
	clock       clock.Clock
	logger      *slog.Logger

	index     *NodeIndex
	throttler *Throttler

	// recordMu orders index updates, throttling, and pushes so the
	// sink sees events in the order the index applied them. The
	// throttler's block callback runs under it and must only touch
	// resyncMu.
	recordMu sync.Mutex
	closed   bool

	resyncMu    sync.Mutex
	resyncTimer *clock.Timer
	resyncDone  bool
}

// NewRecorder validates config and returns a running Recorder. Call
// Close to stop its timers.
func NewRecorder(config RecorderConfig) (*Recorder, error) {
	if config.Sink == nil {
		return nil, fmt.Errorf("replay: recorder sink is required")
	}
	if config.Clock == nil {
		return nil, fmt.Errorf("replay: recorder clock is required")
	}
	if config.ResyncDelay < 0 {
		return nil, fmt.Errorf("replay: resync delay must not be negative, got %v", config.ResyncDelay)
	}
	if config.ResyncDelay == 0 {
		config.ResyncDelay = DefaultResyncDelay
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	recorder := &Recorder{
		sink:        config.Sink,
		snapshotter: config.Snapshotter,
		resyncDelay: config.ResyncDelay,
		clock:       config.Clock,
		logger:      config.Logger,
		index:       NewNodeIndex(config.CompoundTags),
	}
	throttler, err := NewThrottler(ThrottlerConfig{
		Limits:        config.Limits,
		Resolver:      recorder.index,
		OnBlockedNode: recorder.nodeBlocked,
		Clock:         config.Clock,
	})
	if err != nil {
		return nil, err
	}
	recorder.throttler = throttler
	return recorder, nil
}

// Record records event at the clock's current time. It reports whether
// the event reached the sink.
func (r *Recorder) Record(event Event) bool {
	return r.RecordAt(r.clock.Now(), event)
}

// RecordAt records event with an explicit timestamp.
func (r *Recorder) RecordAt(timestamp time.Time, event Event) bool {
	if IsNil(event) {
		return false
	}

	r.recordMu.Lock()
	defer r.recordMu.Unlock()
	if r.closed {
		return false
	}

	forward := event
	switch typed := event.(type) {
	case *FullSnapshot:
		r.index.Reset(typed.Root)
	case *Mutation:
		// Adds go into the index before throttling so changes to the
		// new nodes resolve to their compound ancestors. Removes come
		// after so removed nodes still resolve while being throttled.
		// Both always apply: the index tracks the page, not the
		// recording.
		r.index.ApplyAdds(typed.Batch)
		forward = r.throttler.Throttle(typed)
		r.index.ApplyRemoves(typed.Batch)
	case *Meta, *Interaction, *Custom:
	default:
		panic(fmt.Sprintf("replay: unhandled event type %T", event))
	}
	if forward == nil {
		return false
	}
	return !r.sink.Push(record.New(timestamp.UnixNano(), forward))
}

// Index returns the recorder's node index.
func (r *Recorder) Index() *NodeIndex {
	return r.index
}

// Close stops the resync timer and the throttler's refill timer. Later
// records are ignored. Safe to call more than once.
func (r *Recorder) Close() {
	r.recordMu.Lock()
	r.closed = true
	r.recordMu.Unlock()

	r.resyncMu.Lock()
	r.resyncDone = true
	if r.resyncTimer != nil {
		r.resyncTimer.Stop()
		r.resyncTimer = nil
	}
	r.resyncMu.Unlock()

	r.throttler.Close()
}

func (r *Recorder) nodeBlocked(key NodeID) {
	r.logger.Warn("replay node throttled, dropping its mutations",
		"node_id", int64(key),
		"resync_delay", r.resyncDelay,
	)
	if r.snapshotter == nil {
		return
	}

	r.resyncMu.Lock()
	defer r.resyncMu.Unlock()
	if r.resyncDone || r.resyncTimer != nil {
		return
	}
	r.resyncTimer = r.clock.AfterFunc(r.resyncDelay, r.resync)
}

func (r *Recorder) resync() {
	r.resyncMu.Lock()
	if r.resyncDone {
		r.resyncMu.Unlock()
		return
	}
	r.resyncTimer = nil
	r.resyncMu.Unlock()

	root, err := r.snapshotter.Snapshot()
	if err != nil {
		r.logger.Warn("replay resync snapshot failed", "error", err)
		return
	}
	r.Record(&FullSnapshot{Root: root})
}
