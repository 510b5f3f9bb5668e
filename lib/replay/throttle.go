// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replay

import (
	"fmt"

	"github.com/bureau-foundation/beacon/lib/clock"
	"github.com/bureau-foundation/beacon/lib/ratelimit"
)

// ThrottlerConfig configures a Throttler.
type ThrottlerConfig struct {
	// Limits are the per-node token bucket parameters. Each change to
	// a node costs one token.
	Limits ratelimit.Config

	// Resolver maps changed nodes to throttling keys. Nil throttles
	// every node under its own id.
	Resolver NodeResolver

	// OnBlockedNode is called once when a key runs out of tokens, and
	// again only after the key has fully recovered and run out again.
	// It runs synchronously inside Throttle.
	OnBlockedNode func(NodeID)

	Clock clock.Clock
}

// Throttler drops mutation changes for nodes that change too often.
type Throttler struct {
	limiter  *ratelimit.Limiter[NodeID]
	resolver NodeResolver
}

// NewThrottler returns a Throttler with its own limiter. Call Close to
// stop the limiter's refill timer.
func NewThrottler(config ThrottlerConfig) (*Throttler, error) {
	limiter, err := ratelimit.New(config.Limits, config.Clock, config.OnBlockedNode)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	return &Throttler{limiter: limiter, resolver: config.Resolver}, nil
}

// Throttle filters a mutation event and returns what should be
// recorded, or nil if the event should be dropped.
//
// Non-mutation events are returned unchanged. A mutation that had no
// changes to begin with is also returned unchanged. A mutation whose
// changes were all throttled returns nil. Otherwise the result is a new
// Mutation holding only the allowed changes, in their original order;
// the input is not modified. A nil event, typed or not, returns nil.
func (t *Throttler) Throttle(event Event) Event {
	if IsNil(event) {
		return nil
	}
	switch typed := event.(type) {
	case *Mutation:
		return t.throttleMutation(typed)
	case *Meta, *FullSnapshot, *Interaction, *Custom:
		return event
	default:
		panic(fmt.Sprintf("replay: unhandled event type %T", event))
	}
}

func (t *Throttler) throttleMutation(mutation *Mutation) Event {
	original := mutation.Batch
	if original.Len() == 0 {
		return mutation
	}

	filtered := MutationBatch{
		Adds:       filterChanges(original.Adds, func(change NodeAdd) bool { return t.allow(change.ParentID) }),
		Removes:    filterChanges(original.Removes, func(change NodeRemove) bool { return t.allow(change.ParentID) }),
		Attributes: filterChanges(original.Attributes, func(change AttributeChange) bool { return t.allow(change.ID) }),
		Texts:      filterChanges(original.Texts, func(change TextChange) bool { return t.allow(change.ID) }),
	}
	if filtered.Len() == 0 {
		return nil
	}
	if filtered.Len() == original.Len() {
		return mutation
	}
	return &Mutation{Batch: filtered}
}

func (t *Throttler) allow(id NodeID) bool {
	key := id
	if t.resolver != nil {
		key = t.resolver.ThrottleKey(id)
	}
	return t.limiter.Allow(key)
}

// Blocked reports whether changes under key are currently being
// dropped.
func (t *Throttler) Blocked(key NodeID) bool {
	return t.limiter.Blocked(key)
}

// Close stops the limiter's refill timer. Safe to call more than once.
func (t *Throttler) Close() {
	t.limiter.Close()
}

// filterChanges keeps the changes allow accepts. Returns nil rather
// than an empty slice so filtered batches encode like unfilled ones.
func filterChanges[T any](changes []T, allow func(T) bool) []T {
	var kept []T
	for _, change := range changes {
		if allow(change) {
			kept = append(kept, change)
		}
	}
	return kept
}
