// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chunk

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bureau-foundation/beacon/lib/clock"
)

// ErrDigestMismatch is returned when a reassembled payload does not
// match the digest its chunks carried.
var ErrDigestMismatch = errors.New("chunk: reassembled payload does not match digest")

const (
	DefaultMaxPending = 64
	DefaultMaxAge     = 2 * time.Minute

	// DefaultMaxChunks bounds the chunk count a payload may claim.
	DefaultMaxChunks = 1024

	// DefaultMaxPayloadBytes bounds the bytes held for one payload.
	DefaultMaxPayloadBytes = 256 << 20
)

// Fragment is a chunk as it travels: the chunk plus the identity and
// digest of the payload it belongs to.
type Fragment struct {
	PayloadID string
	Digest    Digest
	Chunk
}

// ReassemblerConfig bounds a Reassembler's memory.
type ReassemblerConfig struct {
	// MaxPending is the most incomplete payloads held at once. When a
	// new payload would exceed it, the oldest incomplete one is
	// discarded.
	MaxPending int

	// MaxAge discards incomplete payloads whose first chunk arrived
	// longer ago than this.
	MaxAge time.Duration

	// MaxChunks rejects fragments whose Total exceeds it. Total comes
	// off the network, so it is checked before anything is allocated.
	MaxChunks int

	// MaxPayloadBytes discards a payload once the data held for it
	// exceeds this.
	MaxPayloadBytes int

	Clock clock.Clock
}

// Reassembler collects fragments of many payloads, arriving in any
// order and possibly duplicated, and returns each payload once all of
// its chunks are present. Safe for concurrent use.
//
// A completed payload stays held until the caller reports the outcome
// of handling it. After Done it is forgotten. After Retry the next
// fragment of it, typically the resent final chunk, returns the
// payload again, so a failed delivery does not lose chunks that were
// already acknowledged.
type Reassembler struct {
	maxPending      int
	maxAge          time.Duration
	maxChunks       int
	maxPayloadBytes int
	clock           clock.Clock

	mu      sync.Mutex
	pending map[string]*partial
	order   []string
	evicted uint64
}

type partial struct {
	firstSeen time.Time
	digest    Digest
	chunks    []Chunk
	present   []bool
	received  int
	bytes     int

	// assembled is set once every chunk is present. claimed is true
	// while the caller is handling it.
	assembled []byte
	claimed   bool
}

// NewReassembler returns an empty Reassembler.
func NewReassembler(config ReassemblerConfig) (*Reassembler, error) {
	if config.Clock == nil {
		return nil, fmt.Errorf("chunk: reassembler clock is required")
	}
	if config.MaxPending < 0 || config.MaxAge < 0 || config.MaxChunks < 0 || config.MaxPayloadBytes < 0 {
		return nil, fmt.Errorf("chunk: reassembler bounds must not be negative (max pending %d, max age %v, max chunks %d, max payload bytes %d)",
			config.MaxPending, config.MaxAge, config.MaxChunks, config.MaxPayloadBytes)
	}
	if config.MaxPending == 0 {
		config.MaxPending = DefaultMaxPending
	}
	if config.MaxAge == 0 {
		config.MaxAge = DefaultMaxAge
	}
	if config.MaxChunks == 0 {
		config.MaxChunks = DefaultMaxChunks
	}
	if config.MaxPayloadBytes == 0 {
		config.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	return &Reassembler{
		maxPending:      config.MaxPending,
		maxAge:          config.MaxAge,
		maxChunks:       config.MaxChunks,
		maxPayloadBytes: config.MaxPayloadBytes,
		clock:           config.Clock,
		pending:         make(map[string]*partial),
	}, nil
}

// Add records fragment. When it completes its payload, Add returns the
// payload and true, and the caller must follow with Done or Retry. A
// duplicate of a chunk already held is ignored. A payload whose bytes
// do not match a non-zero digest is discarded with ErrDigestMismatch.
func (r *Reassembler) Add(fragment Fragment) ([]byte, bool, error) {
	total, index := fragment.Total, fragment.Index
	if total <= 0 {
		return nil, false, fmt.Errorf("chunk: payload %q: total %d must be positive", fragment.PayloadID, total)
	}
	if total > r.maxChunks {
		return nil, false, fmt.Errorf("chunk: payload %q: total %d exceeds the limit of %d chunks", fragment.PayloadID, total, r.maxChunks)
	}
	if index < 0 || index >= total {
		return nil, false, fmt.Errorf("chunk: payload %q: index %d out of range for %d chunks", fragment.PayloadID, index, total)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.expireLocked(now)

	current, ok := r.pending[fragment.PayloadID]
	if !ok {
		if len(r.pending) >= r.maxPending {
			r.evictOldestLocked()
		}
		current = &partial{
			firstSeen: now,
			digest:    fragment.Digest,
			chunks:    make([]Chunk, total),
			present:   make([]bool, total),
		}
		r.pending[fragment.PayloadID] = current
		r.order = append(r.order, fragment.PayloadID)
	}
	if len(current.chunks) != total {
		return nil, false, fmt.Errorf("chunk: payload %q: chunk %d reports %d total, earlier chunks %d",
			fragment.PayloadID, index, total, len(current.chunks))
	}
	if current.digest != fragment.Digest {
		return nil, false, fmt.Errorf("chunk: payload %q: chunk %d carries a different digest", fragment.PayloadID, index)
	}
	if current.assembled != nil {
		if current.claimed {
			return nil, false, nil
		}
		current.claimed = true
		return current.assembled, true, nil
	}
	if current.present[index] {
		return nil, false, nil
	}
	if current.bytes+len(fragment.Data) > r.maxPayloadBytes {
		r.removeLocked(fragment.PayloadID)
		return nil, false, fmt.Errorf("chunk: payload %q: exceeds the limit of %d bytes", fragment.PayloadID, r.maxPayloadBytes)
	}
	current.chunks[index] = fragment.Chunk
	current.present[index] = true
	current.received++
	current.bytes += len(fragment.Data)
	if current.received < total {
		return nil, false, nil
	}

	payload, err := Join(current.chunks)
	if err != nil {
		r.removeLocked(fragment.PayloadID)
		return nil, false, err
	}
	if !current.digest.IsZero() && DigestOf(payload) != current.digest {
		r.removeLocked(fragment.PayloadID)
		return nil, false, fmt.Errorf("payload %q: %w", fragment.PayloadID, ErrDigestMismatch)
	}
	if payload == nil {
		payload = []byte{}
	}
	current.assembled = payload
	current.claimed = true
	return payload, true, nil
}

// Done forgets a completed payload once it has been handled, whether
// it succeeded or failed permanently.
func (r *Reassembler) Done(payloadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.pending[payloadID]; ok && current.assembled != nil {
		r.removeLocked(payloadID)
	}
}

// Retry keeps a completed payload for another attempt: the next
// fragment of it makes Add return the payload again.
func (r *Reassembler) Retry(payloadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.pending[payloadID]; ok {
		current.claimed = false
	}
}

// Pending returns the number of payloads held, incomplete or awaiting
// Done.
func (r *Reassembler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Evicted returns the number of incomplete payloads discarded for age
// or to make room.
func (r *Reassembler) Evicted() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evicted
}

// expireLocked drops payloads older than maxAge. r.order is in
// first-seen order, so expiry stops at the first young payload.
func (r *Reassembler) expireLocked(now time.Time) {
	for len(r.order) > 0 {
		oldest := r.pending[r.order[0]]
		if now.Sub(oldest.firstSeen) <= r.maxAge {
			return
		}
		r.evictOldestLocked()
	}
}

func (r *Reassembler) evictOldestLocked() {
	if len(r.order) == 0 {
		return
	}
	delete(r.pending, r.order[0])
	r.order = r.order[1:]
	r.evicted++
}

func (r *Reassembler) removeLocked(payloadID string) {
	delete(r.pending, payloadID)
	for i, id := range r.order {
		if id == payloadID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
