// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package traceattr remembers attributes attached to a trace so that
// every log record emitted within that trace can carry them.
//
// A [Store] is owned by whoever creates it (normally a beacon.Client)
// and bounded two ways: at most MaxTraces traces are held, least
// recently used evicted first, and a trace not updated for TTL is
// swept on a timer. Traces end without telling anyone, so without both
// bounds the store would grow for the life of the process.
package traceattr

import (
	"fmt"
	"maps"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bureau-foundation/beacon/lib/clock"
)

const (
	DefaultMaxTraces     = 1024
	DefaultTTL           = 10 * time.Minute
	DefaultSweepInterval = time.Minute
)

// Config configures a Store. Zero values take the defaults; Clock is
// required.
type Config struct {
	MaxTraces     int
	TTL           time.Duration
	SweepInterval time.Duration
	Clock         clock.Clock
}

// Store maps trace IDs to attribute sets. Safe for concurrent use.
type Store struct {
	ttl      time.Duration
	interval time.Duration
	clock    clock.Clock

	// mu makes read-modify-write updates atomic; the cache is also
	// internally locked.
	mu     sync.Mutex
	cache  *lru.Cache[string, entry]
	timer  *clock.Timer
	closed bool
}

type entry struct {
	attributes map[string]any
	expires    time.Time
}

// New returns a Store and starts its sweep timer. Call Close to stop
// the timer.
func New(config Config) (*Store, error) {
	if config.Clock == nil {
		return nil, fmt.Errorf("traceattr: clock is required")
	}
	if config.MaxTraces < 0 || config.TTL < 0 || config.SweepInterval < 0 {
		return nil, fmt.Errorf("traceattr: bounds must not be negative (max traces %d, ttl %v, sweep interval %v)",
			config.MaxTraces, config.TTL, config.SweepInterval)
	}
	if config.MaxTraces == 0 {
		config.MaxTraces = DefaultMaxTraces
	}
	if config.TTL == 0 {
		config.TTL = DefaultTTL
	}
	if config.SweepInterval == 0 {
		config.SweepInterval = DefaultSweepInterval
	}

	cache, err := lru.New[string, entry](config.MaxTraces)
	if err != nil {
		return nil, fmt.Errorf("traceattr: %w", err)
	}
	store := &Store{
		ttl:      config.TTL,
		interval: config.SweepInterval,
		clock:    config.Clock,
		cache:    cache,
	}
	store.mu.Lock()
	store.timer = config.Clock.AfterFunc(config.SweepInterval, store.sweep)
	store.mu.Unlock()
	return store, nil
}

// Set merges attributes into the trace's set, replacing values for
// keys already present, and restarts the trace's TTL. The map is
// copied.
func (s *Store) Set(traceID string, attributes map[string]any) {
	if s == nil || traceID == "" || len(attributes) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(map[string]any, len(attributes))
	if existing, ok := s.cache.Peek(traceID); ok && s.live(existing) {
		maps.Copy(merged, existing.attributes)
	}
	maps.Copy(merged, attributes)
	s.cache.Add(traceID, entry{attributes: merged, expires: s.clock.Now().Add(s.ttl)})
}

// Get returns a copy of the trace's attributes, or nil if the trace is
// unknown or expired.
func (s *Store) Get(traceID string) map[string]any {
	if s == nil || traceID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.cache.Get(traceID)
	if !ok {
		return nil
	}
	if !s.live(current) {
		s.cache.Remove(traceID)
		return nil
	}
	return maps.Clone(current.attributes)
}

// Delete forgets a trace.
func (s *Store) Delete(traceID string) {
	if s == nil {
		return
	}
	s.cache.Remove(traceID)
}

// Len returns the number of traces held, including expired ones not
// yet swept.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return s.cache.Len()
}

// Close stops the sweep timer. The store stays usable; expired entries
// are then only dropped when read. Safe to call more than once.
func (s *Store) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.timer.Stop()
}

func (s *Store) live(current entry) bool {
	return s.clock.Now().Before(current.expires)
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, traceID := range s.cache.Keys() {
		if current, ok := s.cache.Peek(traceID); ok && !s.live(current) {
			s.cache.Remove(traceID)
		}
	}
	s.timer.Reset(s.interval)
}
