// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/bureau-foundation/beacon/lib/clock"
)

// Default limiter parameters.
const (
	DefaultCapacity       = 100
	DefaultRefillRate     = 10
	DefaultRefillInterval = time.Second
)

// Config holds the limiter parameters. Zero fields take the defaults.
type Config struct {
	// Capacity is the number of tokens a fresh bucket holds.
	Capacity int

	// RefillRate is the number of tokens added to each tracked bucket
	// per RefillInterval.
	RefillRate int

	RefillInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if c.RefillRate == 0 {
		c.RefillRate = DefaultRefillRate
	}
	if c.RefillInterval == 0 {
		c.RefillInterval = DefaultRefillInterval
	}
	return c
}

// Limiter is a set of token buckets keyed by K.
//
// Safe for concurrent use. The onBlocked callback runs on the
// goroutine that called Consume, after the limiter's lock is released,
// so it may call back into the limiter.
type Limiter[K comparable] struct {
	capacity   int
	refillRate int
	interval   time.Duration
	onBlocked  func(K)

	mu      sync.Mutex
	buckets map[K]*bucket
	timer   *clock.Timer
	closed  bool
}

type bucket struct {
	tokens int

	// notified is set when the bucket first ran dry and cleared only
	// when the bucket is forgotten, so onBlocked fires once per
	// blocking episode.
	notified bool
}

// New returns a limiter and starts its refill timer on clk. onBlocked
// may be nil. Call Close to stop the timer.
func New[K comparable](config Config, clk clock.Clock, onBlocked func(K)) (*Limiter[K], error) {
	config = config.withDefaults()
	if config.Capacity < 0 {
		return nil, fmt.Errorf("ratelimit: capacity must be positive, got %d", config.Capacity)
	}
	if config.RefillRate < 0 {
		return nil, fmt.Errorf("ratelimit: refill rate must be positive, got %d", config.RefillRate)
	}
	if config.RefillInterval < 0 {
		return nil, fmt.Errorf("ratelimit: refill interval must be positive, got %v", config.RefillInterval)
	}
	if clk == nil {
		return nil, fmt.Errorf("ratelimit: clock is required")
	}

	limiter := &Limiter[K]{
		capacity:   config.Capacity,
		refillRate: config.RefillRate,
		interval:   config.RefillInterval,
		onBlocked:  onBlocked,
		buckets:    make(map[K]*bucket),
	}
	limiter.mu.Lock()
	limiter.timer = clk.AfterFunc(limiter.interval, limiter.tick)
	limiter.mu.Unlock()
	return limiter, nil
}

// Allow is Consume with a cost of one.
func (l *Limiter[K]) Allow(key K) bool {
	return l.Consume(key, 1)
}

// Consume takes cost tokens from key's bucket. It returns false, and
// takes nothing, if the bucket is already empty. Otherwise the tokens
// are deducted (never below zero) and Consume returns true; if that
// deduction emptied the bucket for the first time in this episode,
// onBlocked(key) is called before Consume returns.
func (l *Limiter[K]) Consume(key K, cost int) bool {
	if cost < 0 {
		cost = 0
	}

	l.mu.Lock()
	current, ok := l.buckets[key]
	if !ok {
		current = &bucket{tokens: l.capacity}
		l.buckets[key] = current
	}
	if current.tokens == 0 {
		l.mu.Unlock()
		return false
	}
	current.tokens -= cost
	if current.tokens < 0 {
		current.tokens = 0
	}
	notify := current.tokens == 0 && !current.notified
	if notify {
		current.notified = true
	}
	l.mu.Unlock()

	if notify && l.onBlocked != nil {
		l.onBlocked(key)
	}
	return true
}

// Blocked reports whether key's bucket is currently empty, without
// consuming anything.
func (l *Limiter[K]) Blocked(key K) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.buckets[key]
	return ok && current.tokens == 0
}

// Tokens returns key's remaining tokens. Untracked keys have a full
// bucket.
func (l *Limiter[K]) Tokens(key K) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.buckets[key]; ok {
		return current.tokens
	}
	return l.capacity
}

// Tracked returns the number of keys with a partially drained bucket.
func (l *Limiter[K]) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Close stops the refill timer. Buckets keep their current tokens and
// Consume keeps working, but nothing refills. Safe to call more than
// once.
func (l *Limiter[K]) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.timer.Stop()
}

// tick refills every bucket and forgets the full ones, then re-arms the
// timer.
func (l *Limiter[K]) tick() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	for key, current := range l.buckets {
		current.tokens += l.refillRate
		if current.tokens >= l.capacity {
			delete(l.buckets, key)
		}
	}
	l.timer.Reset(l.interval)
}
