// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Fake returns a FakeClock set to initial. Time stands still until
// Advance is called.
//
// FakeClock is safe for concurrent use.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a deterministic Clock for tests.
//
// AfterFunc callbacks run synchronously inside Advance in deadline
// order. A callback may call Reset on its own Timer, but must not call
// Advance.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*waiter
	changed *sync.Cond
}

// waiter is one pending After, AfterFunc, or ticker registration.
type waiter struct {
	deadline time.Time

	// channel is set for After and ticker waiters.
	channel chan time.Time

	// callback is set for AfterFunc waiters.
	callback func()

	// interval is non-zero for tickers, which are rescheduled at
	// deadline+interval after firing.
	interval time.Duration

	stopped bool
	fired   bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives once the clock has advanced by
// d. A non-positive d is ready immediately and registers nothing.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.current
		return channel
	}
	c.addLocked(&waiter{deadline: c.current.Add(d), channel: channel})
	return channel
}

// AfterFunc schedules f for when the clock has advanced by d. A
// non-positive d calls f before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{
			stopFunc:  func() bool { return false },
			resetFunc: func(time.Duration) bool { return false },
		}
	}

	c.mu.Lock()
	pending := &waiter{deadline: c.current.Add(d), callback: f}
	c.addLocked(pending)
	c.mu.Unlock()

	return &Timer{
		stopFunc: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if pending.stopped || pending.fired {
				return false
			}
			pending.stopped = true
			c.removeLocked(pending)
			return true
		},
		resetFunc: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasActive := !pending.stopped && !pending.fired
			pending.deadline = c.current.Add(d)
			if !wasActive {
				// Fired and stopped waiters were dropped from the
				// pending list, so the re-armed one goes back in.
				pending.stopped = false
				pending.fired = false
				c.addLocked(pending)
			}
			return wasActive
		},
	}
}

// NewTicker returns a Ticker that fires every d of advanced time.
// Panics if d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	ticker := &waiter{
		deadline: c.current.Add(d),
		channel:  channel,
		interval: d,
	}
	c.addLocked(ticker)

	return &Ticker{
		C: channel,
		stopFunc: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if !ticker.stopped {
				ticker.stopped = true
				c.removeLocked(ticker)
			}
		},
		resetFunc: func(d time.Duration) {
			c.mu.Lock()
			defer c.mu.Unlock()
			ticker.interval = d
			ticker.deadline = c.current.Add(d)
			if ticker.stopped {
				ticker.stopped = false
				c.addLocked(ticker)
			}
		},
	}
}

// Advance moves the clock forward by d, firing every waiter whose
// deadline falls within the span in deadline order. While a waiter
// fires, Now reports its deadline, so a callback that re-arms its own
// timer is scheduled relative to when it fired, as it would be with a
// real clock. A ticker spanned by several intervals fires once per
// interval; ticks that do not fit in its channel are dropped.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	for {
		next, firedAt := c.nextExpired(target)
		if next == nil {
			break
		}
		if next.callback != nil {
			next.callback()
			continue
		}
		select {
		case next.channel <- firedAt:
		default:
		}
	}

	c.mu.Lock()
	c.current = target
	c.mu.Unlock()
}

// nextExpired takes the earliest waiter due at or before target off
// the pending list (tickers are rescheduled instead), moves the clock
// to its deadline, and returns it. Returns nil when nothing is due.
func (c *FakeClock) nextExpired(target time.Time) (*waiter, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var earliest *waiter
	for _, w := range c.waiters {
		if w.stopped || w.deadline.After(target) {
			continue
		}
		if earliest == nil || w.deadline.Before(earliest.deadline) {
			earliest = w
		}
	}
	if earliest == nil {
		return nil, time.Time{}
	}

	firedAt := earliest.deadline
	if firedAt.After(c.current) {
		c.current = firedAt
	}
	if earliest.interval > 0 {
		earliest.deadline = earliest.deadline.Add(earliest.interval)
	} else {
		earliest.fired = true
		c.removeLocked(earliest)
	}
	return earliest, firedAt
}

// WaitForTimers blocks until at least n waiters are pending.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of pending (not stopped, not fired)
// waiters.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *FakeClock) addLocked(w *waiter) {
	c.waiters = append(c.waiters, w)
	c.changed.Broadcast()
}

func (c *FakeClock) removeLocked(target *waiter) {
	for index, w := range c.waiters {
		if w == target {
			c.waiters = append(c.waiters[:index], c.waiters[index+1:]...)
			return
		}
	}
}

func (c *FakeClock) pendingLocked() int {
	count := 0
	for _, w := range c.waiters {
		if !w.stopped {
			count++
		}
	}
	return count
}
