// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the time operations used by the pipeline. Every
// component that would otherwise call time.Now, time.After,
// time.NewTicker, or time.AfterFunc takes a Clock instead.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d
	// has elapsed. If d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f once d has elapsed and returns a Timer that
	// can cancel or re-arm the call. The Timer's C field is nil.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker returns a Ticker delivering ticks every d. Panics if
	// d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers periodic ticks on C. The channel has capacity 1; a
// consumer that falls behind misses ticks rather than queueing them.
type Ticker struct {
	C <-chan time.Time

	stopFunc  func()
	resetFunc func(time.Duration)
}

// Stop turns off the ticker. C is not closed.
func (t *Ticker) Stop() { t.stopFunc() }

// Reset restarts the ticker with a new interval.
func (t *Ticker) Reset(d time.Duration) { t.resetFunc(d) }

// Timer is a scheduled callback created by AfterFunc.
type Timer struct {
	// C is nil for AfterFunc timers.
	C <-chan time.Time

	stopFunc  func() bool
	resetFunc func(time.Duration) bool
}

// Stop prevents the Timer from firing. Returns false if the timer had
// already fired or been stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Reset re-arms the timer to fire after d. Calling Reset from inside
// the timer's own callback is supported and is how periodic AfterFunc
// loops are built. Returns true if the timer was still pending.
func (t *Timer) Reset(d time.Duration) bool { return t.resetFunc(d) }
