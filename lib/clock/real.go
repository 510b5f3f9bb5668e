// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Real returns the wall clock. Production components use it when no
// Clock is configured.
func Real() Clock { return wall{} }

type wall struct{}

func (wall) Now() time.Time { return time.Now() }

func (wall) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (wall) AfterFunc(d time.Duration, f func()) *Timer {
	underlying := time.AfterFunc(d, f)
	return &Timer{stopFunc: underlying.Stop, resetFunc: underlying.Reset}
}

func (wall) NewTicker(d time.Duration) *Ticker {
	underlying := time.NewTicker(d)
	return &Ticker{C: underlying.C, stopFunc: underlying.Stop, resetFunc: underlying.Reset}
}

// OrReal returns c, or the wall clock when c is nil.
func OrReal(c Clock) Clock {
	if c == nil {
		return Real()
	}
	return c
}
