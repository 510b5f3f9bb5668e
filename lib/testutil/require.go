// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// DefaultTimeout bounds every channel wait. Timer-driven code runs on a
// fake clock in tests, so reaching this means a goroutine is stuck.
const DefaultTimeout = 5 * time.Second

// TB is the subset of testing.TB the helpers need.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch, failing the test if
// none arrives within timeout or ch is closed first.
//
//	batch := testutil.RequireReceive(t, exporter.batches, testutil.DefaultTimeout, "first export")
func RequireReceive[T any](t TB, ch <-chan T, timeout time.Duration, msgAndArgs ...any) T {
	t.Helper()
	deadline := time.NewTimer(timeout) //nolint:realclock test hang prevention
	defer deadline.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed before a value arrived: %s", describe(msgAndArgs))
		}
		return value
	case <-deadline.C:
		t.Fatalf("nothing received within %v: %s", timeout, describe(msgAndArgs))
	}
	var zero T
	return zero
}

// RequireSend delivers value on ch, failing the test if the receiver
// does not take it within timeout.
func RequireSend[T any](t TB, ch chan<- T, value T, timeout time.Duration, msgAndArgs ...any) {
	t.Helper()
	deadline := time.NewTimer(timeout) //nolint:realclock test hang prevention
	defer deadline.Stop()
	select {
	case ch <- value:
	case <-deadline.C:
		t.Fatalf("send not accepted within %v: %s", timeout, describe(msgAndArgs))
	}
}

// RequireClosed waits for ch to close (or deliver), failing the test
// after timeout. Used for done channels.
//
//	testutil.RequireClosed(t, exporterDone, testutil.DefaultTimeout, "exporter shut down")
func RequireClosed(t TB, ch <-chan struct{}, timeout time.Duration, msgAndArgs ...any) {
	t.Helper()
	deadline := time.NewTimer(timeout) //nolint:realclock test hang prevention
	defer deadline.Stop()
	select {
	case <-ch:
	case <-deadline.C:
		t.Fatalf("channel still open after %v: %s", timeout, describe(msgAndArgs))
	}
}

// describe renders the optional trailing message: a plain value, or a
// format string followed by its arguments.
func describe(msgAndArgs []any) string {
	switch {
	case len(msgAndArgs) == 0:
		return "(no message)"
	case len(msgAndArgs) == 1:
		return fmt.Sprint(msgAndArgs[0])
	}
	format, ok := msgAndArgs[0].(string)
	if !ok {
		return fmt.Sprint(msgAndArgs...)
	}
	return fmt.Sprintf(format, msgAndArgs[1:]...)
}
