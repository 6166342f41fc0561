// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import "time"

// Fataler is the part of testing.TB the wait helpers need.
type Fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch, failing the test if
// none arrives within timeout or ch is closed first. what names the
// awaited event in the failure message.
//
//	err := testutil.RequireReceive(t, done, 5*time.Second, "engine stopping at HALT")
func RequireReceive[T any](t Fataler, ch <-chan T, timeout time.Duration, what string) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed before a value arrived", what)
		}
		return value
	case <-timer.C:
		t.Fatalf("%s: nothing received within %v", what, timeout)
	}
	panic("unreachable")
}

// RequireClosed waits for a done channel. A server goroutine closes
// one when Serve returns; the cleanup that cancels it then waits here.
//
//	testutil.RequireClosed(t, done, 5*time.Second, "server shutdown")
func RequireClosed(t Fataler, done <-chan struct{}, timeout time.Duration, what string) {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		t.Fatalf("%s: still running after %v", what, timeout)
	}
}
