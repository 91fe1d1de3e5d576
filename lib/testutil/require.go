// Copyright 2026 The SOMOD Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"time"
)

// Fataler is the subset of testing.TB the channel helpers need.
type Fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value sent on ch, failing the test if
// none arrives within timeout or ch is closed first. what describes the
// awaited event for the failure message.
//
//	composition := testutil.RequireReceive(t, results, 5*time.Second, "initial composition")
func RequireReceive[T any](t Fataler, ch <-chan T, timeout time.Duration, what string) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed", what)
		}
		return value
	case <-timer.C:
		t.Fatalf("%s: nothing received after %v", what, timeout)
	}
	panic("unreachable")
}

// RequireEventually receives from ch until accept returns true for a
// value, and returns that value. Values rejected along the way are
// dropped. The whole wait is bounded by timeout.
func RequireEventually[T any](t Fataler, ch <-chan T, timeout time.Duration, what string, accept func(T) bool) T {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("%s: condition not met after %v", what, timeout)
		}
		if value := RequireReceive(t, ch, remaining, what); accept(value) {
			return value
		}
	}
}
