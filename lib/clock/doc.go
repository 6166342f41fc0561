// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that wait or timestamp (the engine poll loop, the cortex
// ticker, supervisor restart backoff, event timestamps) take a Clock
// instead of calling the time package. Production code passes Real();
// tests pass Fake() and drive time with Advance:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go supervisor.Run(ctx)
//	c.WaitForTimers(1)
//	c.Advance(2 * time.Second)
//
// WaitForTimers closes the race between a goroutine registering a
// timer and the test advancing past it.
package clock
