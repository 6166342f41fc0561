// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package events defines the runtime's closed event taxonomy and the
// sinks that record events.
//
// An event type that is not in the taxonomy does not exist: [Validate]
// rejects it and no sink persists it. Events flow to a [Sink]; the
// kernel normally writes to a [Multi] of a [LogSink] (structured slog
// output) and a [Journal] (an append-only CBOR sequence per workspace,
// rotated into compressed segments).
package events
