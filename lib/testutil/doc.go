// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for yai packages.
//
// [SocketDir] creates a short temporary directory in /tmp for Unix
// domain sockets, whose paths are limited to 108 bytes. [HomeDir]
// builds a throwaway home with the ~/.yai/run tree so session and
// storage tests never touch the real one, and [ShmDir] gives vault
// tests a private directory in place of /dev/shm.
//
// [RequireReceive] and [RequireClosed] bound every wait on a goroutine
// so a hung server fails the test instead of the whole binary.
// [WorkspaceID] hands out workspace ids that never collide.
//
// All helpers call t.Fatalf on failure.
package testutil
