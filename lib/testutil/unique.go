// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"strconv"
	"sync/atomic"
)

var workspaceCounter atomic.Uint64

// WorkspaceID returns a fresh workspace id ("ws-1", "ws-2", ...) that
// no other test in the binary has been given.
func WorkspaceID() string {
	return "ws-" + strconv.FormatUint(workspaceCounter.Add(1), 10)
}
