// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine is the engine process's side of the Vault: it maps a
// workspace's core segment and auxiliary channels, spends energy on
// behalf of storage and provider callers, and drains the command
// mailbox the control plane writes into.
//
// The engine never writes the status word directly. Every state change
// it wants (SUSPENDED after a denied external command, HALT after a
// reconfigure, ERROR after an unknown command or an emergency) is
// requested through [kernel.Kernel.Transition] and is subject to the
// same guards as any other transition. A rejected request is logged and
// the record is left as it was.
package engine
