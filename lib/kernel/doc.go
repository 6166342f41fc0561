// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package kernel implements the workspace state machine. The lifecycle
// state lives in the Vault record's status word, and [Kernel.Transition]
// is the only code path that changes it.
//
// A transition is checked in a fixed order and the first failure wins:
//
//  1. both states must be in range (anything else means the shared
//     record is corrupt);
//  2. energy guard: energy_consumed <= energy_quota;
//  3. authority guard: RUNNING cannot be entered while authority_lock
//     is engaged;
//  4. external-effect guard: RUNNING cannot be entered while the
//     mailbox holds an external command and authority_lock is engaged;
//  5. the target must be a successor of the current state.
//
// Policy guards come before the graph check so a caller gets the
// specific reason (energy, authority, structure) for a refusal. Every
// decision, accepted or rejected, is emitted as an event.
package kernel
