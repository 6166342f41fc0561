// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"fmt"
	"unsafe"
)

// Size is the exact size of a Vault record.
const Size = 1448

const (
	WorkspaceIDCapacity = 64
	TraceIDCapacity     = 64
	ResponseCapacity    = 1024
	ErrorCapacity       = 256
)

const (
	offStatus           = 0
	offEnergyQuota      = 4
	offEnergyConsumed   = 8
	offWorkspaceID      = 12
	offTraceID          = 76
	offAuthorityLock    = 140
	offLastCommandID    = 144
	offCommandSeq       = 148
	offLastProcessedSeq = 152
	offLastResult       = 156
	offResponse         = 160
	offLastError        = 1184
	offLogicalClock     = 1440
)

// layout mirrors the record as a Go struct so the compiler computes
// the offsets independently of the constants above.
type layout struct {
	Status           uint32
	EnergyQuota      uint32
	EnergyConsumed   uint32
	WorkspaceID      [WorkspaceIDCapacity]byte
	TraceID          [TraceIDCapacity]byte
	AuthorityLock    bool
	_                [3]byte
	LastCommandID    uint32
	CommandSeq       uint32
	LastProcessedSeq uint32
	LastResult       uint32
	Response         [ResponseCapacity]byte
	LastError        [ErrorCapacity]byte
	LogicalClock     uint64
}

// CheckABI verifies that the accessor offsets match the record layout.
// Binaries call it before mapping any segment and refuse to start on a
// mismatch.
func CheckABI() error {
	var l layout
	checks := []struct {
		name     string
		got      uintptr
		expected uintptr
	}{
		{"status", unsafe.Offsetof(l.Status), offStatus},
		{"energy_quota", unsafe.Offsetof(l.EnergyQuota), offEnergyQuota},
		{"energy_consumed", unsafe.Offsetof(l.EnergyConsumed), offEnergyConsumed},
		{"workspace_id", unsafe.Offsetof(l.WorkspaceID), offWorkspaceID},
		{"trace_id", unsafe.Offsetof(l.TraceID), offTraceID},
		{"authority_lock", unsafe.Offsetof(l.AuthorityLock), offAuthorityLock},
		{"last_command_id", unsafe.Offsetof(l.LastCommandID), offLastCommandID},
		{"command_seq", unsafe.Offsetof(l.CommandSeq), offCommandSeq},
		{"last_processed_seq", unsafe.Offsetof(l.LastProcessedSeq), offLastProcessedSeq},
		{"last_result", unsafe.Offsetof(l.LastResult), offLastResult},
		{"response_buffer", unsafe.Offsetof(l.Response), offResponse},
		{"last_error", unsafe.Offsetof(l.LastError), offLastError},
		{"logical_clock", unsafe.Offsetof(l.LogicalClock), offLogicalClock},
		{"size", unsafe.Sizeof(l), Size},
	}
	for _, check := range checks {
		if check.got != check.expected {
			return fmt.Errorf("vault ABI drift: %s at %d, want %d", check.name, check.got, check.expected)
		}
	}
	return nil
}
