// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"sync/atomic"

	"github.com/yai-labs/yai/lib/command"
)

// DefaultEnergyQuota is the budget given to a freshly bootstrapped
// record when the caller does not choose one.
const DefaultEnergyQuota = 1000

// Result codes stored in last_result.
const (
	ResultNone  uint32 = 0
	ResultOK    uint32 = 1
	ResultError uint32 = 0xFFFFFFFF
)

// statusPreboot is the PREBOOT state in the kernel's numbering. A new
// record starts there.
const statusPreboot = 1

// BootstrapDefaults prepares a record for a workspace. A fresh record
// (no workspace id, no quota, clock at zero) is zeroed and starts in
// PREBOOT with the authority lock engaged. On a populated record only
// the gaps are filled: an existing workspace id or non-zero quota is
// never overwritten, so calling this twice is harmless.
//
// quota of zero selects DefaultEnergyQuota. Reports whether the record
// was fresh.
func BootstrapDefaults(r *Record, workspaceID string, quota uint32) bool {
	fresh := r.WorkspaceID() == "" && r.EnergyQuota() == 0 && r.LogicalClock() == 0
	if fresh {
		clear(r.mem)
		r.StoreStatus(statusPreboot)
		r.SetAuthorityLock(true)
	}
	if r.WorkspaceID() == "" {
		writeFixed(r.mem[offWorkspaceID:offWorkspaceID+WorkspaceIDCapacity], workspaceID)
	}
	if r.EnergyQuota() == 0 {
		if quota == 0 {
			quota = DefaultEnergyQuota
		}
		r.SetEnergyQuota(quota)
	}
	return fresh
}

// ConsumeEnergy spends amount from the budget. It fails without
// touching the record when the authority lock is engaged or when the
// spend would take energy_consumed past energy_quota. The sum is
// computed in 64 bits so it cannot wrap.
//
// This is the only sanctioned way to spend budget; every effectful
// operation goes through it.
func ConsumeEnergy(r *Record, amount uint32) bool {
	consumed := r.word(offEnergyConsumed)
	for {
		if r.AuthorityLocked() {
			return false
		}
		current := atomic.LoadUint32(consumed)
		if uint64(current)+uint64(amount) > uint64(r.EnergyQuota()) {
			return false
		}
		if atomic.CompareAndSwapUint32(consumed, current, current+amount) {
			return true
		}
	}
}

// EnergyWithinQuota reports whether energy_consumed <= energy_quota.
func EnergyWithinQuota(r *Record) bool {
	return r.EnergyConsumed() <= r.EnergyQuota()
}

// AllowsCommand reports whether the authority lock permits id. Only
// commands classified as external or irreversible are vetoed.
func AllowsCommand(r *Record, id command.ID) bool {
	if !command.ClassOf(id).Effectful() {
		return true
	}
	return !r.AuthorityLocked()
}

// SetError records message in the error buffer (truncated, printable)
// and marks the last result as failed.
func SetError(r *Record, message string) {
	writeFixed(r.mem[offLastError:offLastError+ErrorCapacity], message)
	r.SetLastResult(ResultError)
}
