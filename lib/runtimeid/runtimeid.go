// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package runtimeid derives runtime identifiers from Vault state.
// Identifiers are deterministic: the same record state always yields
// the same id, so planes can name a run without coordinating.
package runtimeid

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/yai-labs/yai/lib/vault"
)

// Prefix starts every runtime id.
const Prefix = "yai-rt-"

// domainKey separates runtime ids from any other BLAKE3 use of the
// same bytes. ASCII "yai.runtime.id", zero-padded to 32 bytes.
var domainKey = [32]byte{
	'y', 'a', 'i', '.', 'r', 'u', 'n', 't', 'i', 'm', 'e', '.', 'i', 'd',
}

// FromClock is the clock-only form: yai-rt-%08x of the low 32 bits of
// the logical clock. Two workspaces at the same clock share an id.
func FromClock(logicalClock uint64) string {
	return fmt.Sprintf("%s%08x", Prefix, uint32(logicalClock))
}

// Derive is the content-addressed form: the first 16 hex digits of a
// keyed BLAKE3 hash over the workspace id and the full 64-bit clock.
// Unlike FromClock it differs across workspaces.
func Derive(workspaceID string, logicalClock uint64) string {
	hasher, err := blake3.NewKeyed(domainKey[:])
	if err != nil {
		panic("runtimeid: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(workspaceID))
	hasher.Write([]byte{0})
	var clock [8]byte
	binary.BigEndian.PutUint64(clock[:], logicalClock)
	hasher.Write(clock[:])

	var digest [32]byte
	hasher.Sum(digest[:0])
	return Prefix + hex.EncodeToString(digest[:8])
}

// ForRecord derives the content-addressed id of a record's current
// state.
func ForRecord(r *vault.Record) string {
	return Derive(r.WorkspaceID(), r.LogicalClock())
}

// Valid reports whether id has either runtime id shape.
func Valid(id string) bool {
	digits, ok := strings.CutPrefix(id, Prefix)
	if !ok || (len(digits) != 8 && len(digits) != 16) {
		return false
	}
	_, err := hex.DecodeString(digits)
	return err == nil
}
