// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package command defines the command identifiers carried by the control
// protocol and the static classification table that decides which
// commands have effects outside the runtime.
//
// The table is shared by every plane: the wire layer uses it to decide
// whether a request needs an armed operator, and the vault guards use it
// to decide whether the authority lock vetoes a command. Both must agree,
// so there is exactly one table and it lives here.
package command

import (
	"fmt"
	"strconv"
	"strings"
)

// ID identifies a control protocol command. The high byte groups the
// command family (0x01 control, 0x02 storage, 0x03 cognition).
type ID uint32

const (
	Ping        ID = 0x0101
	Handshake   ID = 0x0102
	Status      ID = 0x0103
	Control     ID = 0x0104
	Noop        ID = 0x0105
	Reconfigure ID = 0x0106
	Transition  ID = 0x0107

	StoragePut ID = 0x0201
	StorageGet ID = 0x0202
	StorageRPC ID = 0x0203

	Inference    ID = 0x0301
	ProviderRPC  ID = 0x0302
	EmbeddingRPC ID = 0x0303
)

// Class is a bitmask describing the effect profile of a command.
type Class uint32

const (
	// ClassControl marks commands that only touch runtime bookkeeping.
	ClassControl Class = 1 << 0

	// ClassExternal marks commands whose effects leave the process
	// boundary: disk writes, network calls, model inference.
	ClassExternal Class = 1 << 1

	// ClassIrreversible marks commands whose effects cannot be undone
	// by a later command.
	ClassIrreversible Class = 1 << 2
)

type entry struct {
	name  string
	class Class
}

var table = map[ID]entry{
	Ping:        {"PING", ClassControl},
	Handshake:   {"HANDSHAKE", ClassControl},
	Status:      {"STATUS", ClassControl},
	Control:     {"CONTROL", ClassControl},
	Noop:        {"NOOP", ClassControl},
	Reconfigure: {"RECONFIGURE", ClassControl | ClassExternal | ClassIrreversible},
	Transition:  {"TRANSITION", ClassControl},

	StoragePut: {"STORAGE_PUT", ClassExternal},
	StorageGet: {"STORAGE_GET", 0},
	StorageRPC: {"STORAGE_RPC", ClassExternal},

	Inference:    {"INFERENCE", ClassExternal},
	ProviderRPC:  {"PROVIDER_RPC", ClassExternal},
	EmbeddingRPC: {"EMBEDDING_RPC", ClassExternal},
}

// ClassOf returns the effect class of id. Unknown commands have class 0.
func ClassOf(id ID) Class {
	return table[id].class
}

// Known reports whether id is in the command table.
func Known(id ID) bool {
	_, ok := table[id]
	return ok
}

// Effectful reports whether the command has an external or
// irreversible effect and therefore needs authority.
func (c Class) Effectful() bool {
	return c&(ClassExternal|ClassIrreversible) != 0
}

// Has reports whether every bit in flag is set.
func (c Class) Has(flag Class) bool {
	return c&flag == flag
}

// String returns the symbolic command name, or a hex literal for ids
// outside the table.
func (id ID) String() string {
	if e, ok := table[id]; ok {
		return e.name
	}
	return fmt.Sprintf("0x%04x", uint32(id))
}

// Parse resolves a command name (case-insensitive) or a numeric literal
// ("0x0101", "257") to an ID.
func Parse(s string) (ID, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for id, e := range table {
		if e.name == upper {
			return id, nil
		}
	}
	value, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown command %q", s)
	}
	return ID(value), nil
}
