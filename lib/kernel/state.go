// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"fmt"
	"strings"
)

// State is a kernel lifecycle state. The numeric values are stored in
// the shared Vault record and are part of its ABI.
type State uint32

const (
	Halt State = iota
	Preboot
	Ready
	HandoffComplete
	Running
	Suspended
	Error

	stateCount
)

var stateNames = [stateCount]string{
	Halt:            "HALT",
	Preboot:         "PREBOOT",
	Ready:           "READY",
	HandoffComplete: "HANDOFF_COMPLETE",
	Running:         "RUNNING",
	Suspended:       "SUSPENDED",
	Error:           "ERROR",
}

// successors is the transition graph as a bitmask per state.
var successors = [stateCount]uint32{
	Halt:            1 << Preboot,
	Preboot:         1 << Ready,
	Ready:           1<<Running | 1<<HandoffComplete,
	HandoffComplete: 1 << Running,
	Running:         1<<Suspended | 1<<Error | 1<<Halt,
	Suspended:       1<<Running | 1<<Halt,
	Error:           1 << Halt,
}

// Valid reports whether s is a defined state.
func (s State) Valid() bool { return s < stateCount }

func (s State) String() string {
	if s.Valid() {
		return stateNames[s]
	}
	return fmt.Sprintf("STATE(%d)", uint32(s))
}

// Allowed reports whether the graph has an edge from -> to. Out of
// range states have no edges.
func Allowed(from, to State) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	return successors[from]&(1<<to) != 0
}

// Successors returns the states reachable from s in one step.
func Successors(s State) []State {
	if !s.Valid() {
		return nil
	}
	var out []State
	for candidate := State(0); candidate < stateCount; candidate++ {
		if successors[s]&(1<<candidate) != 0 {
			out = append(out, candidate)
		}
	}
	return out
}

// ParseState resolves a state name, case-insensitively.
func ParseState(name string) (State, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for index, candidate := range stateNames {
		if candidate == upper {
			return State(index), nil
		}
	}
	return 0, fmt.Errorf("unknown kernel state %q", name)
}
