// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"fmt"
	"time"
)

// SchemaID identifies the event record format.
const SchemaID = "yai.kernel.event.v1"

// SchemaVersion is the version of the record format.
const SchemaVersion = 1

// Type is an event type code. Codes are grouped by category in blocks
// of one hundred.
type Type uint16

// Runtime events.
const (
	RunProvisioned     Type = 100
	ContextResolved    Type = 101
	ValidationPassed   Type = 102
	RunTerminated      Type = 103
	StateTransition    Type = 110
	TransitionRejected Type = 111
)

// Cognitive events.
const (
	InferenceStep    Type = 200
	DecisionProposed Type = 201
)

// Memory events.
const (
	MemoryPromoted    Type = 300
	MemoryExpired     Type = 301
	MemoryInvalidated Type = 302
)

// Capability events.
const (
	CapabilityRequested Type = 400
	CapabilityGranted   Type = 401
	CapabilityRevoked   Type = 402
)

var typeNames = map[Type]string{
	RunProvisioned:      "run_provisioned",
	ContextResolved:     "context_resolved",
	ValidationPassed:    "validation_passed",
	RunTerminated:       "run_terminated",
	StateTransition:     "state_transition",
	TransitionRejected:  "transition_rejected",
	InferenceStep:       "inference_step",
	DecisionProposed:    "decision_proposed",
	MemoryPromoted:      "memory_promoted",
	MemoryExpired:       "memory_expired",
	MemoryInvalidated:   "memory_invalidated",
	CapabilityRequested: "cap_requested",
	CapabilityGranted:   "cap_granted",
	CapabilityRevoked:   "cap_revoked",
}

// Known reports whether t is in the taxonomy.
func (t Type) Known() bool {
	_, ok := typeNames[t]
	return ok
}

// Category returns the category name of t.
func (t Type) Category() string {
	switch t / 100 {
	case 1:
		return "runtime"
	case 2:
		return "cognitive"
	case 3:
		return "memory"
	case 4:
		return "capability"
	}
	return "unknown"
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", uint16(t))
}

// Level is the severity of an event.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event is one structured runtime event.
type Event struct {
	SchemaID    string         `cbor:"schema_id" json:"schema_id"`
	Version     int            `cbor:"event_version" json:"event_version"`
	Timestamp   time.Time      `cbor:"ts" json:"ts"`
	WorkspaceID string         `cbor:"ws_id" json:"ws_id"`
	TraceID     string         `cbor:"trace_id,omitempty" json:"trace_id,omitempty"`
	Type        Type           `cbor:"type" json:"type"`
	Level       Level          `cbor:"level" json:"level"`
	Message     string         `cbor:"msg" json:"msg"`
	Data        map[string]any `cbor:"data,omitempty" json:"data,omitempty"`
}

// New returns an event stamped with the current schema.
func New(now time.Time, workspaceID, traceID string, eventType Type, level Level, message string, data map[string]any) Event {
	return Event{
		SchemaID:    SchemaID,
		Version:     SchemaVersion,
		Timestamp:   now.UTC(),
		WorkspaceID: workspaceID,
		TraceID:     traceID,
		Type:        eventType,
		Level:       level,
		Message:     message,
		Data:        data,
	}
}

// Validate checks an event against the taxonomy and schema.
func Validate(e Event) error {
	if e.SchemaID != SchemaID {
		return fmt.Errorf("event schema %q, want %q", e.SchemaID, SchemaID)
	}
	if e.Version != SchemaVersion {
		return fmt.Errorf("event version %d, want %d", e.Version, SchemaVersion)
	}
	if !e.Type.Known() {
		return fmt.Errorf("event type %d is not in the taxonomy", uint16(e.Type))
	}
	if e.WorkspaceID == "" {
		return fmt.Errorf("event %s has no workspace id", e.Type)
	}
	switch e.Level {
	case LevelInfo, LevelWarn, LevelError:
	default:
		return fmt.Errorf("event level %q is not recognized", e.Level)
	}
	return nil
}
