// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"fmt"
	"log/slog"

	"github.com/yai-labs/yai/lib/clock"
	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/events"
	"github.com/yai-labs/yai/lib/runtimeid"
	"github.com/yai-labs/yai/lib/vault"
)

// Transition outcome reasons. They appear in events and in error
// responses, so they are stable strings.
const (
	ReasonAccepted             = "accepted"
	ReasonStateOutOfRange      = "state_out_of_range"
	ReasonEnergyGuard          = "energy_guard_failed"
	ReasonAuthorityGuard       = "authority_guard_failed"
	ReasonExternalEffectGuard  = "external_effect_guard_failed"
	ReasonTransitionNotAllowed = "transition_not_allowed"
)

// TransitionError reports a rejected transition.
type TransitionError struct {
	From   State
	To     State
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s rejected: %s", e.From, e.To, e.Reason)
}

// Options configures a Kernel.
type Options struct {
	// Sink receives transition and capability events. Nil discards.
	Sink events.Sink

	// Clock stamps events. Nil uses the real clock.
	Clock clock.Clock

	// Logger receives diagnostics. Nil discards.
	Logger *slog.Logger
}

// Kernel applies guarded transitions to Vault records. A Kernel holds
// no per-workspace state; one instance serves every record.
type Kernel struct {
	sink   events.Sink
	clock  clock.Clock
	logger *slog.Logger
}

// New returns a Kernel.
func New(options Options) *Kernel {
	k := &Kernel{sink: options.Sink, clock: options.Clock, logger: options.Logger}
	if k.sink == nil {
		k.sink = events.Discard
	}
	if k.clock == nil {
		k.clock = clock.Real()
	}
	if k.logger == nil {
		k.logger = slog.New(slog.DiscardHandler)
	}
	return k
}

// State returns the current state of r.
func (k *Kernel) State(r *vault.Record) State {
	return State(r.Status())
}

// Transition moves r to target if every guard passes and the graph
// allows it. On success status is written, logical_clock advances by
// one, and an accepted event is emitted. On failure r is unchanged, a
// rejected event is emitted, and a *TransitionError is returned.
func (k *Kernel) Transition(r *vault.Record, target State) error {
	from := State(r.Status())

	reason := k.check(r, from, target)
	if reason != "" {
		level := events.LevelWarn
		if reason == ReasonStateOutOfRange {
			level = events.LevelError
		}
		k.emit(r, events.TransitionRejected, level, from, target, reason)
		return &TransitionError{From: from, To: target, Reason: reason}
	}

	r.StoreStatus(uint32(target))
	r.TickClock()
	k.emit(r, events.StateTransition, events.LevelInfo, from, target, ReasonAccepted)
	return nil
}

func (k *Kernel) check(r *vault.Record, from, target State) string {
	if !from.Valid() || !target.Valid() {
		return ReasonStateOutOfRange
	}
	if !vault.EnergyWithinQuota(r) {
		return ReasonEnergyGuard
	}
	if target == Running && r.AuthorityLocked() {
		return ReasonAuthorityGuard
	}
	if target == Running && command.ClassOf(r.LastCommandID()).Has(command.ClassExternal) && r.AuthorityLocked() {
		return ReasonExternalEffectGuard
	}
	if !Allowed(from, target) {
		return ReasonTransitionNotAllowed
	}
	return ""
}

// Boot takes a freshly provisioned record from PREBOOT to READY. A
// record already past PREBOOT is left alone.
func (k *Kernel) Boot(r *vault.Record) error {
	if State(r.Status()) != Preboot {
		return nil
	}
	k.sink.Emit(events.New(k.clock.Now(), r.WorkspaceID(), r.TraceID(),
		events.RunProvisioned, events.LevelInfo, "workspace provisioned",
		map[string]any{"energy_quota": r.EnergyQuota()}))
	return k.Transition(r, Ready)
}

// Handoff moves a READY record to HANDOFF_COMPLETE and hands authority
// to the engine by clearing the lock.
func (k *Kernel) Handoff(r *vault.Record) error {
	if err := k.Transition(r, HandoffComplete); err != nil {
		return err
	}
	k.Release(r, "handoff")
	return nil
}

// Release clears the authority lock.
func (k *Kernel) Release(r *vault.Record, reason string) {
	wasLocked := r.AuthorityLocked()
	r.SetAuthorityLock(false)
	if wasLocked {
		k.sink.Emit(events.New(k.clock.Now(), r.WorkspaceID(), r.TraceID(),
			events.CapabilityGranted, events.LevelInfo, "authority lock cleared",
			map[string]any{"reason": reason}))
	}
}

// Lock engages the authority lock.
func (k *Kernel) Lock(r *vault.Record, reason string) {
	wasLocked := r.AuthorityLocked()
	r.SetAuthorityLock(true)
	if !wasLocked {
		k.sink.Emit(events.New(k.clock.Now(), r.WorkspaceID(), r.TraceID(),
			events.CapabilityRevoked, events.LevelWarn, "authority lock engaged",
			map[string]any{"reason": reason}))
	}
}

func (k *Kernel) emit(r *vault.Record, eventType events.Type, level events.Level, from, to State, reason string) {
	message := fmt.Sprintf("kernel_state %s -> %s reason=%s", from, to, reason)
	k.sink.Emit(events.New(k.clock.Now(), r.WorkspaceID(), r.TraceID(), eventType, level, message,
		map[string]any{
			"from":       from.String(),
			"to":         to.String(),
			"reason":     reason,
			"runtime_id": runtimeid.ForRecord(r),
		}))
	if eventType == events.TransitionRejected {
		k.logger.Debug("transition rejected",
			"ws_id", r.WorkspaceID(),
			"from", from.String(),
			"to", to.String(),
			"reason", reason,
		)
	}
}
