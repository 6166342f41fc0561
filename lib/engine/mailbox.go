// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"

	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/kernel"
	"github.com/yai-labs/yai/lib/vault"
)

// ProcessPending handles the command waiting in the core mailbox, if
// any, and reports whether there was one.
func (b *Bridge) ProcessPending(ctx context.Context) bool {
	record := b.core.Record()
	id, seq, ok := vault.PendingCommand(record)
	if !ok {
		return false
	}
	result := b.process(record, id)
	vault.CompleteCommand(record, seq, result)
	b.logger.Debug("mailbox command processed",
		"ws_id", b.workspaceID,
		"command", id.String(),
		"seq", seq,
		"result", result,
	)
	return true
}

func (b *Bridge) process(record *vault.Record, id command.ID) uint32 {
	record.SetResponse("")
	record.ClearError()

	class := command.ClassOf(id)
	if class.Has(command.ClassExternal) {
		if record.AuthorityLocked() {
			vault.SetError(record, "External effect denied: authority required")
			b.request(record, kernel.Suspended)
			return vault.ResultError
		}
		kind, irreversible := "external", "false"
		if class.Has(command.ClassIrreversible) {
			kind, irreversible = "irreversible", "true"
		}
		record.SetResponse(fmt.Sprintf(
			"effect=external;class=%s;target=unspecified;irreversible=%s;authority=ok;intent=unspecified;risk=unspecified;mitigation=none",
			kind, irreversible))
	}

	switch id {
	case command.Ping:
		record.SetResponse("PONG")
		return vault.ResultOK
	case command.Noop:
		record.SetResponse("OK")
		return vault.ResultOK
	case command.Reconfigure:
		if b.kernel.State(record) != kernel.Suspended {
			vault.SetError(record, "Reconfigure requires SUSPENDED state")
			return vault.ResultError
		}
		b.kernel.Release(record, "reconfigure")
		if !b.request(record, kernel.Halt) {
			vault.SetError(record, "Reconfigure could not halt the workspace")
			return vault.ResultError
		}
		record.SetResponse("RECONFIGURED")
		return vault.ResultOK
	}

	if class.Has(command.ClassExternal) {
		// Gate commands are served over the socket; the mailbox only
		// records that authority was present.
		return vault.ResultOK
	}
	if command.Known(id) {
		vault.SetError(record, fmt.Sprintf("Command %s is not served by the engine", id))
		return vault.ResultError
	}
	vault.SetError(record, fmt.Sprintf("Unknown command id: %d", uint32(id)))
	b.request(record, kernel.Error)
	return vault.ResultError
}

// request asks the kernel for a transition and reports whether it was
// accepted.
func (b *Bridge) request(record *vault.Record, target kernel.State) bool {
	if err := b.kernel.Transition(record, target); err != nil {
		b.logger.Debug("engine transition refused", "ws_id", b.workspaceID, "error", err)
		return false
	}
	return true
}
