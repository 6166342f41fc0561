// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"

	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/rpc"
	"github.com/yai-labs/yai/lib/wire"
)

// DefaultEnergyCost is charged per effectful gate command when
// Options.EnergyCost is zero.
const DefaultEnergyCost = 1

// Meter wraps gate so that effectful commands for the attached
// workspace are charged to its core record before they run. The
// engine is the only writer of energy_consumed; planes in front of it
// check the authority lock and nothing else. Commands for other
// workspaces pass through uncharged.
func (b *Bridge) Meter(gate rpc.Gate) rpc.Gate {
	return rpc.GateFunc(func(ctx context.Context, workspaceID string, id command.ID, payload []byte) ([]byte, error) {
		if workspaceID == b.workspaceID && command.ClassOf(id).Effectful() {
			if !b.AllowsCommand(id) {
				return nil, wire.Errorf(wire.CodeAuthorityLocked, "authority lock denies %s", id)
			}
			if !b.ConsumeEnergy(b.energyCost) {
				record := b.Vault()
				return nil, wire.Errorf(wire.CodeEnergyExhausted, "energy budget exhausted").
					WithDetail(map[string]uint32{
						"consumed": record.EnergyConsumed(),
						"quota":    record.EnergyQuota(),
						"cost":     b.energyCost,
					})
			}
		}
		return gate.Dispatch(ctx, workspaceID, id, payload)
	})
}
