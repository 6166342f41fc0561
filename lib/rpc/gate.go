// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"time"

	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/wire"
)

// Gate serves commands that leave the control plane: storage and
// provider calls. The payload is JSON and so is the returned
// response. Returning a *wire.ProtocolError reports a specific code
// to the caller; any other error is reported as ERR_UPSTREAM.
type Gate interface {
	Dispatch(ctx context.Context, workspaceID string, id command.ID, payload []byte) ([]byte, error)
}

// GateFunc adapts a function to Gate.
type GateFunc func(ctx context.Context, workspaceID string, id command.ID, payload []byte) ([]byte, error)

// Dispatch calls f.
func (f GateFunc) Dispatch(ctx context.Context, workspaceID string, id command.ID, payload []byte) ([]byte, error) {
	return f(ctx, workspaceID, id, payload)
}

// ForwardGate relays commands to another control plane over its
// socket. The root plane uses it to hand workspace commands to the
// kernel. Each call opens a fresh connection and handshakes with the
// gate's own authority: the caller's authority was checked before the
// command reached the gate.
type ForwardGate struct {
	// Path is the target control socket.
	Path string

	// Timeout bounds the dial and each frame. Zero uses DefaultTimeout.
	Timeout time.Duration

	// Name identifies the forwarder in the handshake.
	Name string
}

// Dispatch forwards one command and returns the target's response.
func (g ForwardGate) Dispatch(ctx context.Context, workspaceID string, id command.ID, payload []byte) ([]byte, error) {
	name := g.Name
	if name == "" {
		name = "yai-forward"
	}
	client, err := Dial(ctx, g.Path, ClientOptions{
		WorkspaceID: workspaceID,
		Role:        wire.RoleOperator,
		Armed:       command.ClassOf(id).Effectful(),
		Timeout:     g.Timeout,
		Name:        name,
	})
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return client.Call(id, payload)
}
