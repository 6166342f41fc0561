// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/kernel"
	"github.com/yai-labs/yai/lib/runtimeid"
	"github.com/yai-labs/yai/lib/vault"
	"github.com/yai-labs/yai/lib/wire"
)

var okResponse = []byte(`{"status":"ok"}`)

func (s *Server) pong() []byte {
	if s.options.Plane == PlaneRoot {
		return []byte(`{"pong":true}`)
	}
	return []byte(`{"status":"pong"}`)
}

func handleNoop(context.Context, *Call) ([]byte, error) {
	return okResponse, nil
}

// StatusResponse is the STATUS reply.
type StatusResponse struct {
	Status string          `json:"status"`
	Plane  Plane           `json:"plane"`
	State  string          `json:"state,omitempty"`
	Vault  *vault.Snapshot `json:"vault,omitempty"`
	Queue  uint32          `json:"queue_depth"`

	// RuntimeID names the record's current logical clock tick.
	RuntimeID string `json:"runtime_id,omitempty"`
}

func (s *Server) handleStatus(_ context.Context, call *Call) ([]byte, error) {
	response := StatusResponse{Status: "ok", Plane: s.options.Plane}
	if call.Record != nil {
		snapshot := call.Record.Snapshot()
		response.State = kernel.State(snapshot.Status).String()
		response.Vault = &snapshot
		response.Queue = vault.QueueDepth(call.Record)
		response.RuntimeID = runtimeid.ForRecord(call.Record)
	}
	return json.Marshal(response)
}

// TransitionRequest is the TRANSITION payload.
type TransitionRequest struct {
	Target string `json:"target"`
}

// TransitionResponse is the TRANSITION reply.
type TransitionResponse struct {
	Status       string `json:"status"`
	From         string `json:"from"`
	To           string `json:"to"`
	LogicalClock uint64 `json:"logical_clock"`
	RuntimeID    string `json:"runtime_id"`
}

func (s *Server) handleTransition(_ context.Context, call *Call) ([]byte, error) {
	if call.Record == nil {
		return nil, wire.Errorf(wire.CodeUnsupportedCommand, "this plane holds no workspace state")
	}
	var request TransitionRequest
	if err := json.Unmarshal(call.Payload, &request); err != nil {
		return nil, wire.Errorf(wire.CodeBadPayload, "decoding transition request: %v", err)
	}
	target, err := kernel.ParseState(request.Target)
	if err != nil {
		return nil, wire.Errorf(wire.CodeBadPayload, "%v", err)
	}

	from := s.kernel.State(call.Record)
	if err := s.kernel.Transition(call.Record, target); err != nil {
		var transitionErr *kernel.TransitionError
		if errors.As(err, &transitionErr) {
			return nil, wire.Errorf(wire.CodeTransitionRejected, "%v", err).WithDetail(map[string]string{
				"from":   transitionErr.From.String(),
				"to":     transitionErr.To.String(),
				"reason": transitionErr.Reason,
			})
		}
		return nil, err
	}
	return json.Marshal(TransitionResponse{
		Status:       "ok",
		From:         from.String(),
		To:           target.String(),
		LogicalClock: call.Record.LogicalClock(),
		RuntimeID:    runtimeid.ForRecord(call.Record),
	})
}

// ControlRequest is the CONTROL payload: a command to place in the
// workspace mailbox for the engine.
type ControlRequest struct {
	Command string `json:"command"`
}

// ControlResponse is the reply to a queued mailbox command.
type ControlResponse struct {
	Status  string `json:"status"`
	Command string `json:"command"`
	Seq     uint32 `json:"seq"`
}

func (s *Server) handleControl(_ context.Context, call *Call) ([]byte, error) {
	var request ControlRequest
	if err := json.Unmarshal(call.Payload, &request); err != nil {
		return nil, wire.Errorf(wire.CodeBadPayload, "decoding control request: %v", err)
	}
	id, err := command.Parse(request.Command)
	if err != nil {
		return nil, wire.Errorf(wire.CodeBadPayload, "%v", err)
	}
	// The mailbox carries only the id, so the effect of the queued
	// command is authorized here against the envelope that asked.
	if command.ClassOf(id).Effectful() && (call.Envelope.Role != wire.RoleOperator || !call.Envelope.Armed()) {
		return nil, wire.Errorf(wire.CodeRoleRequired, "queueing %s requires an armed operator", id)
	}
	return s.post(call, id)
}

func (s *Server) handleReconfigure(_ context.Context, call *Call) ([]byte, error) {
	return s.post(call, command.Reconfigure)
}

func (s *Server) post(call *Call, id command.ID) ([]byte, error) {
	if call.Record == nil {
		return nil, wire.Errorf(wire.CodeUnsupportedCommand, "this plane holds no workspace state")
	}
	if !vault.AllowsCommand(call.Record, id) {
		return nil, wire.Errorf(wire.CodeAuthorityLocked, "authority lock denies %s", id)
	}
	seq := vault.PostCommand(call.Record, id)
	return json.Marshal(ControlResponse{Status: "queued", Command: id.String(), Seq: seq})
}

// gateHandler wraps gate with the authority veto. Energy is charged
// by the engine that runs the command, not by the planes forwarding it.
func (s *Server) gateHandler(gate Gate) HandlerFunc {
	return func(ctx context.Context, call *Call) ([]byte, error) {
		id := call.Envelope.CommandID
		if call.Record != nil && !vault.AllowsCommand(call.Record, id) {
			return nil, wire.Errorf(wire.CodeAuthorityLocked, "authority lock denies %s", id)
		}

		response, err := gate.Dispatch(ctx, call.Envelope.WorkspaceID, id, call.Payload)
		if err != nil {
			var protocolErr *wire.ProtocolError
			if errors.As(err, &protocolErr) {
				return nil, protocolErr
			}
			return nil, wire.Errorf(wire.CodeUpstream, "%s: %v", id, err)
		}
		return response, nil
	}
}
