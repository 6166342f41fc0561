// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/control"
	"github.com/yai-labs/yai/lib/events"
	"github.com/yai-labs/yai/lib/wire"
)

// errClose ends the connection after an error response was sent.
var errClose = errors.New("closing after error response")

// connState is the per-connection protocol state. It starts awaiting
// the handshake; authenticated flips once and never flips back.
type connState struct {
	server *Server
	conn   *control.Conn

	authenticated bool
	capabilities  uint32
	sessionID     uint32
}

func (c *connState) run(ctx context.Context) error {
	for {
		env, payload, err := c.conn.ReadFrame(c.server.options.PayloadCapacity)
		if err != nil {
			return c.readFailed(env, err)
		}
		if protocolErr := wire.Validate(env); protocolErr != nil {
			c.fail(env, protocolErr)
			return protocolErr
		}

		if !c.authenticated {
			if env.CommandID != command.Handshake {
				c.fail(env, wire.Errorf(wire.CodeHandshakeRequired,
					"%s received before handshake", env.CommandID))
				return errClose
			}
			if err := c.handshake(env, payload); err != nil {
				return err
			}
			continue
		}

		if err := c.dispatch(ctx, env, payload); err != nil {
			return err
		}
		if c.server.options.Mode == ModeOneshot {
			return nil
		}
	}
}

// readFailed answers what can be answered and reports why the
// connection ends.
func (c *connState) readFailed(env wire.Envelope, err error) error {
	var transportErr *control.Error
	if !errors.As(err, &transportErr) {
		return err
	}
	switch transportErr.Kind {
	case control.KindPeerClosed:
		return nil
	case control.KindBadMagic:
		c.fail(env, wire.Errorf(wire.CodeBadMagic, "bad magic 0x%08x", env.Magic).
			WithDetail(map[string]uint32{"magic": env.Magic}))
	case control.KindOverflow:
		c.fail(env, wire.Errorf(wire.CodePayloadTooBig, "payload of %d bytes exceeds %d",
			env.PayloadLen, c.server.options.PayloadCapacity).
			WithDetail(map[string]uint32{"payload_len": env.PayloadLen}))
	}
	return err
}

// fail sends a best-effort error response. Write errors are dropped:
// the connection is about to close anyway.
func (c *connState) fail(request wire.Envelope, protocolErr *wire.ProtocolError) {
	_ = c.conn.WriteFrame(request.Reply(request.CommandID), wire.EncodeError(request, protocolErr))
}

func (c *connState) reply(request wire.Envelope, payload []byte) error {
	if err := c.conn.WriteFrame(request.Reply(request.CommandID), payload); err != nil {
		return fmt.Errorf("writing %s response: %w", request.CommandID, err)
	}
	return nil
}

func (c *connState) handshake(env wire.Envelope, payload []byte) error {
	server := c.server

	var request wire.HandshakeRequest
	if err := request.UnmarshalBinary(payload); err != nil {
		c.fail(env, wire.Errorf(wire.CodeBadHandshake, "%v", err))
		return errClose
	}
	if request.ClientVersion != wire.Version {
		c.fail(env, wire.Errorf(wire.CodeBadVersion, "client protocol version %d, server speaks %d",
			request.ClientVersion, wire.Version))
		return errClose
	}

	held, record, protocolErr := server.workspace(env.WorkspaceID)
	if protocolErr != nil {
		c.fail(env, protocolErr)
		return errClose
	}

	granted := server.options.Capabilities
	if request.CapabilitiesRequested != 0 {
		granted &= request.CapabilitiesRequested
	}
	granted |= wire.CapPing | wire.CapHandshake

	if held != nil {
		server.options.Registry.Grant(held, granted)
		c.sessionID = uint32(held.RunID)
	} else {
		server.sessionCounter++
		c.sessionID = server.sessionCounter
	}
	c.capabilities = granted

	server.sink.Emit(events.New(server.clock.Now(), env.WorkspaceID, env.TraceID,
		events.CapabilityRequested, events.LevelInfo, "handshake accepted",
		map[string]any{
			"client":    request.ClientName,
			"requested": request.CapabilitiesRequested,
			"granted":   granted,
			"role":      env.Role.String(),
			"armed":     env.Armed(),
		}))

	if record != nil {
		record.SetTraceID(env.TraceID)
		if env.Role == wire.RoleOperator && env.Armed() {
			server.kernel.Release(record, "operator_handshake")
		}
	}

	ack, _ := wire.HandshakeAck{
		ServerVersion:       wire.Version,
		CapabilitiesGranted: granted,
		SessionID:           c.sessionID,
		Status:              wire.AckReady,
	}.MarshalBinary()
	if err := c.reply(env, ack); err != nil {
		return err
	}
	c.authenticated = true

	server.logger.Debug("handshake complete",
		"plane", string(server.options.Plane),
		"ws_id", env.WorkspaceID,
		"client", request.ClientName,
		"session_id", c.sessionID,
		"capabilities", granted,
	)
	return nil
}

// requiredCapability maps commands to the capability bit that
// authorizes them. Zero means none is needed.
func requiredCapability(id command.ID) uint32 {
	switch id {
	case command.Status:
		return wire.CapStatus
	case command.Control, command.Noop, command.Reconfigure, command.Transition:
		return wire.CapControl
	case command.StoragePut, command.StorageGet, command.StorageRPC:
		return wire.CapStorage
	case command.Inference, command.ProviderRPC, command.EmbeddingRPC:
		return wire.CapInference
	}
	return 0
}

func (c *connState) dispatch(ctx context.Context, env wire.Envelope, payload []byte) error {
	server := c.server

	switch env.CommandID {
	case command.Handshake:
		// A repeated handshake renegotiates; authentication stands.
		return c.handshake(env, payload)
	case command.Ping:
		return c.reply(env, server.pong())
	}

	if command.ClassOf(env.CommandID).Effectful() {
		if env.Role != wire.RoleOperator {
			c.fail(env, wire.Errorf(wire.CodeRoleRequired,
				"%s requires role operator, got %s", env.CommandID, env.Role))
			return errClose
		}
		if !env.Armed() {
			c.fail(env, wire.Errorf(wire.CodeArmingRequired,
				"%s requires an armed request", env.CommandID))
			return errClose
		}
	}

	handler, registered := server.handlers[env.CommandID]
	if !registered {
		if server.options.Profile == ProfilePermissive {
			return c.reply(env, okResponse)
		}
		c.fail(env, wire.Errorf(wire.CodeUnsupportedCommand, "unsupported command %s", env.CommandID))
		return nil
	}

	if needed := requiredCapability(env.CommandID); needed != 0 && c.capabilities&needed == 0 {
		c.fail(env, wire.Errorf(wire.CodeCapabilityDenied,
			"%s needs a capability this session was not granted", env.CommandID).
			WithDetail(map[string]uint32{"needed": needed, "granted": c.capabilities}))
		return nil
	}

	held, record, protocolErr := server.workspace(env.WorkspaceID)
	if protocolErr != nil {
		c.fail(env, protocolErr)
		return nil
	}
	if record != nil {
		record.SetTraceID(env.TraceID)
	}

	response, err := handler(ctx, &Call{Envelope: env, Payload: payload, Session: held, Record: record})
	if err != nil {
		var handlerErr *wire.ProtocolError
		if !errors.As(err, &handlerErr) {
			server.logger.Error("handler failed",
				"command", env.CommandID.String(),
				"ws_id", env.WorkspaceID,
				"error", err,
			)
			handlerErr = wire.Errorf(wire.CodeInternal, "%v", err)
		}
		c.fail(env, handlerErr)
		return nil
	}
	return c.reply(env, response)
}
