// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/control"
	"github.com/yai-labs/yai/lib/wire"
)

// DefaultTimeout bounds client dials and frames when none is given.
const DefaultTimeout = 10 * time.Second

// ClientOptions configures a Client.
type ClientOptions struct {
	WorkspaceID string
	Role        wire.Role
	Armed       bool

	// Name is sent in the handshake.
	Name string

	// Capabilities requested in the handshake. Zero asks for all.
	Capabilities uint32

	Timeout time.Duration
}

// Client is a handshaken connection to a control plane. It is not
// safe for concurrent use: the protocol is strictly request/response.
type Client struct {
	conn    *control.Conn
	options ClientOptions
	ack     wire.HandshakeAck
}

// Dial connects to the control socket at path and performs the
// handshake.
func Dial(ctx context.Context, path string, options ClientOptions) (*Client, error) {
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}
	if options.Name == "" {
		options.Name = "yai"
	}
	dialContext, cancel := context.WithTimeout(ctx, options.Timeout)
	defer cancel()

	conn, err := control.Dial(dialContext, path, options.Timeout)
	if err != nil {
		return nil, err
	}
	client := &Client{conn: conn, options: options}
	if err := client.handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	return client, nil
}

// NewTraceID returns a fresh trace id that fits the envelope field.
func NewTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (c *Client) envelope(id command.ID) wire.Envelope {
	return wire.NewEnvelope(c.options.WorkspaceID, NewTraceID(), id, c.options.Role, c.options.Armed)
}

func (c *Client) handshake() error {
	request, _ := wire.HandshakeRequest{
		ClientVersion:         wire.Version,
		CapabilitiesRequested: c.options.Capabilities,
		ClientName:            c.options.Name,
	}.MarshalBinary()

	payload, err := c.roundTrip(c.envelope(command.Handshake), request)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if err := c.ack.UnmarshalBinary(payload); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if c.ack.Status != wire.AckReady {
		return fmt.Errorf("handshake: server not ready (status %d)", c.ack.Status)
	}
	return nil
}

// Ack returns the handshake acknowledgement.
func (c *Client) Ack() wire.HandshakeAck { return c.ack }

// Call sends one command and returns the response payload. An error
// response from the server is returned as *wire.ProtocolError.
func (c *Client) Call(id command.ID, payload []byte) ([]byte, error) {
	return c.roundTrip(c.envelope(id), payload)
}

// CallJSON marshals request, calls id, and unmarshals the response
// into response (when non-nil).
func (c *Client) CallJSON(id command.ID, request, response any) error {
	var payload []byte
	if request != nil {
		encoded, err := json.Marshal(request)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", id, err)
		}
		payload = encoded
	}
	reply, err := c.Call(id, payload)
	if err != nil {
		return err
	}
	if response == nil {
		return nil
	}
	if err := json.Unmarshal(reply, response); err != nil {
		return fmt.Errorf("decoding %s response: %w", id, err)
	}
	return nil
}

func (c *Client) roundTrip(request wire.Envelope, payload []byte) ([]byte, error) {
	if err := c.conn.WriteFrame(request, payload); err != nil {
		return nil, err
	}
	response, body, err := c.conn.ReadFrame(wire.MaxPayload)
	if err != nil {
		return nil, err
	}
	if protocolErr := wire.DecodeError(body); protocolErr != nil {
		return nil, protocolErr
	}
	if response.CommandID != request.CommandID {
		return nil, fmt.Errorf("response to %s carries command %s", request.CommandID, response.CommandID)
	}
	return body, nil
}

// Close closes the connection.
func (c *Client) Close() error { return c.conn.Close() }
