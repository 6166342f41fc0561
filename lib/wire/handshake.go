// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"fmt"
)

// Capability bits negotiated during the handshake.
const (
	CapPing      uint32 = 1 << 0
	CapHandshake uint32 = 1 << 1
	CapStatus    uint32 = 1 << 2
	CapControl   uint32 = 1 << 3
	CapStorage   uint32 = 1 << 4
	CapInference uint32 = 1 << 5
)

const (
	// HandshakeRequestSize is the encoded size of HandshakeRequest.
	HandshakeRequestSize = 40

	// HandshakeAckSize is the encoded size of HandshakeAck.
	HandshakeAckSize = 16

	clientNameCapacity = 32
)

// AckReady is the status byte of a successful handshake.
const AckReady uint8 = 1

// HandshakeRequest is the payload of a HANDSHAKE command.
type HandshakeRequest struct {
	ClientVersion         uint32
	CapabilitiesRequested uint32
	ClientName            string
}

// MarshalBinary encodes the request into HandshakeRequestSize bytes.
func (h HandshakeRequest) MarshalBinary() ([]byte, error) {
	buffer := make([]byte, HandshakeRequestSize)
	binary.NativeEndian.PutUint32(buffer[0:], h.ClientVersion)
	binary.NativeEndian.PutUint32(buffer[4:], h.CapabilitiesRequested)
	putFixed(buffer[8:8+clientNameCapacity], h.ClientName)
	return buffer, nil
}

// UnmarshalBinary decodes a handshake request payload.
func (h *HandshakeRequest) UnmarshalBinary(data []byte) error {
	if len(data) != HandshakeRequestSize {
		return fmt.Errorf("handshake request is %d bytes, want %d", len(data), HandshakeRequestSize)
	}
	h.ClientVersion = binary.NativeEndian.Uint32(data[0:])
	h.CapabilitiesRequested = binary.NativeEndian.Uint32(data[4:])
	h.ClientName = getFixed(data[8 : 8+clientNameCapacity])
	return nil
}

// HandshakeAck is the payload of a successful handshake response.
type HandshakeAck struct {
	ServerVersion       uint32
	CapabilitiesGranted uint32
	SessionID           uint32
	Status              uint8
}

// MarshalBinary encodes the ack into HandshakeAckSize bytes. The three
// trailing bytes are padding.
func (a HandshakeAck) MarshalBinary() ([]byte, error) {
	buffer := make([]byte, HandshakeAckSize)
	binary.NativeEndian.PutUint32(buffer[0:], a.ServerVersion)
	binary.NativeEndian.PutUint32(buffer[4:], a.CapabilitiesGranted)
	binary.NativeEndian.PutUint32(buffer[8:], a.SessionID)
	buffer[12] = a.Status
	return buffer, nil
}

// UnmarshalBinary decodes a handshake ack payload.
func (a *HandshakeAck) UnmarshalBinary(data []byte) error {
	if len(data) != HandshakeAckSize {
		return fmt.Errorf("handshake ack is %d bytes, want %d", len(data), HandshakeAckSize)
	}
	a.ServerVersion = binary.NativeEndian.Uint32(data[0:])
	a.CapabilitiesGranted = binary.NativeEndian.Uint32(data[4:])
	a.SessionID = binary.NativeEndian.Uint32(data[8:])
	a.Status = data[12]
	return nil
}
