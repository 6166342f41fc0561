// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/yai-labs/yai/lib/command"
)

const (
	// Magic is the frame marker, "YAIP" read as a big-endian word.
	Magic uint32 = 0x59414950

	// Version is the only protocol generation this package speaks.
	Version uint32 = 1

	// EnvelopeSize is the exact encoded size of an Envelope.
	EnvelopeSize = 96

	// MaxPayload is the hard cap on payload_len.
	MaxPayload = 64 * 1024

	// IDCapacity is the size of the ws_id and trace_id fields,
	// including the terminating NUL.
	IDCapacity = 36
)

// Field offsets within the encoded envelope.
const (
	offMagic      = 0
	offVersion    = 4
	offWorkspace  = 8
	offTrace      = offWorkspace + IDCapacity
	offCommand    = offTrace + IDCapacity
	offRole       = offCommand + 4
	offArming     = offRole + 2
	offPad        = offArming + 1
	offPayloadLen = offPad + 1
	offChecksum   = offPayloadLen + 4
	offEnd        = offChecksum + 4
)

// Role is the caller's declared authority level.
type Role uint16

const (
	RoleNone     Role = 0
	RoleUser     Role = 1
	RoleOperator Role = 2
	RoleSystem   Role = 3
)

var roleNames = map[Role]string{
	RoleNone:     "none",
	RoleUser:     "user",
	RoleOperator: "operator",
	RoleSystem:   "system",
}

// Known reports whether r is a defined role.
func (r Role) Known() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", uint16(r))
}

// ParseRole resolves a role name.
func ParseRole(s string) (Role, error) {
	for role, name := range roleNames {
		if name == s {
			return role, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// Envelope is the decoded form of the fixed-size frame header.
//
// WorkspaceID and TraceID are encoded into 36-byte NUL-terminated
// fields; values longer than 35 bytes are truncated on encode. Arming
// is kept as the raw byte so that validation can reject values other
// than 0 and 1.
type Envelope struct {
	Magic       uint32
	Version     uint32
	WorkspaceID string
	TraceID     string
	CommandID   command.ID
	Role        Role
	Arming      uint8
	PayloadLen  uint32
	Checksum    uint32
}

// NewEnvelope returns a request envelope with magic and version set.
func NewEnvelope(workspaceID, traceID string, id command.ID, role Role, armed bool) Envelope {
	envelope := Envelope{
		Magic:       Magic,
		Version:     Version,
		WorkspaceID: workspaceID,
		TraceID:     traceID,
		CommandID:   id,
		Role:        role,
	}
	if armed {
		envelope.Arming = 1
	}
	return envelope
}

// Reply returns a response envelope echoing the workspace and trace of
// the request. Role and arming are cleared: responses carry no
// authority.
func (e Envelope) Reply(id command.ID) Envelope {
	return Envelope{
		Magic:       Magic,
		Version:     Version,
		WorkspaceID: e.WorkspaceID,
		TraceID:     e.TraceID,
		CommandID:   id,
	}
}

// Armed reports whether the arming byte is set.
func (e Envelope) Armed() bool { return e.Arming == 1 }

// MarshalBinary encodes the envelope into EnvelopeSize bytes.
func (e Envelope) MarshalBinary() ([]byte, error) {
	buffer := make([]byte, EnvelopeSize)
	e.Put(buffer)
	return buffer, nil
}

// Put encodes the envelope into buffer, which must hold at least
// EnvelopeSize bytes.
func (e Envelope) Put(buffer []byte) {
	_ = buffer[EnvelopeSize-1]
	order := binary.NativeEndian
	order.PutUint32(buffer[offMagic:], e.Magic)
	order.PutUint32(buffer[offVersion:], e.Version)
	putFixed(buffer[offWorkspace:offTrace], e.WorkspaceID)
	putFixed(buffer[offTrace:offCommand], e.TraceID)
	order.PutUint32(buffer[offCommand:], uint32(e.CommandID))
	order.PutUint16(buffer[offRole:], uint16(e.Role))
	buffer[offArming] = e.Arming
	buffer[offPad] = 0
	order.PutUint32(buffer[offPayloadLen:], e.PayloadLen)
	order.PutUint32(buffer[offChecksum:], e.Checksum)
}

// UnmarshalBinary decodes exactly EnvelopeSize bytes.
func (e *Envelope) UnmarshalBinary(data []byte) error {
	if len(data) != EnvelopeSize {
		return fmt.Errorf("envelope is %d bytes, want %d", len(data), EnvelopeSize)
	}
	order := binary.NativeEndian
	*e = Envelope{
		Magic:       order.Uint32(data[offMagic:]),
		Version:     order.Uint32(data[offVersion:]),
		WorkspaceID: getFixed(data[offWorkspace:offTrace]),
		TraceID:     getFixed(data[offTrace:offCommand]),
		CommandID:   command.ID(order.Uint32(data[offCommand:])),
		Role:        Role(order.Uint16(data[offRole:])),
		Arming:      data[offArming],
		PayloadLen:  order.Uint32(data[offPayloadLen:]),
		Checksum:    order.Uint32(data[offChecksum:]),
	}
	return nil
}

// CheckABI verifies that the envelope layout adds up to the wire
// contract. A mismatch means the binary was built from a drifted
// definition and must not talk to its peers.
func CheckABI() error {
	if offEnd != EnvelopeSize {
		return fmt.Errorf("wire: envelope layout is %d bytes, want %d", offEnd, EnvelopeSize)
	}
	if offPayloadLen%4 != 0 || offCommand%4 != 0 {
		return fmt.Errorf("wire: envelope word fields are misaligned")
	}
	encoded, _ := Envelope{}.MarshalBinary()
	if len(encoded) != EnvelopeSize {
		return fmt.Errorf("wire: encoded envelope is %d bytes, want %d", len(encoded), EnvelopeSize)
	}
	return nil
}

// putFixed copies s into field, truncating to len(field)-1 so the
// field is always NUL-terminated, and zeroes the remainder.
func putFixed(field []byte, s string) {
	n := copy(field[:len(field)-1], s)
	clear(field[n:])
}

// getFixed returns the bytes of field up to the first NUL.
func getFixed(field []byte) string {
	if index := bytes.IndexByte(field, 0); index >= 0 {
		return string(field[:index])
	}
	return string(field)
}
