// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/yai-labs/yai/lib/command"
)

func TestCheckABI(t *testing.T) {
	if err := CheckABI(); err != nil {
		t.Fatal(err)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	envelopes := []Envelope{
		{},
		NewEnvelope("ws-42", "trace-0001", command.Ping, RoleUser, false),
		{
			Magic:       Magic,
			Version:     Version,
			WorkspaceID: strings.Repeat("w", MaxWorkspaceIDLength),
			TraceID:     strings.Repeat("t", IDCapacity-1),
			CommandID:   command.ID(0xffffffff),
			Role:        Role(0xffff),
			Arming:      0xff,
			PayloadLen:  0xffffffff,
			Checksum:    0xffffffff,
		},
	}

	for _, original := range envelopes {
		data, err := original.MarshalBinary()
		if err != nil {
			t.Fatalf("MarshalBinary: %v", err)
		}
		if len(data) != EnvelopeSize {
			t.Fatalf("encoded size = %d, want %d", len(data), EnvelopeSize)
		}
		var decoded Envelope
		if err := decoded.UnmarshalBinary(data); err != nil {
			t.Fatalf("UnmarshalBinary: %v", err)
		}
		if decoded != original {
			t.Errorf("round trip = %+v, want %+v", decoded, original)
		}
	}
}

func TestEnvelopeTruncatesLongIDs(t *testing.T) {
	long := strings.Repeat("x", 50)
	data, _ := NewEnvelope(long, long, command.Ping, RoleUser, false).MarshalBinary()

	var decoded Envelope
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if len(decoded.WorkspaceID) != IDCapacity-1 {
		t.Errorf("workspace id length = %d, want %d", len(decoded.WorkspaceID), IDCapacity-1)
	}
	if data[offTrace-1] != 0 || data[offCommand-1] != 0 {
		t.Error("fixed fields are not NUL-terminated")
	}
}

func TestUnmarshalRejectsShortInput(t *testing.T) {
	var envelope Envelope
	if err := envelope.UnmarshalBinary(make([]byte, EnvelopeSize-1)); err == nil {
		t.Error("UnmarshalBinary accepted a short buffer")
	}
}

func TestReplyClearsAuthority(t *testing.T) {
	request := NewEnvelope("ws-1", "trace-1", command.StoragePut, RoleOperator, true)
	reply := request.Reply(command.StoragePut)
	if reply.Role != RoleNone || reply.Armed() {
		t.Errorf("reply carries authority: role=%v arming=%d", reply.Role, reply.Arming)
	}
	if reply.WorkspaceID != "ws-1" || reply.TraceID != "trace-1" {
		t.Errorf("reply ids = %q/%q, want ws-1/trace-1", reply.WorkspaceID, reply.TraceID)
	}
}

func TestEnvelopeGolden(t *testing.T) {
	if binary.NativeEndian.Uint16([]byte{1, 0}) != 1 {
		t.Skip("golden bytes are recorded on a little-endian host")
	}

	envelope := NewEnvelope("ws-42", "trace-0001", command.Ping, RoleOperator, true)
	envelope.PayloadLen = 15
	data, _ := envelope.MarshalBinary()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "ping_envelope", []byte(hex.Dump(data)))
}

func TestHandshakeRoundTrip(t *testing.T) {
	request := HandshakeRequest{ClientVersion: 1, CapabilitiesRequested: CapPing | CapStatus, ClientName: "yai-cli"}
	data, _ := request.MarshalBinary()
	if len(data) != HandshakeRequestSize {
		t.Fatalf("request size = %d, want %d", len(data), HandshakeRequestSize)
	}
	var decodedRequest HandshakeRequest
	if err := decodedRequest.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if decodedRequest != request {
		t.Errorf("request round trip = %+v, want %+v", decodedRequest, request)
	}

	ack := HandshakeAck{ServerVersion: Version, CapabilitiesGranted: CapPing, SessionID: 7, Status: AckReady}
	data, _ = ack.MarshalBinary()
	var decodedAck HandshakeAck
	if err := decodedAck.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if decodedAck != ack {
		t.Errorf("ack round trip = %+v, want %+v", decodedAck, ack)
	}

	if err := decodedAck.UnmarshalBinary(data[:10]); err == nil {
		t.Error("UnmarshalBinary accepted a truncated ack")
	}
}
