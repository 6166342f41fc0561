// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/json"
	"fmt"
)

// Code is a stable, machine-readable error code. Codes are part of the
// protocol: callers switch on them, so they never change meaning.
type Code string

// Protocol errors. These are fatal to the connection.
const (
	CodeBadMagic          Code = "ERR_BAD_MAGIC"
	CodeBadVersion        Code = "ERR_BAD_VERSION"
	CodePayloadTooBig     Code = "ERR_PAYLOAD_TOO_BIG"
	CodeBadChecksum       Code = "ERR_BAD_CHECKSUM"
	CodeBadArming         Code = "ERR_BAD_ARMING"
	CodeBadRole           Code = "ERR_BAD_ROLE"
	CodeWorkspaceRequired Code = "ERR_WS_REQUIRED"
	CodeBadWorkspaceID    Code = "ERR_BAD_WS_ID"
	CodeBadHandshake      Code = "ERR_BAD_HANDSHAKE"
)

// Authority errors.
const (
	CodeHandshakeRequired Code = "ERR_HANDSHAKE_REQUIRED"
	CodeRoleRequired      Code = "ERR_ROLE_REQUIRED"
	CodeArmingRequired    Code = "ERR_ARMING_REQUIRED"
	CodeAuthorityLocked   Code = "ERR_AUTHORITY_LOCKED"
	CodeCapabilityDenied  Code = "ERR_CAPABILITY_DENIED"
)

// Resource and request errors. The connection stays open.
const (
	CodeSessionDenied      Code = "session_denied"
	CodeEnergyExhausted    Code = "ERR_ENERGY_EXHAUSTED"
	CodeUnsupportedCommand Code = "unsupported_command"
	CodeBadPayload         Code = "ERR_BAD_PAYLOAD"
	CodeTransitionRejected Code = "ERR_TRANSITION_REJECTED"
	CodeUpstream           Code = "ERR_UPSTREAM"
	CodeInternal           Code = "ERR_INTERNAL"
)

// ProtocolError is a failure that is reported to the peer as a
// structured error payload.
type ProtocolError struct {
	Code    Code
	Message string

	// Detail is optional JSON-encodable context (the offending value,
	// the limit that was exceeded).
	Detail any
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds a ProtocolError with a formatted message.
func Errorf(code Code, format string, args ...any) *ProtocolError {
	return &ProtocolError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail returns a copy of e carrying detail.
func (e *ProtocolError) WithDetail(detail any) *ProtocolError {
	copied := *e
	copied.Detail = detail
	return &copied
}

// ErrorBody is the JSON object sent as the payload of an error response.
type ErrorBody struct {
	Status      string `json:"status"`
	Code        Code   `json:"code"`
	Reason      string `json:"reason"`
	Detail      any    `json:"detail,omitempty"`
	TraceID     string `json:"trace_id,omitempty"`
	WorkspaceID string `json:"ws_id,omitempty"`
}

// EncodeError renders e as an error response payload, echoing the
// request's trace and workspace ids.
func EncodeError(request Envelope, e *ProtocolError) []byte {
	body := ErrorBody{
		Status:      "error",
		Code:        e.Code,
		Reason:      e.Message,
		Detail:      e.Detail,
		TraceID:     request.TraceID,
		WorkspaceID: request.WorkspaceID,
	}
	data, err := json.Marshal(body)
	if err != nil {
		// Detail was not encodable; drop it rather than lose the code.
		body.Detail = nil
		data, _ = json.Marshal(body)
	}
	return data
}

// DecodeError parses payload as an error response. It returns nil when
// the payload is not an error object.
func DecodeError(payload []byte) *ProtocolError {
	var body ErrorBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil
	}
	if body.Status != "error" || body.Code == "" {
		return nil
	}
	return &ProtocolError{Code: body.Code, Message: body.Reason, Detail: body.Detail}
}
