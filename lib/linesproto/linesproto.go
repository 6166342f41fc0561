// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package linesproto validates the newline-delimited JSON control
// envelope:
//
//	{"v":1,"ws_id":"ws1","request":{"type":"ping"},"arming":false,"role":"user"}
//
// It is a library for tooling and tests. The planes speak the binary
// envelope from lib/wire; the two forms are never mixed on one socket.
package linesproto

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
)

// Version is the only accepted "v".
const Version = 1

// MaxFieldLength bounds ws_id, request type, and role.
const MaxFieldLength = 63

// MaxLineLength bounds one envelope line.
const MaxLineLength = 64 * 1024

// Code is a validation outcome.
type Code int

const (
	OK Code = iota
	BadArg
	BadVersion
	MissingWorkspace
	WorkspaceMismatch
	MissingType
	TypeNotAllowed
	RoleRequired
)

var codeNames = [...]string{
	OK:                "OK",
	BadArg:            "BAD_ARG",
	BadVersion:        "BAD_VERSION",
	MissingWorkspace:  "MISSING_WS",
	WorkspaceMismatch: "WS_MISMATCH",
	MissingType:       "MISSING_TYPE",
	TypeNotAllowed:    "TYPE_NOT_ALLOWED",
	RoleRequired:      "ROLE_REQUIRED",
}

func (c Code) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("CODE(%d)", int(c))
}

// AllowedTypes are the request types accepted today.
var AllowedTypes = []string{"ping", "protocol_handshake", "status"}

// Error is a rejected envelope.
type Error struct {
	Code   Code
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Reason
}

// Envelope is a validated line.
type Envelope struct {
	WorkspaceID string
	Type        string
	Arming      bool
	Role        string
}

func reject(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks one line. expectedWS, when non-empty, must equal the
// line's ws_id. Checks run in order: version, workspace, request type,
// allowlist, then arming requires role "operator". The request type is
// read from request.type, falling back to a top-level "type".
func Validate(line []byte, expectedWS string) (Envelope, error) {
	if len(line) == 0 {
		return Envelope{}, reject(BadArg, "empty line")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil || fields == nil {
		return Envelope{}, reject(BadArg, "line is not a JSON object")
	}

	var version int
	if raw, ok := fields["v"]; !ok || json.Unmarshal(raw, &version) != nil || version != Version {
		return Envelope{}, reject(BadVersion, "v must be %d", Version)
	}

	workspaceID, ok := stringField(fields, "ws_id")
	if !ok {
		return Envelope{}, reject(MissingWorkspace, "ws_id missing or invalid")
	}
	if expectedWS != "" && workspaceID != expectedWS {
		return Envelope{}, reject(WorkspaceMismatch, "ws_id %q, expected %q", workspaceID, expectedWS)
	}

	requestType, ok := "", false
	if raw, present := fields["request"]; present {
		var request map[string]json.RawMessage
		if json.Unmarshal(raw, &request) == nil {
			requestType, ok = stringField(request, "type")
		}
	}
	if !ok {
		requestType, ok = stringField(fields, "type")
	}
	if !ok {
		return Envelope{}, reject(MissingType, "request.type missing or invalid")
	}
	if !slices.Contains(AllowedTypes, requestType) {
		return Envelope{}, reject(TypeNotAllowed, "request type %q", requestType)
	}

	envelope := Envelope{WorkspaceID: workspaceID, Type: requestType}
	if raw, present := fields["arming"]; present {
		_ = json.Unmarshal(raw, &envelope.Arming)
	}
	envelope.Role, _ = stringField(fields, "role")
	if envelope.Arming && envelope.Role != "operator" {
		return Envelope{}, reject(RoleRequired, "arming requires role operator")
	}
	return envelope, nil
}

// Result is the outcome for one line of a stream.
type Result struct {
	Line     int
	Envelope Envelope
	Err      error
}

// ValidateStream validates every non-blank line of r.
func ValidateStream(r io.Reader, expectedWS string) ([]Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), MaxLineLength)

	var results []Result
	for number := 1; scanner.Scan(); number++ {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		envelope, err := Validate(line, expectedWS)
		results = append(results, Result{Line: number, Envelope: envelope, Err: err})
	}
	if err := scanner.Err(); err != nil {
		return results, fmt.Errorf("reading envelope stream: %w", err)
	}
	return results, nil
}

// stringField returns a non-empty string field no longer than
// MaxFieldLength.
func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var value string
	if json.Unmarshal(raw, &value) != nil || value == "" || len(value) > MaxFieldLength {
		return "", false
	}
	return value, true
}
