// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package wire

// MaxWorkspaceIDLength is the longest workspace id that fits the
// envelope field with its terminating NUL.
const MaxWorkspaceIDLength = IDCapacity - 1

// Validate applies the frame validation sequence in protocol order:
// magic, version, payload length, checksum, arming, role, workspace id.
// The first failing check is returned.
func Validate(e Envelope) *ProtocolError {
	if e.Magic != Magic {
		return Errorf(CodeBadMagic, "bad magic 0x%08x", e.Magic).WithDetail(map[string]uint32{"magic": e.Magic})
	}
	if e.Version != Version {
		return Errorf(CodeBadVersion, "unsupported protocol version %d", e.Version)
	}
	if e.PayloadLen > MaxPayload {
		return Errorf(CodePayloadTooBig, "payload of %d bytes exceeds %d", e.PayloadLen, MaxPayload).
			WithDetail(map[string]uint32{"payload_len": e.PayloadLen, "max": MaxPayload})
	}
	if e.Checksum != 0 {
		return Errorf(CodeBadChecksum, "checksum field is reserved and must be zero")
	}
	if e.Arming > 1 {
		return Errorf(CodeBadArming, "arming must be 0 or 1, got %d", e.Arming)
	}
	if !e.Role.Known() {
		return Errorf(CodeBadRole, "unknown role %d", uint16(e.Role))
	}
	if e.WorkspaceID == "" {
		return Errorf(CodeWorkspaceRequired, "workspace id is required")
	}
	if !ValidWorkspaceID(e.WorkspaceID) {
		return Errorf(CodeBadWorkspaceID, "invalid workspace id %q", e.WorkspaceID)
	}
	return nil
}

// ValidWorkspaceID reports whether id is 1 to MaxWorkspaceIDLength
// characters drawn from ASCII letters, digits, '-' and '_'.
func ValidWorkspaceID(id string) bool {
	if len(id) == 0 || len(id) > MaxWorkspaceIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
