// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package rpc is the request dispatcher of a control plane and the
// client that talks to it.
//
// A [Server] serves a [control.Listener] one connection at a time.
// Every connection starts in the awaiting-handshake state: the first
// frame must be a HANDSHAKE, anything else is answered with
// ERR_HANDSHAKE_REQUIRED and the connection is closed. A valid
// handshake acquires the workspace session, negotiates capabilities
// and returns a [wire.HandshakeAck]; an armed OPERATOR handshake also
// releases the workspace authority lock.
//
// After the handshake each frame is validated, authority-checked and
// routed:
//
//   - PING is always answered.
//   - Commands classified external or irreversible need role OPERATOR
//     (ERR_ROLE_REQUIRED) and arming (ERR_ARMING_REQUIRED). Both
//     failures close the connection.
//   - Registered handlers (STATUS, TRANSITION, CONTROL, NOOP,
//     RECONFIGURE, and any gate routes) run with the workspace session
//     and Vault record. Effectful gate commands spend energy first.
//   - Unregistered commands get unsupported_command under
//     [ProfileStrict] or a plain ok under [ProfilePermissive]. The
//     connection stays open either way.
//
// Malformed frames (bad magic, bad version, oversized payload, bad
// role or arming, invalid workspace id) get a best-effort structured
// error and close the connection.
package rpc
