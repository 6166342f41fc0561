// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package control is the frame transport of the control plane: a Unix
// domain socket listener and helpers that move whole envelope frames
// (96-byte header plus payload) across a connection.
//
// [Listen] binds an owner-only socket, replacing any stale socket file.
// [Conn.ReadFrame] reads one frame exactly: a connection that closes
// before the first header byte reports [KindPeerClosed], and a header
// announcing more payload than the protocol or the caller allows
// reports [KindOverflow] without touching the body. The body is never
// drained in that case, so the connection must be closed.
// [Conn.WriteFrame] writes header and payload in one call; partial
// writes are not observable.
//
// Failures are *[Error] values carrying a [Kind], so callers can tell
// an orderly peer close from a protocol violation with errors.As.
package control
