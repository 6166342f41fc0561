// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the binary control protocol shared by every
// plane of the runtime: the fixed 96-byte [Envelope] that precedes each
// message, the handshake payloads, the validation sequence every frame
// consumer applies before interpreting a command, and the structured
// error object returned when validation or authority checks fail.
//
// All multi-byte integers are in host byte order. The protocol only
// runs over Unix domain sockets between processes on one machine, so
// both ends always share an architecture.
//
// The envelope layout is a cross-process contract:
//
//	offset  size  field
//	     0     4  magic        0x59414950 ("YAIP")
//	     4     4  version      1
//	     8    36  ws_id        NUL-terminated
//	    44    36  trace_id     NUL-terminated
//	    80     4  command_id
//	    84     2  role         none/user/operator/system
//	    86     1  arming       0 or 1
//	    87     1  pad
//	    88     4  payload_len  at most MaxPayload
//	    92     4  checksum     reserved, must be zero
//
// [CheckABI] verifies the layout at startup; every binary calls it
// before serving.
package wire
