// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command-line framework of the yai CLI.
//
// The central type is [Command]: a named node with an optional
// [pflag.FlagSet] factory, nested [Command.Subcommands], and a Run
// function. The tree is assembled in cmd/yai/commands and dispatched
// with [Command.Execute], which parses flags, routes subcommands, and
// prints help with examples. Unknown commands and flags get a
// "did you mean" suggestion by edit distance (suggest.go).
//
// [Connection] carries the flags every command that talks to a plane
// shares (--target, --ws, --role, --arm, --home, --socket, --timeout)
// and dials the resolved socket with a handshake. [ReadPayload] loads
// request bodies given inline, from a file, or from stdin, accepting
// JSON with comments and trailing commas.
package cli
