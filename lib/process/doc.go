// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers every yai binary shares:
// reporting a fatal error before or after the logger exists, mapping
// errors to exit codes, and turning SIGINT and SIGTERM into context
// cancellation.
//
// This is one of the few places allowed to write to stderr directly.
package process
