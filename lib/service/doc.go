// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package service holds the startup sequence shared by the yai plane
// binaries (yai-root, yai-kernel, yai-engine, yai-boot).
//
// [Bootstrap] refuses to start when the compiled vault or envelope
// layout is wrong, loads and validates the configuration, creates the
// plane's run directory, and builds the logger and event sinks. The
// result carries helpers that turn configuration into a control
// listener and an rpc server, so every plane binds and dispatches the
// same way.
//
// Binaries compose these pieces in their own main() rather than
// handing control to a framework.
package service
