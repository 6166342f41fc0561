// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage is the engine's graph store gate. It serves the
// STORAGE_* commands against a per-workspace SQLite database at
// ~/.yai/run/<ws>/semantic.sqlite holding two tables, nodes and edges.
//
// Every reply is a JSON object with "v", "status", and "ws_id"
// fields; failures set status to "error" and carry one of the Code*
// constants.
package storage
