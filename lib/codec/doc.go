// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the runtime's CBOR configuration.
//
// The runtime uses three encodings with a clear boundary:
//
//   - the fixed binary envelope (lib/wire) for control-plane frames;
//   - JSON for frame payloads, CLI output, and the gate protocols;
//   - CBOR for on-disk records: the kernel event journal and the boot
//     supervisor's state file.
//
// This package holds the shared CBOR modes so every writer encodes
// identically:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For CBOR sequences (one item after another in a file):
//
//	encoder := codec.NewEncoder(file)
//	decoder := codec.NewDecoder(file)
package codec
