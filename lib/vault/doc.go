// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package vault implements the Vault: the fixed-layout record that holds
// a workspace's authoritative runtime state and is shared between the
// kernel, the engine, and diagnostic readers through a memory-mapped
// segment.
//
// The byte layout is a cross-process ABI. Independently built processes
// map the same 1448 bytes, so field offsets never move:
//
//	offset  size  field
//	     0     4  status               kernel
//	     4     4  energy_quota         boot / kernel
//	     8     4  energy_consumed      engine (via ConsumeEnergy)
//	    12    64  workspace_id         set once at creation
//	    76    64  trace_id             control layer, per request
//	   140     1  authority_lock       kernel (engine on emergency)
//	   141     3  padding
//	   144     4  last_command_id      control layer (mailbox writer)
//	   148     4  command_seq          control layer (mailbox writer)
//	   152     4  last_processed_seq   engine (mailbox reader)
//	   156     4  last_result          engine
//	   160  1024  response_buffer      engine
//	  1184   256  last_error           engine / kernel
//	  1440     8  logical_clock        kernel
//
// The owner column is a convention, not an enforced rule: the record
// carries no lock of its own. Counters are read and written with
// sync/atomic on the mapped words so that a reader in another process
// never observes a torn value. Writers that need several fields to
// change together take the advisory segment lock ([Segment.Lock]):
// [Create] holds it while bootstrapping, and the engine holds it while
// engaging an emergency lock.
//
// Guards ([ConsumeEnergy], [AllowsCommand]) report failure as a boolean
// and never panic: they run against memory other processes depend on.
package vault
