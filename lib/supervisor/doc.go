// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package supervisor boots and watches the yai planes.
//
// [Preboot] checks the host and [InitSystemVault] replaces the system
// vault left by any earlier boot. A [Supervisor] then runs each plane
// binary as a child process and restarts exits according to its
// [Policy], waiting an exponential [Backoff] between attempts. A plane
// that needs more than MaxRestarts restarts inside Window is given up
// on. Cancelling the context passed to Run stops every plane with
// SIGTERM, then SIGKILL after StopGrace.
//
// The supervisor's view of its planes is written to a CBOR state file
// after every change (see [WriteState]) so the CLI can report it
// without talking to the boot process.
package supervisor
