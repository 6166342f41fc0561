// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/yai-labs/yai/lib/clock"
	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/events"
	"github.com/yai-labs/yai/lib/kernel"
	"github.com/yai-labs/yai/lib/testutil"
	"github.com/yai-labs/yai/lib/vault"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func attach(t *testing.T, dir string, channels ...string) (*Bridge, *events.Recorder) {
	t.Helper()
	recorder := &events.Recorder{}
	bridge, err := Attach(Options{
		Dir:         dir,
		WorkspaceID: "ws-42",
		Channels:    channels,
		Create:      true,
		Quota:       100,
		Sink:        recorder,
		Clock:       clock.Fake(epoch),
	})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	t.Cleanup(func() { bridge.Close() })
	return bridge, recorder
}

func TestAttachBootsWorkspace(t *testing.T) {
	bridge, _ := attach(t, testutil.ShmDir(t))
	if got := kernel.State(bridge.Vault().Status()); got != kernel.Ready {
		t.Errorf("state = %s, want READY", got)
	}
	if !bridge.Vault().AuthorityLocked() {
		t.Error("attach released the authority lock")
	}
}

func TestAttachWithoutSegmentFails(t *testing.T) {
	_, err := Attach(Options{Dir: testutil.ShmDir(t), WorkspaceID: "ws-missing"})
	if err == nil {
		t.Fatal("Attach succeeded without a core segment")
	}
}

func TestChannelFallsBackToCore(t *testing.T) {
	dir := testutil.ShmDir(t)
	brain, err := vault.Create(dir, "ws-42", vault.ChannelBrain, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer brain.Close()

	bridge, _ := attach(t, dir, vault.ChannelBrain, vault.ChannelAudit)
	if record, _ := bridge.Channel(vault.ChannelAudit); record != bridge.Vault() {
		t.Error("absent audit channel did not fall back to the core record")
	}
	if record, _ := bridge.Channel(vault.ChannelBrain); record == bridge.Vault() {
		t.Error("existing brain channel was replaced by the core record")
	}
}

func TestPingAndNoop(t *testing.T) {
	bridge, _ := attach(t, testutil.ShmDir(t))
	record := bridge.Vault()

	seq := vault.PostCommand(record, command.Ping)
	if !bridge.ProcessPending(context.Background()) {
		t.Fatal("PING not processed")
	}
	if record.Response() != "PONG" || record.LastResult() != vault.ResultOK {
		t.Errorf("response = %q result = %d", record.Response(), record.LastResult())
	}
	if record.LastProcessedSeq() != seq {
		t.Errorf("last_processed_seq = %d, want %d", record.LastProcessedSeq(), seq)
	}
	if bridge.ProcessPending(context.Background()) {
		t.Error("processed a command twice")
	}

	vault.PostCommand(record, command.Noop)
	bridge.ProcessPending(context.Background())
	if record.Response() != "OK" {
		t.Errorf("NOOP response = %q", record.Response())
	}
}

func TestExternalDeniedUnderLock(t *testing.T) {
	bridge, _ := attach(t, testutil.ShmDir(t))
	record := bridge.Vault()
	k := kernel.New(kernel.Options{})
	record.SetAuthorityLock(false)
	if err := k.Transition(record, kernel.Running); err != nil {
		t.Fatal(err)
	}
	record.SetAuthorityLock(true)

	vault.PostCommand(record, command.StoragePut)
	bridge.ProcessPending(context.Background())

	if record.LastError() != "External effect denied: authority required" {
		t.Errorf("last_error = %q", record.LastError())
	}
	if record.LastResult() != vault.ResultError {
		t.Errorf("last_result = %#x, want error", record.LastResult())
	}
	if got := kernel.State(record.Status()); got != kernel.Suspended {
		t.Errorf("state = %s, want SUSPENDED", got)
	}
}

func TestExternalAllowedDescribesEffect(t *testing.T) {
	bridge, _ := attach(t, testutil.ShmDir(t))
	record := bridge.Vault()
	record.SetAuthorityLock(false)

	vault.PostCommand(record, command.Inference)
	bridge.ProcessPending(context.Background())

	response := record.Response()
	if !strings.HasPrefix(response, "effect=external;class=external;") || !strings.Contains(response, "authority=ok") {
		t.Errorf("response = %q", response)
	}
	if record.LastResult() != vault.ResultOK {
		t.Errorf("last_result = %#x, want ok", record.LastResult())
	}
}

func TestReconfigureRequiresSuspended(t *testing.T) {
	bridge, _ := attach(t, testutil.ShmDir(t))
	record := bridge.Vault()
	record.SetAuthorityLock(false)

	vault.PostCommand(record, command.Reconfigure)
	bridge.ProcessPending(context.Background())
	if record.LastError() != "Reconfigure requires SUSPENDED state" {
		t.Fatalf("last_error = %q", record.LastError())
	}

	k := kernel.New(kernel.Options{})
	for _, state := range []kernel.State{kernel.Running, kernel.Suspended} {
		if err := k.Transition(record, state); err != nil {
			t.Fatal(err)
		}
	}
	vault.PostCommand(record, command.Reconfigure)
	bridge.ProcessPending(context.Background())
	if record.Response() != "RECONFIGURED" {
		t.Fatalf("response = %q, last_error = %q", record.Response(), record.LastError())
	}
	if got := kernel.State(record.Status()); got != kernel.Halt {
		t.Errorf("state = %s, want HALT", got)
	}
	if record.AuthorityLocked() {
		t.Error("reconfigure left the authority lock engaged")
	}
}

func TestUnknownCommandErrors(t *testing.T) {
	bridge, _ := attach(t, testutil.ShmDir(t))
	record := bridge.Vault()
	record.SetAuthorityLock(false)
	k := kernel.New(kernel.Options{})
	if err := k.Transition(record, kernel.Running); err != nil {
		t.Fatal(err)
	}

	vault.PostCommand(record, command.ID(0x0777))
	bridge.ProcessPending(context.Background())
	if record.LastError() != "Unknown command id: 1911" {
		t.Errorf("last_error = %q", record.LastError())
	}
	if got := kernel.State(record.Status()); got != kernel.Error {
		t.Errorf("state = %s, want ERROR", got)
	}
}

func TestIntegrityLocksBrain(t *testing.T) {
	dir := testutil.ShmDir(t)
	brainSegment, err := vault.Create(dir, "ws-42", vault.ChannelBrain, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer brainSegment.Close()
	brainSegment.Record().SetAuthorityLock(false)

	bridge, recorder := attach(t, dir, vault.ChannelBrain)
	record := bridge.Vault()
	record.SetAuthorityLock(false)

	if bridge.CheckIntegrity() {
		t.Fatal("integrity check fired within budget")
	}
	if !bridge.ConsumeEnergy(50) {
		t.Fatal("ConsumeEnergy(50) failed")
	}
	record.SetEnergyQuota(10)
	if !bridge.CheckIntegrity() {
		t.Fatal("integrity check missed overspend")
	}
	if !brainSegment.Record().AuthorityLocked() {
		t.Error("brain channel not locked")
	}
	last, _ := recorder.Last()
	if last.Type != events.CapabilityRevoked {
		t.Errorf("last event = %d, want cap_revoked", last.Type)
	}
}

func TestEmergencyLock(t *testing.T) {
	bridge, _ := attach(t, testutil.ShmDir(t))
	record := bridge.Vault()
	record.SetAuthorityLock(false)
	k := kernel.New(kernel.Options{})
	if err := k.Transition(record, kernel.Running); err != nil {
		t.Fatal(err)
	}

	bridge.EmergencyLock("signal terminated")
	if !record.AuthorityLocked() {
		t.Error("emergency did not lock")
	}
	if got := kernel.State(record.Status()); got != kernel.Error {
		t.Errorf("state = %s, want ERROR", got)
	}
}

func TestRunStopsOnHalt(t *testing.T) {
	bridge, _ := attach(t, testutil.ShmDir(t))
	record := bridge.Vault()
	record.SetAuthorityLock(false)
	k := kernel.New(kernel.Options{})
	for _, state := range []kernel.State{kernel.Running, kernel.Suspended} {
		if err := k.Transition(record, state); err != nil {
			t.Fatal(err)
		}
	}
	vault.PostCommand(record, command.Reconfigure)

	done := make(chan error, 1)
	go func() { done <- bridge.Run(context.Background()) }()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "engine stopping at HALT"); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	bridge, _ := attach(t, testutil.ShmDir(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()
	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "engine stopping on cancel"); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestObserveEmitsScaleDecision(t *testing.T) {
	bridge, recorder := attach(t, testutil.ShmDir(t))
	record := bridge.Vault()

	for range 5 {
		vault.PostCommand(record, command.Noop)
	}
	bridge.observe()
	for range 35 {
		vault.PostCommand(record, command.Noop)
	}
	// Depth 40 against an average of 5: ewma 12, peak delta 28.
	bridge.observe()

	var found bool
	for _, e := range recorder.Events() {
		if e.Type == events.DecisionProposed && e.Data["type"] == "engine_scale_up" {
			found = true
		}
	}
	if !found {
		t.Fatal("no engine_scale_up decision emitted")
	}
}
