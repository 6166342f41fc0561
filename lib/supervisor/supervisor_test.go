// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yai-labs/yai/lib/events"
	"github.com/yai-labs/yai/lib/testutil"
)

func shell(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return path
}

func waitFor(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		name string
		want Policy
	}{
		{"", OnFailure},
		{"on-failure", OnFailure},
		{"always", Always},
		{"never", Never},
	}
	for _, test := range tests {
		got, err := ParsePolicy(test.name)
		if err != nil {
			t.Fatalf("ParsePolicy(%q): %v", test.name, err)
		}
		if got != test.want {
			t.Errorf("ParsePolicy(%q) = %v, want %v", test.name, got, test.want)
		}
	}
	if _, err := ParsePolicy("sometimes"); err == nil {
		t.Error("ParsePolicy(sometimes) succeeded")
	}
}

func TestShouldRestart(t *testing.T) {
	failure := errors.New("exit status 1")
	tests := []struct {
		policy Policy
		err    error
		want   bool
	}{
		{OnFailure, nil, false},
		{OnFailure, failure, true},
		{Always, nil, true},
		{Always, failure, true},
		{Never, failure, false},
	}
	for _, test := range tests {
		if got := test.policy.ShouldRestart(test.err); got != test.want {
			t.Errorf("%v.ShouldRestart(%v) = %v, want %v", test.policy, test.err, got, test.want)
		}
	}
}

func TestBackoffDelay(t *testing.T) {
	backoff := Backoff{Initial: 100 * time.Millisecond, Max: time.Second}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for attempt, expected := range want {
		if got := backoff.Delay(attempt); got != expected {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, expected)
		}
	}
	if got := (Backoff{}).Delay(3); got != 0 {
		t.Errorf("zero backoff Delay(3) = %v, want 0", got)
	}
}

func TestStateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")
	if _, err := ReadState(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("ReadState(missing) error = %v, want ErrNotExist", err)
	}

	written := State{
		BootPID:  42,
		BootedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Planes: []PlaneState{
			{Name: "root", Binary: "/usr/bin/yai-root", PID: 100, Starts: 2, Restarts: 1, LastExit: "exit status 1"},
			{Name: "kernel", Binary: "/usr/bin/yai-kernel", GaveUp: true},
		},
	}
	if err := WriteState(path, written); err != nil {
		t.Fatalf("WriteState: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("state file mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temporary file left behind: %v", err)
	}

	read, err := ReadState(path)
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	root, ok := read.Plane("root")
	if !ok || root.PID != 100 || root.Restarts != 1 || root.LastExit != "exit status 1" {
		t.Errorf("root plane = %+v", root)
	}
	if kernel, _ := read.Plane("kernel"); !kernel.GaveUp {
		t.Errorf("kernel plane = %+v, want GaveUp", kernel)
	}
	if !read.BootedAt.Equal(written.BootedAt) {
		t.Errorf("BootedAt = %v, want %v", read.BootedAt, written.BootedAt)
	}

	if err := ClearState(path); err != nil {
		t.Fatalf("ClearState: %v", err)
	}
	if err := ClearState(path); err != nil {
		t.Errorf("second ClearState: %v", err)
	}
}

func TestReadStateRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")
	if err := os.WriteFile(path, []byte{0xff, 0x00, 0x13}, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadState(path); err == nil {
		t.Error("ReadState(garbage) succeeded")
	}
}

func TestGivesUpAfterRestartBudget(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.cbor")
	recorder := &events.Recorder{}
	supervisor := New(Options{
		Planes:      []Plane{{Name: "root", Binary: shell(t), Args: []string{"-c", "exit 3"}}},
		Policy:      OnFailure,
		Backoff:     Backoff{Initial: time.Millisecond, Max: 4 * time.Millisecond},
		MaxRestarts: 2,
		Window:      time.Minute,
		StatePath:   statePath,
		Sink:        recorder,
	})

	err := supervisor.Run(context.Background())
	if !errors.Is(err, ErrGaveUp) {
		t.Fatalf("Run error = %v, want ErrGaveUp", err)
	}

	plane, _ := supervisor.State().Plane("root")
	if plane.Starts != 3 || plane.Restarts != 2 || !plane.GaveUp {
		t.Errorf("plane state = %+v, want 3 starts, 2 restarts, gave up", plane)
	}
	if plane.LastExit != "exit status 3" {
		t.Errorf("LastExit = %q, want %q", plane.LastExit, "exit status 3")
	}

	persisted, err := ReadState(statePath)
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	if got, _ := persisted.Plane("root"); !got.GaveUp {
		t.Errorf("persisted plane = %+v, want GaveUp", got)
	}

	var started, terminated int
	for _, event := range recorder.Events() {
		switch event.Type {
		case events.RunProvisioned:
			started++
		case events.RunTerminated:
			terminated++
		}
		if event.WorkspaceID != SystemWorkspace {
			t.Errorf("event ws_id = %q, want %q", event.WorkspaceID, SystemWorkspace)
		}
	}
	if started != 3 || terminated != 3 {
		t.Errorf("events: %d started, %d terminated, want 3 and 3", started, terminated)
	}
}

func TestCleanExitIsNotRestartedOnFailurePolicy(t *testing.T) {
	supervisor := New(Options{
		Planes:      []Plane{{Name: "kernel", Binary: shell(t), Args: []string{"-c", "exit 0"}}},
		Policy:      OnFailure,
		MaxRestarts: 5,
	})
	if err := supervisor.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	plane, _ := supervisor.State().Plane("kernel")
	if plane.Starts != 1 || plane.GaveUp {
		t.Errorf("plane state = %+v, want one start", plane)
	}
}

func TestMissingBinaryGivesUp(t *testing.T) {
	supervisor := New(Options{
		Planes:      []Plane{{Name: "engine", Binary: filepath.Join(t.TempDir(), "absent")}},
		Policy:      Always,
		MaxRestarts: 3,
	})
	if err := supervisor.Run(context.Background()); !errors.Is(err, ErrGaveUp) {
		t.Fatalf("Run error = %v, want ErrGaveUp", err)
	}
	if plane, _ := supervisor.State().Plane("engine"); plane.Starts != 0 {
		t.Errorf("Starts = %d, want 0", plane.Starts)
	}
}

func TestCancelStopsPlanes(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	supervisor := New(Options{
		Planes: []Plane{
			{Name: "root", Binary: sleep, Args: []string{"30"}},
			{Name: "kernel", Binary: sleep, Args: []string{"30"}},
		},
		Policy:      Always,
		MaxRestarts: 5,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- supervisor.Run(ctx) }()

	waitFor(t, "both planes running", func() bool {
		for _, plane := range supervisor.State().Planes {
			if plane.PID == 0 {
				return false
			}
		}
		return true
	})
	cancel()

	if err := testutil.RequireReceive(t, done, 5*time.Second, "waiting for Run"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, plane := range supervisor.State().Planes {
		if plane.PID != 0 {
			t.Errorf("%s PID = %d after stop, want 0", plane.Name, plane.PID)
		}
		if !strings.Contains(plane.LastExit, "terminated") {
			t.Errorf("%s LastExit = %q, want SIGTERM exit", plane.Name, plane.LastExit)
		}
		if plane.Starts != 1 {
			t.Errorf("%s Starts = %d, want 1", plane.Name, plane.Starts)
		}
	}
}

func TestStopKillsAfterGrace(t *testing.T) {
	ready := filepath.Join(t.TempDir(), "ready")
	script := `trap "" TERM; touch "$1"; while :; do sleep 0.05; done`
	supervisor := New(Options{
		Planes:    []Plane{{Name: "root", Binary: shell(t), Args: []string{"-c", script, "sh", ready}}},
		Policy:    Never,
		StopGrace: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- supervisor.Run(ctx) }()

	waitFor(t, "trap installed", func() bool {
		_, err := os.Stat(ready)
		return err == nil
	})
	cancel()

	if err := testutil.RequireReceive(t, done, 5*time.Second, "waiting for Run"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	plane, _ := supervisor.State().Plane("root")
	if !strings.Contains(plane.LastExit, "killed") {
		t.Errorf("LastExit = %q, want SIGKILL exit", plane.LastExit)
	}
}
