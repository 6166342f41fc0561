// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/yai-labs/yai/lib/runpath"
	"github.com/yai-labs/yai/lib/testutil"
)

func newRegistry(t *testing.T, home string, pid int) *Registry {
	t.Helper()
	registry, err := NewRegistry(Options{
		Capacity: 4,
		Layout:   runpath.Layout{Home: home},
		PID:      pid,
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	t.Cleanup(func() { registry.Close() })
	return registry
}

func TestAcquireCreatesLockAndPID(t *testing.T) {
	home := testutil.HomeDir(t)
	registry := newRegistry(t, home, os.Getpid())

	session, err := registry.Acquire("ws-42")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	want := runpath.Layout{Home: home}.LockFile("ws-42")
	if session.Workspace.LockFile != want {
		t.Errorf("LockFile = %q, want %q", session.Workspace.LockFile, want)
	}
	for _, path := range []string{session.Workspace.LockFile, session.Workspace.PIDFile} {
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading %s: %v", path, err)
		}
		if got := strings.TrimSpace(string(content)); got != strconv.Itoa(os.Getpid()) {
			t.Errorf("%s holds %q, want our pid", path, got)
		}
	}
	if session.RunID != 1 {
		t.Errorf("RunID = %d, want 1", session.RunID)
	}
	if session.Capabilities != DefaultCapabilities {
		t.Errorf("Capabilities = %#x, want %#x", session.Capabilities, DefaultCapabilities)
	}
}

func TestAcquireReusesSession(t *testing.T) {
	registry := newRegistry(t, testutil.HomeDir(t), os.Getpid())
	first, err := registry.Acquire("ws-42")
	if err != nil {
		t.Fatal(err)
	}
	second, err := registry.Acquire("ws-42")
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if first != second {
		t.Error("second Acquire returned a different session")
	}
	if registry.Len() != 1 {
		t.Errorf("Len = %d, want 1", registry.Len())
	}
}

func TestAcquireRejectsInvalidWorkspace(t *testing.T) {
	registry := newRegistry(t, testutil.HomeDir(t), os.Getpid())
	for _, id := range []string{"", "../etc", "ws 42", strings.Repeat("a", 36)} {
		if _, err := registry.Acquire(id); !errors.Is(err, ErrInvalidWorkspace) {
			t.Errorf("Acquire(%q) = %v, want ErrInvalidWorkspace", id, err)
		}
	}
}

func TestAcquireExclusiveAcrossRegistries(t *testing.T) {
	home := testutil.HomeDir(t)
	first := newRegistry(t, home, os.Getpid())
	second := newRegistry(t, home, os.Getpid())

	var wait sync.WaitGroup
	results := make([]error, 2)
	for index, registry := range []*Registry{first, second} {
		wait.Add(1)
		go func() {
			defer wait.Done()
			_, results[index] = registry.Acquire("ws-42")
		}()
	}
	wait.Wait()

	successes, denials := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrDenied):
			denials++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 || denials != 1 {
		t.Fatalf("successes = %d, denials = %d, want 1 and 1", successes, denials)
	}
}

func TestAcquireReclaimsStaleLock(t *testing.T) {
	home := testutil.HomeDir(t)
	layout := runpath.Layout{Home: home}
	if err := runpath.Ensure(layout.WorkspaceDir("ws-42")); err != nil {
		t.Fatal(err)
	}
	// No process has this pid: pid_max is at most 1<<22.
	stale := strconv.Itoa(1<<30) + "\n"
	if err := os.WriteFile(layout.LockFile("ws-42"), []byte(stale), 0o600); err != nil {
		t.Fatal(err)
	}

	registry := newRegistry(t, home, os.Getpid())
	if _, err := registry.Acquire("ws-42"); err != nil {
		t.Fatalf("Acquire over stale lock: %v", err)
	}
}

func TestAcquireReclaimsEmptyLock(t *testing.T) {
	home := testutil.HomeDir(t)
	layout := runpath.Layout{Home: home}
	if err := runpath.Ensure(layout.WorkspaceDir("ws-42")); err != nil {
		t.Fatal(err)
	}
	// A creator that died between create and write leaves an empty
	// file with no flock on it.
	if err := os.WriteFile(layout.LockFile("ws-42"), nil, 0o600); err != nil {
		t.Fatal(err)
	}

	registry := newRegistry(t, home, os.Getpid())
	if _, err := registry.Acquire("ws-42"); err != nil {
		t.Fatalf("Acquire over empty lock: %v", err)
	}
	content, err := os.ReadFile(layout.LockFile("ws-42"))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(content)); got != strconv.Itoa(os.Getpid()) {
		t.Errorf("lock content = %q, want our pid", got)
	}
}

func TestAcquireDeniesLiveRecordedOwner(t *testing.T) {
	home := testutil.HomeDir(t)
	layout := runpath.Layout{Home: home}
	if err := runpath.Ensure(layout.WorkspaceDir("ws-42")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(layout.LockFile("ws-42"), []byte("4242\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	registry, err := NewRegistry(Options{
		Layout: layout,
		PID:    1001,
		Alive:  func(pid int) bool { return pid == 4242 },
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { registry.Close() })
	if _, err := registry.Acquire("ws-42"); !errors.Is(err, ErrDenied) {
		t.Fatalf("Acquire over live owner = %v, want ErrDenied", err)
	}
}

// Two kernels that both find the same dead pid in a lock file must
// not both take the workspace over.
func TestAcquireStaleLockReclaimedOnce(t *testing.T) {
	for range 5 {
		home := testutil.HomeDir(t)
		layout := runpath.Layout{Home: home}
		workspaceID := testutil.WorkspaceID()
		if err := runpath.Ensure(layout.WorkspaceDir(workspaceID)); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(layout.LockFile(workspaceID), []byte("999999\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		// Both registries decide the recorded owner is dead before
		// either of them goes on to take the lock.
		var arrived sync.WaitGroup
		arrived.Add(2)
		alive := func(int) bool {
			arrived.Done()
			arrived.Wait()
			return false
		}

		var registries []*Registry
		for _, pid := range []int{1001, 1002} {
			registry, err := NewRegistry(Options{Layout: layout, PID: pid, Alive: alive})
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { registry.Close() })
			registries = append(registries, registry)
		}

		var wait sync.WaitGroup
		results := make([]error, len(registries))
		for index, registry := range registries {
			wait.Add(1)
			go func() {
				defer wait.Done()
				_, results[index] = registry.Acquire(workspaceID)
			}()
		}
		wait.Wait()

		successes := 0
		for _, err := range results {
			switch {
			case err == nil:
				successes++
			case !errors.Is(err, ErrDenied):
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if successes != 1 {
			t.Fatalf("%d registries acquired %s after reclaiming the same stale lock, want 1", successes, workspaceID)
		}
	}
}

func TestReleaseFreesSlotAndFiles(t *testing.T) {
	home := testutil.HomeDir(t)
	registry := newRegistry(t, home, os.Getpid())
	session, err := registry.Acquire("ws-42")
	if err != nil {
		t.Fatal(err)
	}
	if err := registry.Release(session); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(session.Workspace.LockFile); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lock file survives release: %v", err)
	}
	if _, ok := registry.Get("ws-42"); ok {
		t.Error("session still registered after release")
	}

	// Another registry can now take the workspace.
	other := newRegistry(t, home, os.Getpid())
	if _, err := other.Acquire("ws-42"); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
}

func TestRegistryFull(t *testing.T) {
	registry := newRegistry(t, testutil.HomeDir(t), os.Getpid())
	for index := range 4 {
		if _, err := registry.Acquire(testutil.WorkspaceID()); err != nil {
			t.Fatalf("Acquire %d: %v", index, err)
		}
	}
	if _, err := registry.Acquire(testutil.WorkspaceID()); !errors.Is(err, ErrRegistryFull) {
		t.Fatalf("fifth Acquire = %v, want ErrRegistryFull", err)
	}
}

func TestProcessAlive(t *testing.T) {
	if !ProcessAlive(os.Getpid()) {
		t.Error("own pid reported dead")
	}
	if ProcessAlive(1 << 30) {
		t.Error("pid 1<<30 reported alive")
	}
	if ProcessAlive(0) {
		t.Error("pid 0 reported alive")
	}
}
