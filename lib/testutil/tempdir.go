// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SocketDir creates a temporary directory suitable for Unix domain
// sockets. t.TempDir() paths can exceed the 108-byte sun_path limit,
// so the directory is created directly in /tmp. It is removed when
// the test completes.
func SocketDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "yai-test-*")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return directory
}

// HomeDir creates a temporary home directory with an empty
// .yai/run tree, points $HOME at it for the duration of the test, and
// returns its path. The directory lives under /tmp for the same
// socket-path reason as SocketDir.
func HomeDir(t *testing.T) string {
	t.Helper()
	home := SocketDir(t)
	if err := os.MkdirAll(filepath.Join(home, ".yai", "run"), 0o700); err != nil {
		t.Fatalf("creating run tree: %v", err)
	}
	t.Setenv("HOME", home)
	return home
}

// ShmDir returns a private directory standing in for /dev/shm.
func ShmDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}
