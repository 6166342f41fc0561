// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package runpath derives the on-disk runtime layout from a home
// directory. Every path a plane binds, locks, or logs to is computed
// here so the planes and the CLI agree without coordination:
//
//	~/.yai/run/<ws>/control.sock     workspace kernel socket
//	~/.yai/run/<ws>/lock             session lock file
//	~/.yai/run/<ws>/kernel.pid       session pid file
//	~/.yai/run/<ws>/semantic.sqlite  storage gate database
//	~/.yai/run/<ws>/events.cbor      event journal
//	~/.yai/run/root/root.sock        root plane socket
//	~/.yai/run/kernel/control.sock   kernel plane socket
//	~/.yai/run/engine/control.sock   engine plane socket
package runpath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Plane names. Each plane owns a directory under the run tree.
const (
	PlaneRoot   = "root"
	PlaneKernel = "kernel"
	PlaneEngine = "engine"
	PlaneBoot   = "boot"
)

// File names inside a workspace directory.
const (
	ControlSocketName = "control.sock"
	LockFileName      = "lock"
	PIDFileName       = "kernel.pid"
	StorageDBName     = "semantic.sqlite"
	JournalName       = "events.cbor"
)

// Layout is the runtime tree rooted at Home.
type Layout struct {
	Home string
}

// FromEnv returns the layout for the current user. $HOME wins over
// the passwd entry so tests can redirect the tree.
func FromEnv() (Layout, error) {
	if home := os.Getenv("HOME"); home != "" {
		return Layout{Home: home}, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Layout{}, fmt.Errorf("resolving home directory: %w", err)
	}
	if home == "" {
		return Layout{}, errors.New("home directory is empty")
	}
	return Layout{Home: home}, nil
}

// Root is ~/.yai.
func (l Layout) Root() string { return filepath.Join(l.Home, ".yai") }

// RunDir is ~/.yai/run.
func (l Layout) RunDir() string { return filepath.Join(l.Root(), "run") }

// WorkspaceDir is the run directory of one workspace.
func (l Layout) WorkspaceDir(workspaceID string) string {
	return filepath.Join(l.RunDir(), workspaceID)
}

// WorkspaceSocket is the control socket of a workspace kernel.
func (l Layout) WorkspaceSocket(workspaceID string) string {
	return filepath.Join(l.WorkspaceDir(workspaceID), ControlSocketName)
}

// LockFile is the session lock of a workspace.
func (l Layout) LockFile(workspaceID string) string {
	return filepath.Join(l.WorkspaceDir(workspaceID), LockFileName)
}

// PIDFile is the pid file of a workspace session.
func (l Layout) PIDFile(workspaceID string) string {
	return filepath.Join(l.WorkspaceDir(workspaceID), PIDFileName)
}

// StorageDB is the storage gate database of a workspace.
func (l Layout) StorageDB(workspaceID string) string {
	return filepath.Join(l.WorkspaceDir(workspaceID), StorageDBName)
}

// Journal is the event journal of a workspace.
func (l Layout) Journal(workspaceID string) string {
	return filepath.Join(l.WorkspaceDir(workspaceID), JournalName)
}

// PlaneDir is the directory of a singleton plane.
func (l Layout) PlaneDir(plane string) string {
	return filepath.Join(l.RunDir(), plane)
}

// PlaneSocket is the control socket of a singleton plane. The root
// plane's socket is root.sock; the others use control.sock.
func (l Layout) PlaneSocket(plane string) string {
	if plane == PlaneRoot {
		return filepath.Join(l.PlaneDir(plane), "root.sock")
	}
	return filepath.Join(l.PlaneDir(plane), ControlSocketName)
}

// LogFile is the log file of a plane.
func (l Layout) LogFile(plane string) string {
	return filepath.Join(l.PlaneDir(plane), plane+".log")
}

// SupervisorState is the boot supervisor's state file.
func (l Layout) SupervisorState() string {
	return filepath.Join(l.PlaneDir(PlaneBoot), "state.cbor")
}

// Ensure creates dir and its parents with owner-only permissions.
func Ensure(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
