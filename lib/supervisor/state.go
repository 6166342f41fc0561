// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yai-labs/yai/lib/codec"
)

// PlaneState is the supervisor's view of one plane process.
type PlaneState struct {
	Name   string `cbor:"name" json:"name"`
	Binary string `cbor:"binary" json:"binary"`

	// PID is the running process, zero while stopped.
	PID int `cbor:"pid" json:"pid"`

	Starts   int `cbor:"starts" json:"starts"`
	Restarts int `cbor:"restarts" json:"restarts"`

	LastStart time.Time `cbor:"last_start" json:"last_start"`
	LastExit  string    `cbor:"last_exit,omitempty" json:"last_exit,omitempty"`

	// GaveUp is set once the restart budget is exhausted.
	GaveUp bool `cbor:"gave_up" json:"gave_up"`
}

// State is the content of the supervisor state file.
type State struct {
	BootPID   int          `cbor:"boot_pid" json:"boot_pid"`
	BootedAt  time.Time    `cbor:"booted_at" json:"booted_at"`
	UpdatedAt time.Time    `cbor:"updated_at" json:"updated_at"`
	Planes    []PlaneState `cbor:"planes" json:"planes"`
}

// Plane returns the state of the named plane.
func (s State) Plane(name string) (PlaneState, bool) {
	for _, plane := range s.Planes {
		if plane.Name == name {
			return plane, true
		}
	}
	return PlaneState{}, false
}

// WriteState atomically replaces the state file: the CBOR encoding is
// written to a temporary file in the same directory, fsynced, and
// renamed into place, so readers never see a partial state. The file
// is created with mode 0600; the parent directory must exist.
func WriteState(path string, state State) error {
	data, err := codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling supervisor state: %w", err)
	}

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating temporary state file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary state file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary state file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary state file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming state file into place: %w", err)
	}

	if parent, err := os.Open(filepath.Dir(path)); err == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}

// ReadState reads the state file. A missing file yields an error
// wrapping os.ErrNotExist.
func ReadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	var state State
	if err := codec.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parsing supervisor state %s: %w", path, err)
	}
	return state, nil
}

// ClearState removes the state file. Idempotent.
func ClearState(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing supervisor state: %w", err)
	}
	return nil
}
