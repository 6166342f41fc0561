// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"errors"
	"fmt"
	"os"

	"github.com/yai-labs/yai/lib/runpath"
	"github.com/yai-labs/yai/lib/vault"
	"github.com/yai-labs/yai/lib/wire"
)

// SystemWorkspace is the workspace id of the boot-owned system vault.
const SystemWorkspace = "system"

// Preboot verifies the host before any plane starts: a home directory,
// a creatable run tree, a usable shared memory directory, and the
// vault and wire binary layouts this build was compiled against. All
// failures are reported together.
func Preboot(layout runpath.Layout, shmDir string) error {
	var failures []error

	if layout.Home == "" {
		failures = append(failures, errors.New("home directory is not set"))
	} else {
		for _, dir := range []string{layout.RunDir(), layout.PlaneDir(runpath.PlaneBoot)} {
			if err := runpath.Ensure(dir); err != nil {
				failures = append(failures, err)
			}
		}
	}

	if shmDir == "" {
		shmDir = vault.DefaultDir
	}
	if info, err := os.Stat(shmDir); err != nil {
		failures = append(failures, fmt.Errorf("shared memory directory: %w", err))
	} else if !info.IsDir() {
		failures = append(failures, fmt.Errorf("shared memory directory %s is not a directory", shmDir))
	}

	if err := vault.CheckABI(); err != nil {
		failures = append(failures, err)
	}
	if err := wire.CheckABI(); err != nil {
		failures = append(failures, err)
	}

	if len(failures) > 0 {
		return fmt.Errorf("preboot: %w", errors.Join(failures...))
	}
	return nil
}

// InitSystemVault discards any system vault left by a previous boot
// and creates a fresh one in PREBOOT. The caller owns the returned
// segment and closes it at shutdown.
func InitSystemVault(shmDir string, quota uint32) (*vault.Segment, error) {
	if err := vault.Unlink(shmDir, SystemWorkspace, ""); err != nil {
		return nil, err
	}
	segment, err := vault.Create(shmDir, SystemWorkspace, "", quota)
	if err != nil {
		return nil, fmt.Errorf("creating system vault: %w", err)
	}
	return segment, nil
}
