// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"

	"github.com/yai-labs/yai/lib/config"
	"github.com/yai-labs/yai/lib/events"
	"github.com/yai-labs/yai/lib/rpc"
	"github.com/yai-labs/yai/lib/runpath"
)

func writeConfig(t *testing.T, home string, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yai.yaml")
	content := "paths:\n  home: " + home + "\n  shm_dir: " + t.TempDir() + "\nlogging:\n  level: debug\n  format: json\n" + extra
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRegisterCommonFlags(t *testing.T) {
	flags := pflag.NewFlagSet("yai-kernel", pflag.ContinueOnError)
	var common CommonFlags
	RegisterCommonFlags(flags, &common)
	if err := flags.Parse([]string{"--config", "/etc/yai.yaml", "--master"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if common.ConfigPath != "/etc/yai.yaml" || !common.Master || common.ShowVersion {
		t.Errorf("flags = %+v", common)
	}
}

func TestBootstrap(t *testing.T) {
	home := t.TempDir()
	t.Setenv(config.EnvVar, "")

	result, cleanup, err := Bootstrap(context.Background(), BootstrapConfig{
		Flags: CommonFlags{ConfigPath: writeConfig(t, home, "")},
		Plane: runpath.PlaneKernel,
	})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	if result.Layout.Home != home {
		t.Errorf("Layout.Home = %q, want %q", result.Layout.Home, home)
	}
	if info, err := os.Stat(result.Layout.PlaneDir(runpath.PlaneKernel)); err != nil || !info.IsDir() {
		t.Errorf("plane directory: %v", err)
	}
	if _, err := os.Stat(result.Layout.LogFile(runpath.PlaneKernel)); err != nil {
		t.Errorf("log file: %v", err)
	}

	server, err := result.NewServer(ServerOptions{Plane: rpc.PlaneKernel})
	if err != nil || server == nil {
		t.Fatalf("NewServer: %v", err)
	}

	result.Sink.Emit(events.New(result.Clock.Now(), "ws-boot", "", events.RunProvisioned, events.LevelInfo, "provisioned", nil))
	cleanup()

	journal, err := events.ReadJournal(result.Layout.Journal("ws-boot"))
	if err != nil {
		t.Fatalf("ReadJournal: %v", err)
	}
	if len(journal) != 1 || journal[0].Type != events.RunProvisioned {
		t.Errorf("journal = %+v", journal)
	}
}

func TestBootstrapRejectsBadControlMode(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	path := writeConfig(t, t.TempDir(), "control:\n  mode: broadcast\n")
	if _, _, err := Bootstrap(context.Background(), BootstrapConfig{
		Flags: CommonFlags{ConfigPath: path},
		Plane: runpath.PlaneRoot,
	}); err == nil {
		t.Fatal("Bootstrap accepted control.mode broadcast")
	}
}

func TestBootstrapRequiresPlane(t *testing.T) {
	if _, _, err := Bootstrap(context.Background(), BootstrapConfig{}); err == nil {
		t.Fatal("Bootstrap succeeded without a plane")
	}
}
