// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yai.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	cfg.expandVariables()

	if cfg.Environment != Development {
		t.Errorf("environment = %s, want development", cfg.Environment)
	}
	if cfg.Control.Profile != "strict" {
		t.Errorf("control.profile = %q, want strict", cfg.Control.Profile)
	}
	if cfg.Engine.PollInterval != 50*time.Millisecond {
		t.Errorf("engine.poll_interval = %v, want 50ms", cfg.Engine.PollInterval)
	}
	if len(cfg.Vault.Channels) != 5 {
		t.Errorf("vault.channels = %v, want five channels", cfg.Vault.Channels)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate(Default) = %v", err)
	}
}

func TestLoadRequiresEnvVar(t *testing.T) {
	t.Setenv(EnvVar, "")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error when YAI_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "YAI_CONFIG environment variable not set") {
		t.Errorf("error = %q", err)
	}
}

func TestResolve(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	t.Run("defaults", func(t *testing.T) {
		t.Setenv(EnvVar, "")
		cfg, err := Resolve("")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if cfg.Paths.Home != "/home/tester" {
			t.Errorf("paths.home = %q, want /home/tester", cfg.Paths.Home)
		}
	})

	t.Run("env var", func(t *testing.T) {
		t.Setenv(EnvVar, writeConfig(t, "environment: staging\n"))
		cfg, err := Resolve("")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if cfg.Environment != Staging {
			t.Errorf("environment = %s, want staging", cfg.Environment)
		}
	})

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(EnvVar, writeConfig(t, "environment: staging\n"))
		cfg, err := Resolve(writeConfig(t, "environment: production\n"))
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if cfg.Environment != Production {
			t.Errorf("environment = %s, want production", cfg.Environment)
		}
	})
}

func TestLoadFile(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	path := writeConfig(t, `
environment: staging

paths:
  home: ${HOME}/alt
  shm_dir: ${YAI_HOME}/shm

logging:
  level: debug
  format: json

control:
  read_timeout: 2s
  mode: oneshot
  profile: permissive

vault:
  energy_quota: 50
  channels: [brain, audit]

engine:
  poll_interval: 20ms
  cortex:
    ewma_alpha: 0.5
    up_hold: 250ms

provider:
  base_url: http://127.0.0.1:8080
  timeout: 5s
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Paths.Home != "/home/tester/alt" {
		t.Errorf("paths.home = %q", cfg.Paths.Home)
	}
	if cfg.Paths.ShmDir != "/home/tester/alt/shm" {
		t.Errorf("paths.shm_dir = %q", cfg.Paths.ShmDir)
	}
	if cfg.Control.ReadTimeout != 2*time.Second {
		t.Errorf("control.read_timeout = %v, want 2s", cfg.Control.ReadTimeout)
	}
	if cfg.Control.WriteTimeout != 10*time.Second {
		t.Errorf("control.write_timeout = %v, want default 10s", cfg.Control.WriteTimeout)
	}
	if cfg.Control.Mode != "oneshot" || cfg.Control.Profile != "permissive" {
		t.Errorf("control = %+v", cfg.Control)
	}
	if cfg.Vault.EnergyQuota != 50 || len(cfg.Vault.Channels) != 2 {
		t.Errorf("vault = %+v", cfg.Vault)
	}
	if cfg.Engine.PollInterval != 20*time.Millisecond {
		t.Errorf("engine.poll_interval = %v", cfg.Engine.PollInterval)
	}
	if cfg.Engine.Cortex.EWMAAlpha != 0.5 || cfg.Engine.Cortex.UpHold != 250*time.Millisecond {
		t.Errorf("engine.cortex = %+v", cfg.Engine.Cortex)
	}
	if cfg.Engine.Cortex.UpThreshold != 30 {
		t.Errorf("engine.cortex.up_threshold = %v, want default 30", cfg.Engine.Cortex.UpThreshold)
	}
	if cfg.Provider.BaseURL != "http://127.0.0.1:8080" || cfg.Provider.Timeout != 5*time.Second {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Provider.Endpoint != "/completion" {
		t.Errorf("provider.endpoint = %q, want default", cfg.Provider.Endpoint)
	}

	level, err := cfg.LogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("LogLevel() = %v, %v", level, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestSchemaRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown section", "sandbox:\n  profile: x\n"},
		{"misspelled key", "control:\n  read_timout: 2s\n"},
		{"bad enum", "control:\n  mode: parallel\n"},
		{"bad duration", "control:\n  read_timeout: soon\n"},
		{"payload too large", "control:\n  max_payload: 100000\n"},
		{"zero quota", "vault:\n  energy_quota: 0\n"},
		{"unknown channel", "vault:\n  channels: [disk]\n"},
		{"alpha out of range", "engine:\n  cortex:\n    ewma_alpha: 1.5\n"},
		{"provider url scheme", "provider:\n  base_url: localhost:8080\n"},
		{"bad override", "development:\n  vault:\n    energy_quota: 5\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := LoadFile(writeConfig(t, test.content)); err == nil {
				t.Errorf("LoadFile accepted:\n%s", test.content)
			}
		})
	}
}

func TestEmptyFileIsDefault(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Sessions.Capacity != 32 {
		t.Errorf("sessions.capacity = %d, want 32", cfg.Sessions.Capacity)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: development
logging:
  level: info
  file: true
development:
  logging:
    level: debug
    file: false
  provider:
    mock: true
staging:
  logging:
    level: error
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Logging.File {
		t.Error("logging.file = true, want false from override")
	}
	if !cfg.Provider.Mock {
		t.Error("provider.mock = false, want true from override")
	}
}

func TestProductionDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: production
control:
  profile: permissive
provider:
  mock: true
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Control.Profile != "strict" {
		t.Errorf("control.profile = %q, want strict in production", cfg.Control.Profile)
	}
	if cfg.Provider.Mock {
		t.Error("provider.mock = true, want false in production")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"environment", func(c *Config) { c.Environment = "qa" }, "invalid environment"},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"capacity", func(c *Config) { c.Sessions.Capacity = 0 }, "sessions.capacity"},
		{"backoff", func(c *Config) { c.Supervisor.BackoffMax = time.Millisecond }, "backoff_max"},
		{"cortex", func(c *Config) { c.Engine.Cortex.DownThreshold = 40 }, "engine.cortex"},
		{"initial target", func(c *Config) { c.Engine.InitialTarget = 9 }, "initial_target"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			cfg.Paths.Home = "/home/tester"
			test.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, test.want)
			}
		})
	}
}

func TestBinaryPath(t *testing.T) {
	bin := t.TempDir()
	target := filepath.Join(bin, "yai-kernel")
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	cfg.Paths.Bin = bin

	path, err := cfg.BinaryPath("yai-kernel")
	if err != nil || path != target {
		t.Errorf("BinaryPath = %q, %v; want %q", path, err, target)
	}
	if _, err := cfg.BinaryPath("yai-does-not-exist"); err == nil {
		t.Error("BinaryPath found a missing binary")
	}
}
