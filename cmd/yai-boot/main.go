// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// yai-boot brings up a yai host. It runs the preboot checks, replaces
// the system vault, and then supervises the configured planes
// (yai-root and yai-kernel by default) until it is signalled.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/yai-labs/yai/lib/config"
	"github.com/yai-labs/yai/lib/process"
	"github.com/yai-labs/yai/lib/runpath"
	"github.com/yai-labs/yai/lib/service"
	"github.com/yai-labs/yai/lib/supervisor"
	"github.com/yai-labs/yai/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	flags := pflag.NewFlagSet("yai-boot", pflag.ContinueOnError)
	var common service.CommonFlags
	service.RegisterCommonFlags(flags, &common)
	var checkOnly bool
	flags.BoolVar(&checkOnly, "check", false, "run the preboot checks and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return &process.UsageError{Err: err}
	}
	if common.ShowVersion {
		version.Print("yai-boot")
		return nil
	}

	ctx, stop := process.SignalContext(context.Background())
	defer stop()

	boot, cleanup, err := service.Bootstrap(ctx, service.BootstrapConfig{
		Flags: common,
		Plane: runpath.PlaneBoot,
	})
	if err != nil {
		return err
	}
	defer cleanup()
	cfg := boot.Config

	if err := supervisor.Preboot(boot.Layout, cfg.Paths.ShmDir); err != nil {
		return err
	}
	boot.Logger.Info("preboot checks passed")
	if checkOnly {
		return nil
	}

	systemVault, err := supervisor.InitSystemVault(cfg.Paths.ShmDir, cfg.Vault.EnergyQuota)
	if err != nil {
		return err
	}
	defer systemVault.Close()
	boot.Logger.Info("system vault ready", "path", systemVault.Path())

	planes, err := resolvePlanes(cfg, common.ConfigPath)
	if err != nil {
		return err
	}
	policy, err := supervisor.ParsePolicy(cfg.Supervisor.Restart)
	if err != nil {
		return err
	}

	supervised := supervisor.New(supervisor.Options{
		Planes:  planes,
		Policy:  policy,
		Backoff: supervisor.Backoff{Initial: cfg.Supervisor.BackoffInitial, Max: cfg.Supervisor.BackoffMax},

		MaxRestarts: cfg.Supervisor.MaxRestarts,
		Window:      cfg.Supervisor.Window,
		StatePath:   boot.Layout.SupervisorState(),
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Sink:        boot.Sink,
		Clock:       boot.Clock,
		Logger:      boot.Logger,
	})

	started := boot.Clock.Now()
	err = supervised.Run(ctx)
	boot.Logger.Info("boot supervisor stopped", "uptime", boot.Clock.Now().Sub(started).Round(time.Second))
	if errors.Is(err, supervisor.ErrGaveUp) {
		return fmt.Errorf("no plane left running: %w", err)
	}
	return err
}

// resolvePlanes maps configured plane names to binaries. Children get
// --master and the same config file as this process.
func resolvePlanes(cfg *config.Config, configPath string) ([]supervisor.Plane, error) {
	var planes []supervisor.Plane
	for _, name := range cfg.Supervisor.Planes {
		binary, err := cfg.BinaryPath("yai-" + name)
		if err != nil {
			return nil, err
		}
		args := []string{"--master"}
		if configPath != "" {
			args = append(args, "--config", configPath)
		}
		planes = append(planes, supervisor.Plane{Name: name, Binary: binary, Args: args})
	}
	if len(planes) == 0 {
		return nil, errors.New("supervisor.planes is empty")
	}
	return planes, nil
}
