// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// yai-engine executes gate commands. It serves the storage and
// provider gates on the engine control socket and, with --ws, attaches
// to that workspace's Vault to process its mailbox and scale by
// queue depth.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/cortex"
	"github.com/yai-labs/yai/lib/engine"
	"github.com/yai-labs/yai/lib/gate/provider"
	"github.com/yai-labs/yai/lib/gate/storage"
	"github.com/yai-labs/yai/lib/process"
	"github.com/yai-labs/yai/lib/rpc"
	"github.com/yai-labs/yai/lib/runpath"
	"github.com/yai-labs/yai/lib/service"
	"github.com/yai-labs/yai/lib/version"
	"github.com/yai-labs/yai/lib/wire"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	flags := pflag.NewFlagSet("yai-engine", pflag.ContinueOnError)
	var common service.CommonFlags
	service.RegisterCommonFlags(flags, &common)
	var workspaceID string
	flags.StringVar(&workspaceID, "ws", "", "attach to this workspace's vault and process its mailbox")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return &process.UsageError{Err: err}
	}
	if common.ShowVersion {
		version.Print("yai-engine")
		return nil
	}
	if workspaceID != "" && !wire.ValidWorkspaceID(workspaceID) {
		return process.Usagef("invalid workspace id %q", workspaceID)
	}

	signalCtx, stop := process.SignalContext(context.Background())
	defer stop()

	boot, cleanup, err := service.Bootstrap(signalCtx, service.BootstrapConfig{
		Flags: common,
		Plane: runpath.PlaneEngine,
	})
	if err != nil {
		return err
	}
	defer cleanup()
	cfg := boot.Config

	storageGate := storage.New(storage.Options{
		Layout:   boot.Layout,
		MaxOpen:  cfg.Storage.MaxOpen,
		PoolSize: cfg.Storage.PoolSize,
		Logger:   boot.Logger,
	})
	defer storageGate.Close()
	providerGate := provider.New(cfg.Provider, provider.Options{Logger: boot.Logger})

	var bridge *engine.Bridge
	if workspaceID != "" {
		cortexConfig, initialTarget, err := cortex.FromEnv(cfg.Engine.Cortex, cfg.Engine.InitialTarget, os.LookupEnv)
		if err != nil {
			return err
		}
		bridge, err = engine.Attach(engine.Options{
			Dir:           cfg.Paths.ShmDir,
			WorkspaceID:   workspaceID,
			Channels:      cfg.Vault.Channels,
			Create:        true,
			Quota:         cfg.Vault.EnergyQuota,
			PollInterval:  cfg.Engine.PollInterval,
			Cortex:        cortexConfig,
			InitialTarget: initialTarget,
			Kernel:        boot.Kernel,
			Sink:          boot.Sink,
			Clock:         boot.Clock,
			Logger:        boot.Logger,
		})
		if err != nil {
			return fmt.Errorf("attaching engine to %s: %w", workspaceID, err)
		}
		defer bridge.Close()
	}

	server, err := boot.NewServer(service.ServerOptions{Plane: rpc.PlaneEngine})
	if err != nil {
		return err
	}
	var storageRoute, providerRoute rpc.Gate = storageGate, providerGate
	if bridge != nil {
		// The attached workspace pays for its effectful commands here.
		storageRoute = bridge.Meter(storageGate)
		providerRoute = bridge.Meter(providerGate)
	}
	server.Route(storageRoute, command.StoragePut, command.StorageGet, command.StorageRPC)
	server.Route(providerRoute, command.Inference, command.ProviderRPC, command.EmbeddingRPC)

	// A halted workspace ends the bridge, which stops the server too.
	ctx, cancel := context.WithCancel(signalCtx)
	defer cancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- boot.Serve(ctx, server, boot.Layout.PlaneSocket(runpath.PlaneEngine))
	}()

	bridgeDone := make(chan struct{})
	if bridge == nil {
		close(bridgeDone)
	} else {
		go func() {
			defer close(bridgeDone)
			defer cancel()
			if err := bridge.Run(ctx); err != nil {
				boot.Logger.Error("engine bridge failed", "ws_id", workspaceID, "error", err)
			}
			if signalCtx.Err() != nil {
				// Interrupted by a signal rather than a workspace halt.
				bridge.EmergencyLock("signal")
			}
		}()
	}

	boot.Logger.Info("engine running",
		"ws_id", workspaceID,
		"provider", providerGate.String(),
		"storage_max_open", cfg.Storage.MaxOpen,
	)
	err = <-serveDone
	cancel()
	<-bridgeDone
	boot.Logger.Info("engine stopped", "open_databases", storageGate.Open())
	return err
}
