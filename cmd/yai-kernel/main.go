// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// yai-kernel is the workspace kernel. It owns the session registry
// and the Vault segments of every workspace it serves, drives their
// state machines, and forwards storage and provider commands to the
// engine after charging the workspace's energy budget.
//
// With --ws the kernel binds the workspace's own control socket;
// otherwise it binds the kernel plane socket and serves any workspace.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/process"
	"github.com/yai-labs/yai/lib/rpc"
	"github.com/yai-labs/yai/lib/runpath"
	"github.com/yai-labs/yai/lib/service"
	"github.com/yai-labs/yai/lib/session"
	"github.com/yai-labs/yai/lib/vault"
	"github.com/yai-labs/yai/lib/version"
	"github.com/yai-labs/yai/lib/wire"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	flags := pflag.NewFlagSet("yai-kernel", pflag.ContinueOnError)
	var common service.CommonFlags
	service.RegisterCommonFlags(flags, &common)
	var workspaceID string
	flags.StringVar(&workspaceID, "ws", "", "serve one workspace on its own control socket")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return &process.UsageError{Err: err}
	}
	if common.ShowVersion {
		version.Print("yai-kernel")
		return nil
	}
	if workspaceID != "" && !wire.ValidWorkspaceID(workspaceID) {
		return process.Usagef("invalid workspace id %q", workspaceID)
	}

	ctx, stop := process.SignalContext(context.Background())
	defer stop()

	boot, cleanup, err := service.Bootstrap(ctx, service.BootstrapConfig{
		Flags: common,
		Plane: runpath.PlaneKernel,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	registry, err := session.NewRegistry(session.Options{
		Capacity: boot.Config.Sessions.Capacity,
		Layout:   boot.Layout,
		Logger:   boot.Logger,
	})
	if err != nil {
		return err
	}
	defer registry.Close()

	vaults := vault.NewDirectory(boot.Config.Paths.ShmDir, boot.Config.Vault.EnergyQuota)
	defer vaults.Close()

	server, err := boot.NewServer(service.ServerOptions{
		Plane:    rpc.PlaneKernel,
		Registry: registry,
		Vaults:   vaults,
	})
	if err != nil {
		return err
	}
	engineSocket := boot.Layout.PlaneSocket(runpath.PlaneEngine)
	server.Route(rpc.ForwardGate{
		Path:    engineSocket,
		Timeout: boot.Config.Control.ReadTimeout,
		Name:    "yai-kernel",
	},
		command.StoragePut, command.StorageGet, command.StorageRPC,
		command.Inference, command.ProviderRPC, command.EmbeddingRPC,
	)

	socket := boot.Layout.PlaneSocket(runpath.PlaneKernel)
	if workspaceID != "" {
		socket = boot.Layout.WorkspaceSocket(workspaceID)
		record, err := vaults.Record(workspaceID)
		if err != nil {
			return fmt.Errorf("mapping vault for %s: %w", workspaceID, err)
		}
		if err := boot.Kernel.Boot(record); err != nil {
			return fmt.Errorf("booting workspace %s: %w", workspaceID, err)
		}
	}

	boot.Logger.Info("kernel plane running",
		"socket", socket,
		"ws_id", workspaceID,
		"capacity", boot.Config.Sessions.Capacity,
		"forward_to", engineSocket,
	)
	err = boot.Serve(ctx, server, socket)
	boot.Logger.Info("kernel plane stopped", "sessions", registry.Len())
	return err
}
