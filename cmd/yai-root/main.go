// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// yai-root is the root control plane. It answers PING, HANDSHAKE, and
// STATUS itself and forwards storage and provider commands to the
// kernel plane, which owns workspace state.
package main

import (
	"context"
	"os"

	"github.com/spf13/pflag"

	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/process"
	"github.com/yai-labs/yai/lib/rpc"
	"github.com/yai-labs/yai/lib/runpath"
	"github.com/yai-labs/yai/lib/service"
	"github.com/yai-labs/yai/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	flags := pflag.NewFlagSet("yai-root", pflag.ContinueOnError)
	var common service.CommonFlags
	service.RegisterCommonFlags(flags, &common)
	if err := flags.Parse(os.Args[1:]); err != nil {
		return &process.UsageError{Err: err}
	}
	if common.ShowVersion {
		version.Print("yai-root")
		return nil
	}

	ctx, stop := process.SignalContext(context.Background())
	defer stop()

	boot, cleanup, err := service.Bootstrap(ctx, service.BootstrapConfig{
		Flags: common,
		Plane: runpath.PlaneRoot,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	server, err := boot.NewServer(service.ServerOptions{Plane: rpc.PlaneRoot})
	if err != nil {
		return err
	}
	kernelSocket := boot.Layout.PlaneSocket(runpath.PlaneKernel)
	server.Route(rpc.ForwardGate{
		Path:    kernelSocket,
		Timeout: boot.Config.Control.ReadTimeout,
		Name:    "yai-root",
	}, gateCommands...)

	boot.Logger.Info("root plane running", "forward_to", kernelSocket)
	err = boot.Serve(ctx, server, boot.Layout.PlaneSocket(runpath.PlaneRoot))
	boot.Logger.Info("root plane stopped")
	return err
}

var gateCommands = []command.ID{
	command.StoragePut,
	command.StorageGet,
	command.StorageRPC,
	command.Inference,
	command.ProviderRPC,
	command.EmbeddingRPC,
}
