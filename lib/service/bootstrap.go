// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/yai-labs/yai/lib/clock"
	"github.com/yai-labs/yai/lib/config"
	"github.com/yai-labs/yai/lib/control"
	"github.com/yai-labs/yai/lib/events"
	"github.com/yai-labs/yai/lib/kernel"
	"github.com/yai-labs/yai/lib/logging"
	"github.com/yai-labs/yai/lib/rpc"
	"github.com/yai-labs/yai/lib/runpath"
	"github.com/yai-labs/yai/lib/session"
	"github.com/yai-labs/yai/lib/vault"
	"github.com/yai-labs/yai/lib/wire"
)

// CommonFlags holds the flags every plane binary accepts.
type CommonFlags struct {
	ConfigPath  string
	Master      bool
	ShowVersion bool
}

// RegisterCommonFlags binds CommonFlags to flags. Binaries register
// their own flags on the same set before parsing.
func RegisterCommonFlags(flags *pflag.FlagSet, common *CommonFlags) {
	flags.StringVar(&common.ConfigPath, "config", "", "path to yai.yaml (default $"+config.EnvVar+")")
	flags.BoolVar(&common.Master, "master", false, "run as the master instance of this plane")
	flags.BoolVar(&common.ShowVersion, "version", false, "print version information and exit")
}

// BootstrapConfig controls Bootstrap.
type BootstrapConfig struct {
	Flags CommonFlags

	// Plane names the run directory, log file, and journal.
	Plane string

	// Clock is used for events and timers. Nil uses the real clock.
	Clock clock.Clock
}

// BootstrapResult is the state Bootstrap produces.
type BootstrapResult struct {
	Config *config.Config
	Layout runpath.Layout

	Logger *slog.Logger

	// Level adjusts the log level at runtime.
	Level *slog.LevelVar

	Clock clock.Clock

	// Sink logs every event and appends it to the journal of its
	// workspace.
	Sink events.Sink

	// Kernel is the plane's transition authority, sharing Sink.
	Kernel *kernel.Kernel

	Plane string
}

// Bootstrap performs the common startup sequence:
//
//  1. Check the vault and wire layouts compiled into this binary
//  2. Resolve the configuration (--config, then $YAI_CONFIG, then defaults)
//  3. Create the run tree and the plane directory
//  4. Build the plane logger (stderr, log file, journald)
//  5. Build the event sinks and the kernel
//
// The returned cleanup function closes the journals and the log file.
// The caller must defer it.
func Bootstrap(ctx context.Context, bootstrap BootstrapConfig) (*BootstrapResult, func(), error) {
	if bootstrap.Plane == "" {
		return nil, nil, errors.New("service: plane name is required")
	}
	if err := vault.CheckABI(); err != nil {
		return nil, nil, err
	}
	if err := wire.CheckABI(); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Resolve(bootstrap.Flags.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	layout := cfg.Layout()
	if err := cfg.EnsurePaths(); err != nil {
		return nil, nil, err
	}
	if err := runpath.Ensure(layout.PlaneDir(bootstrap.Plane)); err != nil {
		return nil, nil, err
	}

	logger, level, err := logging.ForPlane(cfg, bootstrap.Plane)
	if err != nil {
		return nil, nil, err
	}

	clk := bootstrap.Clock
	if clk == nil {
		clk = clock.Real()
	}

	router := events.NewRouter(layout.Journal, events.JournalOptions{Logger: logger.Logger})
	sink := events.Multi{events.LogSink{Logger: logger.Logger}, router}

	cleanup := func() {
		if err := router.Close(); err != nil {
			logger.Warn("closing event journals", "error", err)
		}
		logger.Close()
	}

	logger.Info("plane starting",
		"environment", string(cfg.Environment),
		"home", cfg.Paths.Home,
		"master", bootstrap.Flags.Master,
	)

	return &BootstrapResult{
		Config: cfg,
		Layout: layout,
		Logger: logger.Logger,
		Level:  level,
		Clock:  clk,
		Sink:   sink,
		Kernel: kernel.New(kernel.Options{Sink: sink, Clock: clk, Logger: logger.Logger}),
		Plane:  bootstrap.Plane,
	}, cleanup, nil
}

// Listen binds a control socket at path with the configured backlog
// and timeouts.
func (b *BootstrapResult) Listen(path string) (*control.Listener, error) {
	return control.Listen(path, control.Options{
		Backlog:      b.Config.Control.Backlog,
		ReadTimeout:  b.Config.Control.ReadTimeout,
		WriteTimeout: b.Config.Control.WriteTimeout,
		Logger:       b.Logger,
	})
}

// ServerOptions are the plane-specific parts of an rpc server.
type ServerOptions struct {
	Plane        rpc.Plane
	Registry     *session.Registry
	Vaults       rpc.VaultSource
	Capabilities uint32
}

// NewServer builds an rpc server with the configured connection mode
// and dispatch profile, sharing the bootstrap kernel, sink, and clock.
func (b *BootstrapResult) NewServer(options ServerOptions) (*rpc.Server, error) {
	mode, err := rpc.ParseMode(b.Config.Control.Mode)
	if err != nil {
		return nil, err
	}
	profile, err := rpc.ParseProfile(b.Config.Control.Profile)
	if err != nil {
		return nil, err
	}
	return rpc.NewServer(rpc.Options{
		Plane:           options.Plane,
		Mode:            mode,
		Profile:         profile,
		Registry:        options.Registry,
		Vaults:          options.Vaults,
		Kernel:          b.Kernel,
		Capabilities:    options.Capabilities,
		PayloadCapacity: b.Config.Control.MaxPayload,
		Sink:            b.Sink,
		Clock:           b.Clock,
		Logger:          b.Logger,
	}), nil
}

// Serve binds path and serves server on it until ctx is cancelled.
func (b *BootstrapResult) Serve(ctx context.Context, server *rpc.Server, path string) error {
	listener, err := b.Listen(path)
	if err != nil {
		return fmt.Errorf("binding %s control socket: %w", b.Plane, err)
	}
	defer listener.Close()
	return server.Serve(ctx, listener)
}
