// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/process"
	"github.com/yai-labs/yai/lib/rpc"
	"github.com/yai-labs/yai/lib/runpath"
	"github.com/yai-labs/yai/lib/wire"
)

// Targets a command can be sent to.
const (
	TargetRoot      = "root"
	TargetKernel    = "kernel"
	TargetEngine    = "engine"
	TargetWorkspace = "workspace"
)

// WorkspaceEnvVar supplies the default --ws.
const WorkspaceEnvVar = "YAI_WS"

// DefaultWorkspace is used when neither --ws nor YAI_WS is set.
const DefaultWorkspace = "default"

// Connection holds the flags that locate a plane and the authority a
// request is sent with.
type Connection struct {
	Target      string
	WorkspaceID string
	Role        string
	Arm         bool
	Home        string
	Socket      string
	Timeout     time.Duration
}

// AddFlags registers the connection flags on flags. target is the
// default --target of the command.
func (c *Connection) AddFlags(flags *pflag.FlagSet, target string) {
	workspace := os.Getenv(WorkspaceEnvVar)
	if workspace == "" {
		workspace = DefaultWorkspace
	}
	flags.StringVar(&c.Target, "target", target, "plane to contact: root, kernel, engine, or workspace")
	flags.StringVar(&c.WorkspaceID, "ws", workspace, "workspace id (default $"+WorkspaceEnvVar+")")
	flags.StringVar(&c.Role, "role", "user", "declared role: none, user, operator, or system")
	flags.BoolVar(&c.Arm, "arm", false, "arm the request for effectful commands")
	flags.StringVar(&c.Home, "home", "", "home directory holding ~/.yai (default $HOME)")
	flags.StringVar(&c.Socket, "socket", "", "control socket path, overriding --target")
	flags.DurationVar(&c.Timeout, "timeout", rpc.DefaultTimeout, "dial and per-frame timeout")
}

// Layout resolves the run tree from --home or the environment.
func (c *Connection) Layout() (runpath.Layout, error) {
	if c.Home != "" {
		return runpath.Layout{Home: c.Home}, nil
	}
	return runpath.FromEnv()
}

// SocketPath resolves the socket to dial.
func (c *Connection) SocketPath() (string, error) {
	if c.Socket != "" {
		return c.Socket, nil
	}
	layout, err := c.Layout()
	if err != nil {
		return "", err
	}
	switch c.Target {
	case TargetRoot, TargetKernel, TargetEngine:
		return layout.PlaneSocket(c.Target), nil
	case TargetWorkspace:
		return layout.WorkspaceSocket(c.WorkspaceID), nil
	}
	return "", process.Usagef("unknown target %q (want root, kernel, engine, or workspace)", c.Target)
}

// Options converts the flags into rpc client options.
func (c *Connection) Options() (rpc.ClientOptions, error) {
	if !wire.ValidWorkspaceID(c.WorkspaceID) {
		return rpc.ClientOptions{}, process.Usagef("invalid workspace id %q", c.WorkspaceID)
	}
	role, err := wire.ParseRole(c.Role)
	if err != nil {
		return rpc.ClientOptions{}, &process.UsageError{Err: err}
	}
	return rpc.ClientOptions{
		WorkspaceID: c.WorkspaceID,
		Role:        role,
		Armed:       c.Arm,
		Name:        "yai-cli",
		Timeout:     c.Timeout,
	}, nil
}

// Dial connects and handshakes.
func (c *Connection) Dial(ctx context.Context) (*rpc.Client, error) {
	path, err := c.SocketPath()
	if err != nil {
		return nil, err
	}
	options, err := c.Options()
	if err != nil {
		return nil, err
	}
	client, err := rpc.Dial(ctx, path, options)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", path, err)
	}
	return client, nil
}

// Call dials, sends one command, and closes.
func (c *Connection) Call(ctx context.Context, id command.ID, payload []byte) ([]byte, error) {
	client, err := c.Dial(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return client.Call(id, payload)
}
