// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the yai CLI command tree.
package commands

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/yai-labs/yai/cmd/yai/cli"
	"github.com/yai-labs/yai/lib/process"
	"github.com/yai-labs/yai/lib/version"
)

// Root builds and returns the complete yai CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "yai",
		Description: `yai: operator CLI for the YAI runtime.

Talks to the root, kernel, and engine planes over their control
sockets, and inspects the on-host state they leave behind: vault
segments, event journals, and the boot supervisor's state file.`,
		Subcommands: []*cli.Command{
			pingCommand(),
			statusCommand(),
			handshakeCommand(),
			kernelCommand(),
			engineCommand(),
			vaultCommand(),
			eventsCommand(),
			linesCommand(),
			bootCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					if len(args) != 0 {
						return process.Usagef("version takes no arguments")
					}
					version.Print("yai")
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Check that the root plane answers",
				Command:     "yai ping",
			},
			{
				Description: "Show the kernel's view of a workspace",
				Command:     "yai status --target kernel --ws alpha",
			},
			{
				Description: "Start a workspace running",
				Command:     "yai kernel transition RUNNING --ws alpha",
			},
			{
				Description: "Store a node through the root plane",
				Command:     `yai engine storage put '{"id":"n1","kind":"note","meta":{}}' --role operator --arm`,
			},
			{
				Description: "Inspect a workspace's vault segment",
				Command:     "yai vault show --ws alpha",
			},
		},
	}
}

// connectionFlags returns a Flags func registering the connection
// flags plus whatever extra adds.
func connectionFlags(name string, connection *cli.Connection, target string, extra func(*pflag.FlagSet)) func() *pflag.FlagSet {
	return func() *pflag.FlagSet {
		flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
		connection.AddFlags(flags, target)
		if extra != nil {
			extra(flags)
		}
		return flags
	}
}

// commandContext is cancelled on SIGINT or SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	return process.SignalContext(context.Background())
}
