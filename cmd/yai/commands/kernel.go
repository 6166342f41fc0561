// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"

	"github.com/yai-labs/yai/cmd/yai/cli"
	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/kernel"
	"github.com/yai-labs/yai/lib/process"
	"github.com/yai-labs/yai/lib/rpc"
)

func kernelCommand() *cli.Command {
	return &cli.Command{
		Name:    "kernel",
		Summary: "Drive the kernel state machine and workspace mailbox",
		Subcommands: []*cli.Command{
			transitionCommand(),
			controlCommand(),
		},
	}
}

func transitionCommand() *cli.Command {
	var connection cli.Connection
	return &cli.Command{
		Name:    "transition",
		Summary: "Request a kernel state change",
		Description: `Request a kernel state change for a workspace. The state names are
HALT, PREBOOT, READY, HANDOFF_COMPLETE, RUNNING, SUSPENDED, and ERROR.
The kernel refuses edges outside its transition graph, and refuses
RUNNING while the workspace authority lock is held.`,
		Usage: "yai kernel transition <state> [flags]",
		Flags: connectionFlags("transition", &connection, cli.TargetKernel, nil),
		Examples: []cli.Example{
			{
				Description: "Suspend a workspace",
				Command:     "yai kernel transition SUSPENDED --ws alpha",
			},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return process.Usagef("usage: yai kernel transition <state>")
			}
			target, err := kernel.ParseState(args[0])
			if err != nil {
				return &process.UsageError{Err: err}
			}
			payload, err := json.Marshal(rpc.TransitionRequest{Target: target.String()})
			if err != nil {
				return err
			}
			return callAndPrint(&connection, nil, command.Transition, payload)
		},
	}
}

func controlCommand() *cli.Command {
	var connection cli.Connection
	return &cli.Command{
		Name:    "control",
		Summary: "Queue a command in the workspace mailbox",
		Description: `Queue a command in the workspace mailbox for the engine attached to
that workspace. The reply carries the mailbox sequence number; the
engine's result appears in the vault record once processed.`,
		Usage: "yai kernel control <command> [flags]",
		Flags: connectionFlags("control", &connection, cli.TargetKernel, nil),
		Examples: []cli.Example{
			{
				Description: "Queue a NOOP",
				Command:     "yai kernel control NOOP --ws alpha",
			},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return process.Usagef("usage: yai kernel control <command>")
			}
			id, err := command.Parse(args[0])
			if err != nil {
				return &process.UsageError{Err: err}
			}
			payload, err := json.Marshal(rpc.ControlRequest{Command: id.String()})
			if err != nil {
				return err
			}
			return callAndPrint(&connection, nil, command.Control, payload)
		},
	}
}
