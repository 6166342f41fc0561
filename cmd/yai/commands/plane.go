// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"github.com/yai-labs/yai/cmd/yai/cli"
	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/process"
	"github.com/yai-labs/yai/lib/wire"
)

func pingCommand() *cli.Command {
	var connection cli.Connection
	return &cli.Command{
		Name:    "ping",
		Summary: "Check that a plane answers",
		Usage:   "yai ping [flags]",
		Flags:   connectionFlags("ping", &connection, cli.TargetRoot, nil),
		Run: func(args []string) error {
			return callAndPrint(&connection, args, command.Ping, nil)
		},
	}
}

func statusCommand() *cli.Command {
	var connection cli.Connection
	return &cli.Command{
		Name:    "status",
		Summary: "Show a plane's status and its workspace record",
		Description: `Show a plane's status. Planes that hold workspace records (the
kernel plane and workspace sockets) include the kernel state, the
vault snapshot, and the mailbox queue depth.`,
		Flags: connectionFlags("status", &connection, cli.TargetKernel, nil),
		Run: func(args []string) error {
			return callAndPrint(&connection, args, command.Status, nil)
		},
	}
}

// handshakeResult is the printed form of a handshake ack.
type handshakeResult struct {
	Socket              string   `json:"socket"`
	ServerVersion       uint32   `json:"server_version"`
	CapabilitiesGranted []string `json:"capabilities_granted"`
	SessionID           uint32   `json:"session_id"`
	Status              uint8    `json:"status"`
}

var capabilityNames = []struct {
	bit  uint32
	name string
}{
	{wire.CapPing, "ping"},
	{wire.CapHandshake, "handshake"},
	{wire.CapStatus, "status"},
	{wire.CapControl, "control"},
	{wire.CapStorage, "storage"},
	{wire.CapInference, "inference"},
}

func capabilityList(granted uint32) []string {
	names := []string{}
	for _, capability := range capabilityNames {
		if granted&capability.bit != 0 {
			names = append(names, capability.name)
		}
	}
	return names
}

func handshakeCommand() *cli.Command {
	var connection cli.Connection
	return &cli.Command{
		Name:    "handshake",
		Summary: "Perform a protocol handshake and print the ack",
		Flags:   connectionFlags("handshake", &connection, cli.TargetRoot, nil),
		Run: func(args []string) error {
			if len(args) != 0 {
				return process.Usagef("handshake takes no arguments")
			}
			ctx, cancel := commandContext()
			defer cancel()

			client, err := connection.Dial(ctx)
			if err != nil {
				return err
			}
			defer client.Close()
			socket, _ := connection.SocketPath()
			ack := client.Ack()
			return cli.WriteJSON(handshakeResult{
				Socket:              socket,
				ServerVersion:       ack.ServerVersion,
				CapabilitiesGranted: capabilityList(ack.CapabilitiesGranted),
				SessionID:           ack.SessionID,
				Status:              ack.Status,
			})
		},
	}
}

// callAndPrint sends one command and prints the reply.
func callAndPrint(connection *cli.Connection, args []string, id command.ID, payload []byte) error {
	if len(args) != 0 {
		return process.Usagef("%s takes no arguments", id)
	}
	ctx, cancel := commandContext()
	defer cancel()

	reply, err := connection.Call(ctx, id, payload)
	if err != nil {
		return err
	}
	return cli.WriteResponse(reply)
}
