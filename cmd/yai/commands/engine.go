// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"

	"github.com/spf13/pflag"

	"github.com/yai-labs/yai/cmd/yai/cli"
	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/gate/storage"
	"github.com/yai-labs/yai/lib/process"
)

func engineCommand() *cli.Command {
	return &cli.Command{
		Name:    "engine",
		Summary: "Send storage and provider gate commands",
		Description: `Send gate commands. By default they go to the root plane, which
forwards them through the kernel to the engine; use --target engine to
talk to the engine socket directly.`,
		Subcommands: []*cli.Command{
			storageCommand(),
			payloadCommand("inference", "Run a completion through the provider gate", command.Inference),
			payloadCommand("embed", "Request embeddings through the provider gate", command.EmbeddingRPC),
		},
	}
}

func storageCommand() *cli.Command {
	return &cli.Command{
		Name:    "storage",
		Summary: "Read and write the workspace knowledge graph",
		Subcommands: []*cli.Command{
			payloadCommand("put", "Store a node ({\"id\",\"kind\",\"meta\"})", command.StoragePut),
			storageGetCommand(),
			storageRPCCommand(),
		},
	}
}

// payloadCommand sends a JSON payload read from its single argument:
// inline JSON, @file, or - for stdin.
func payloadCommand(name, summary string, id command.ID) *cli.Command {
	var connection cli.Connection
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   "yai engine ... " + name + " <json|@file|-> [flags]",
		Flags:   connectionFlags(name, &connection, cli.TargetRoot, nil),
		Run: func(args []string) error {
			if len(args) != 1 {
				return process.Usagef("%s needs exactly one payload argument (JSON, @file, or -)", name)
			}
			payload, err := cli.ReadPayload(args[0])
			if err != nil {
				return &process.UsageError{Err: err}
			}
			return callAndPrint(&connection, nil, id, payload)
		},
	}
}

func storageGetCommand() *cli.Command {
	var connection cli.Connection
	return &cli.Command{
		Name:    "get",
		Summary: "Fetch a node by id",
		Usage:   "yai engine storage get <id> [flags]",
		Flags:   connectionFlags("get", &connection, cli.TargetRoot, nil),
		Run: func(args []string) error {
			if len(args) != 1 || args[0] == "" {
				return process.Usagef("usage: yai engine storage get <id>")
			}
			payload, err := json.Marshal(map[string]string{"id": args[0]})
			if err != nil {
				return err
			}
			return callAndPrint(&connection, nil, command.StorageGet, payload)
		},
	}
}

func storageRPCCommand() *cli.Command {
	var (
		connection cli.Connection
		params     string
	)
	return &cli.Command{
		Name:    "rpc",
		Summary: "Call a storage method (put_node, get_node, put_edge, list_edges)",
		Usage:   "yai engine storage rpc <method> [--params json|@file|-] [flags]",
		Flags: connectionFlags("rpc", &connection, cli.TargetRoot, func(flags *pflag.FlagSet) {
			flags.StringVar(&params, "params", "{}", "method parameters: JSON, @file, or - for stdin")
		}),
		Examples: []cli.Example{
			{
				Description: "Link two nodes",
				Command:     `yai engine storage rpc put_edge --params '{"source":"n1","target":"n2","relation":"cites"}' --role operator --arm`,
			},
			{
				Description: "List edges leaving a node",
				Command:     `yai engine storage rpc list_edges --params '{"source":"n1"}'`,
			},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return process.Usagef("usage: yai engine storage rpc <method>")
			}
			raw, err := cli.ReadPayload(params)
			if err != nil {
				return &process.UsageError{Err: err}
			}
			payload, err := json.Marshal(storage.RPCRequest{Method: args[0], Params: raw})
			if err != nil {
				return err
			}
			return callAndPrint(&connection, nil, command.StorageRPC, payload)
		},
	}
}
