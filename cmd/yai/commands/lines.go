// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/yai-labs/yai/cmd/yai/cli"
	"github.com/yai-labs/yai/lib/linesproto"
	"github.com/yai-labs/yai/lib/process"
)

func linesCommand() *cli.Command {
	return &cli.Command{
		Name:        "lines",
		Summary:     "Work with newline-delimited JSON envelopes",
		Subcommands: []*cli.Command{linesValidateCommand()},
	}
}

func linesValidateCommand() *cli.Command {
	var workspaceID string
	return &cli.Command{
		Name:    "validate",
		Summary: "Validate an envelope stream",
		Description: `Validate newline-delimited JSON request envelopes from a file or
stdin. Every line is reported; the command fails if any line is
rejected.`,
		Usage: "yai lines validate [file] [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("validate", pflag.ContinueOnError)
			flags.StringVar(&workspaceID, "ws", "", "require every line to carry this ws_id")
			return flags
		},
		Examples: []cli.Example{
			{
				Description: "Check a recorded session against workspace alpha",
				Command:     "yai lines validate session.jsonl --ws alpha",
			},
		},
		Run: func(args []string) error {
			var input io.Reader
			switch len(args) {
			case 0:
				input = cli.Stdin
			case 1:
				if args[0] == "-" {
					input = cli.Stdin
					break
				}
				file, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer file.Close()
				input = file
			default:
				return process.Usagef("usage: yai lines validate [file]")
			}

			results, err := linesproto.ValidateStream(input, workspaceID)
			rejected := 0
			for _, result := range results {
				if result.Err != nil {
					rejected++
					fmt.Fprintf(cli.Stdout, "line %d: %v\n", result.Line, result.Err)
					continue
				}
				fmt.Fprintf(cli.Stdout, "line %d: ok %s ws=%s\n", result.Line, result.Envelope.Type, result.Envelope.WorkspaceID)
			}
			if err != nil {
				return err
			}
			if rejected > 0 {
				return fmt.Errorf("%d of %d lines rejected", rejected, len(results))
			}
			return nil
		},
	}
}
