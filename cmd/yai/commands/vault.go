// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/pflag"

	"github.com/yai-labs/yai/cmd/yai/cli"
	"github.com/yai-labs/yai/lib/kernel"
	"github.com/yai-labs/yai/lib/process"
	"github.com/yai-labs/yai/lib/vault"
	"github.com/yai-labs/yai/lib/wire"
)

// segmentFlags locate one vault segment.
type segmentFlags struct {
	WorkspaceID string
	Channel     string
	Dir         string
}

func (s *segmentFlags) add(flags *pflag.FlagSet) {
	workspace := os.Getenv(cli.WorkspaceEnvVar)
	if workspace == "" {
		workspace = cli.DefaultWorkspace
	}
	flags.StringVar(&s.WorkspaceID, "ws", workspace, "workspace id (default $"+cli.WorkspaceEnvVar+")")
	flags.StringVar(&s.Channel, "channel", "", "auxiliary channel (stream, brain, audit, cache, control); empty for the core vault")
	flags.StringVar(&s.Dir, "shm-dir", vault.DefaultDir, "shared memory directory")
}

func (s *segmentFlags) validate() error {
	if !wire.ValidWorkspaceID(s.WorkspaceID) {
		return process.Usagef("invalid workspace id %q", s.WorkspaceID)
	}
	if s.Channel != "" && !slices.Contains(vault.Channels, s.Channel) {
		return process.Usagef("unknown channel %q", s.Channel)
	}
	return nil
}

func vaultCommand() *cli.Command {
	return &cli.Command{
		Name:    "vault",
		Summary: "Create, inspect, and remove vault segments",
		Description: `Operate on vault segments directly in shared memory. These commands
do not go through a plane; they need access to the shm directory.`,
		Subcommands: []*cli.Command{
			vaultCreateCommand(),
			vaultShowCommand(),
			vaultUnlinkCommand(),
		},
	}
}

// vaultView is the printed form of a vault record.
type vaultView struct {
	Segment    string `json:"segment"`
	State      string `json:"state"`
	QueueDepth uint32 `json:"queue_depth"`
	vault.Snapshot
}

func viewOf(segment *vault.Segment) vaultView {
	record := segment.Record()
	snapshot := record.Snapshot()
	return vaultView{
		Segment:    segment.Path(),
		State:      kernel.State(snapshot.Status).String(),
		QueueDepth: vault.QueueDepth(record),
		Snapshot:   snapshot,
	}
}

func vaultCreateCommand() *cli.Command {
	var (
		segment segmentFlags
		quota   uint32
	)
	return &cli.Command{
		Name:    "create",
		Summary: "Create a segment (or fill the defaults of an existing one)",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("create", pflag.ContinueOnError)
			segment.add(flags)
			flags.Uint32Var(&quota, "quota", vault.DefaultEnergyQuota, "energy quota for a fresh record")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return process.Usagef("create takes no arguments")
			}
			if err := segment.validate(); err != nil {
				return err
			}
			created, err := vault.Create(segment.Dir, segment.WorkspaceID, segment.Channel, quota)
			if err != nil {
				return err
			}
			defer created.Close()
			return cli.WriteJSON(viewOf(created))
		},
	}
}

func vaultShowCommand() *cli.Command {
	var segment segmentFlags
	return &cli.Command{
		Name:    "show",
		Summary: "Print a segment's record",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("show", pflag.ContinueOnError)
			segment.add(flags)
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return process.Usagef("show takes no arguments")
			}
			if err := segment.validate(); err != nil {
				return err
			}
			opened, err := vault.Open(segment.Dir, segment.WorkspaceID, segment.Channel)
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("no vault segment for workspace %q", segment.WorkspaceID)
			}
			if err != nil {
				return err
			}
			defer opened.Close()
			return cli.WriteJSON(viewOf(opened))
		},
	}
}

func vaultUnlinkCommand() *cli.Command {
	var segment segmentFlags
	return &cli.Command{
		Name:    "unlink",
		Summary: "Remove a segment from shared memory",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("unlink", pflag.ContinueOnError)
			segment.add(flags)
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return process.Usagef("unlink takes no arguments")
			}
			if err := segment.validate(); err != nil {
				return err
			}
			if err := vault.Unlink(segment.Dir, segment.WorkspaceID, segment.Channel); err != nil {
				return err
			}
			fmt.Fprintf(cli.Stdout, "unlinked %s\n", vault.SegmentName(segment.WorkspaceID, segment.Channel))
			return nil
		},
	}
}
