// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/yai-labs/yai/cmd/yai/cli"
	"github.com/yai-labs/yai/lib/events"
	"github.com/yai-labs/yai/lib/process"
	"github.com/yai-labs/yai/lib/runpath"
	"github.com/yai-labs/yai/lib/wire"
)

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:        "events",
		Summary:     "Read workspace event journals",
		Subcommands: []*cli.Command{eventsDumpCommand()},
	}
}

func eventsDumpCommand() *cli.Command {
	var (
		home        string
		workspaceID string
		tail        int
		asJSON      bool
	)
	return &cli.Command{
		Name:    "dump",
		Summary: "Print the events recorded for a workspace",
		Description: `Print the events recorded for a workspace, oldest first, across all
journal segments. Plane-level events are journalled under the plane
name (root, kernel, engine) instead of a workspace id.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("dump", pflag.ContinueOnError)
			defaultWorkspace := os.Getenv(cli.WorkspaceEnvVar)
			if defaultWorkspace == "" {
				defaultWorkspace = cli.DefaultWorkspace
			}
			flags.StringVar(&home, "home", "", "home directory holding ~/.yai (default $HOME)")
			flags.StringVar(&workspaceID, "ws", defaultWorkspace, "workspace id or plane name")
			flags.IntVar(&tail, "tail", 0, "print only the last N events")
			flags.BoolVar(&asJSON, "json", false, "print one JSON object per line")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return process.Usagef("dump takes no arguments")
			}
			if !wire.ValidWorkspaceID(workspaceID) {
				return process.Usagef("invalid workspace id %q", workspaceID)
			}
			if tail < 0 {
				return process.Usagef("--tail must not be negative")
			}
			layout := runpath.Layout{Home: home}
			if home == "" {
				var err error
				if layout, err = runpath.FromEnv(); err != nil {
					return err
				}
			}

			recorded, err := events.ReadJournal(layout.Journal(workspaceID))
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("no journal for %q", workspaceID)
			}
			if err != nil {
				return err
			}
			if tail > 0 && len(recorded) > tail {
				recorded = recorded[len(recorded)-tail:]
			}
			return writeEvents(recorded, asJSON)
		},
	}
}

func writeEvents(recorded []events.Event, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(cli.Stdout)
		for _, event := range recorded {
			if err := encoder.Encode(event); err != nil {
				return err
			}
		}
		return nil
	}
	tw := tabwriter.NewWriter(cli.Stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tLEVEL\tTYPE\tTRACE\tMESSAGE")
	for _, event := range recorded {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			event.Timestamp.Format(time.RFC3339Nano), event.Level, event.Type, event.TraceID, event.Message)
	}
	return tw.Flush()
}
