// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/yai-labs/yai/cmd/yai/cli"
	"github.com/yai-labs/yai/lib/process"
	"github.com/yai-labs/yai/lib/runpath"
	"github.com/yai-labs/yai/lib/supervisor"
)

func bootCommand() *cli.Command {
	return &cli.Command{
		Name:        "boot",
		Summary:     "Inspect the boot supervisor",
		Subcommands: []*cli.Command{bootStatusCommand()},
	}
}

func bootStatusCommand() *cli.Command {
	var (
		home   string
		asJSON bool
	)
	return &cli.Command{
		Name:    "status",
		Summary: "Show the planes yai-boot supervises",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("status", pflag.ContinueOnError)
			flags.StringVar(&home, "home", "", "home directory holding ~/.yai (default $HOME)")
			flags.BoolVar(&asJSON, "json", false, "print the state as JSON")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return process.Usagef("status takes no arguments")
			}
			layout := runpath.Layout{Home: home}
			if home == "" {
				var err error
				if layout, err = runpath.FromEnv(); err != nil {
					return err
				}
			}
			state, err := supervisor.ReadState(layout.SupervisorState())
			if errors.Is(err, os.ErrNotExist) {
				return errors.New("yai-boot is not running (no supervisor state)")
			}
			if err != nil {
				return err
			}
			if asJSON {
				return cli.WriteJSON(state)
			}
			return writeBootState(state)
		},
	}
}

func writeBootState(state supervisor.State) error {
	fmt.Fprintf(cli.Stdout, "yai-boot pid %d, booted %s\n\n", state.BootPID, state.BootedAt.Format(time.RFC3339))
	tw := tabwriter.NewWriter(cli.Stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLANE\tPID\tSTARTS\tRESTARTS\tSTATE\tLAST EXIT")
	for _, plane := range state.Planes {
		status := "running"
		switch {
		case plane.GaveUp:
			status = "gave up"
		case plane.PID == 0:
			status = "stopped"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\n",
			plane.Name, plane.PID, plane.Starts, plane.Restarts, status, plane.LastExit)
	}
	return tw.Flush()
}
