// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/yai-labs/yai/lib/process"
)

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	savedOut, savedErr := Stdout, Stderr
	Stdout, Stderr = &stdout, &stderr
	t.Cleanup(func() { Stdout, Stderr = savedOut, savedErr })
	return &stdout, &stderr
}

func TestExecuteDispatchesNestedSubcommands(t *testing.T) {
	var called string
	var received []string
	root := &Command{
		Name: "yai",
		Subcommands: []*Command{
			{Name: "ping", Run: func([]string) error { called = "ping"; return nil }},
			{
				Name: "engine",
				Subcommands: []*Command{{
					Name: "storage",
					Subcommands: []*Command{{
						Name: "get",
						Run: func(args []string) error {
							called = "engine storage get"
							received = args
							return nil
						},
					}},
				}},
			},
		},
	}

	if err := root.Execute([]string{"engine", "storage", "get", "n1"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called != "engine storage get" {
		t.Errorf("dispatched to %q, want %q", called, "engine storage get")
	}
	if len(received) != 1 || received[0] != "n1" {
		t.Errorf("args = %v, want [n1]", received)
	}
}

func TestExecuteParsesFlags(t *testing.T) {
	var workspace string
	var positional []string
	command := &Command{
		Name: "status",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("status", pflag.ContinueOnError)
			flags.StringVar(&workspace, "ws", "default", "workspace id")
			return flags
		},
		Run: func(args []string) error {
			positional = args
			return nil
		},
	}
	if err := command.Execute([]string{"--ws", "alpha", "extra"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if workspace != "alpha" {
		t.Errorf("ws = %q, want %q", workspace, "alpha")
	}
	if len(positional) != 1 || positional[0] != "extra" {
		t.Errorf("args = %v, want [extra]", positional)
	}
}

func TestExecuteSuggestsUnknownCommand(t *testing.T) {
	captureOutput(t)
	root := &Command{
		Name:        "yai",
		Subcommands: []*Command{{Name: "status", Run: func([]string) error { return nil }}},
	}
	err := root.Execute([]string{"stauts"})
	if err == nil {
		t.Fatal("Execute(stauts) succeeded")
	}
	if !strings.Contains(err.Error(), `did you mean "status"`) {
		t.Errorf("error = %q, want a suggestion for status", err)
	}
	if process.ExitCode(err) != process.ExitUsage {
		t.Errorf("ExitCode = %d, want %d", process.ExitCode(err), process.ExitUsage)
	}
}

func TestExecuteSuggestsUnknownFlag(t *testing.T) {
	command := &Command{
		Name: "ping",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("ping", pflag.ContinueOnError)
			flags.String("target", "root", "plane")
			flags.Duration("timeout", 0, "timeout")
			return flags
		},
		Run: func([]string) error { return nil },
	}
	err := command.Execute([]string{"--taget", "kernel"})
	var usage *process.UsageError
	if !errors.As(err, &usage) {
		t.Fatalf("Execute error = %v, want UsageError", err)
	}
	if !strings.Contains(err.Error(), "did you mean --target?") {
		t.Errorf("error = %q, want suggestion --target", err)
	}
}

func TestExecuteRequiresSubcommand(t *testing.T) {
	_, stderr := captureOutput(t)
	root := &Command{
		Name:        "yai",
		Subcommands: []*Command{{Name: "vault", Summary: "inspect vault segments"}},
	}
	err := root.Execute(nil)
	if process.ExitCode(err) != process.ExitUsage {
		t.Fatalf("Execute(nil) = %v, want usage error", err)
	}
	if !strings.Contains(stderr.String(), "inspect vault segments") {
		t.Errorf("help output missing subcommand summary:\n%s", stderr)
	}
}

func TestHelpListsFlagsAndExamples(t *testing.T) {
	stdout, _ := captureOutput(t)
	command := &Command{
		Name:    "transition",
		Summary: "request a kernel state change",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("transition", pflag.ContinueOnError)
			flags.Bool("arm", false, "arm the request")
			return flags
		},
		Examples: []Example{{Description: "Start running", Command: "yai kernel transition RUNNING"}},
		Run:      func([]string) error { return nil },
	}
	if err := command.Execute([]string{"--help"}); err != nil {
		t.Fatalf("Execute(--help): %v", err)
	}
	for _, want := range []string{"request a kernel state change", "--arm", "# Start running", "yai kernel transition RUNNING"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("help missing %q:\n%s", want, stdout)
		}
	}
}
