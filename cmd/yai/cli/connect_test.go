// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/control"
	"github.com/yai-labs/yai/lib/process"
	"github.com/yai-labs/yai/lib/rpc"
	"github.com/yai-labs/yai/lib/runpath"
	"github.com/yai-labs/yai/lib/testutil"
	"github.com/yai-labs/yai/lib/wire"
)

func parseConnection(t *testing.T, target string, args ...string) *Connection {
	t.Helper()
	var connection Connection
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	connection.AddFlags(flags, target)
	if err := flags.Parse(args); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return &connection
}

func TestSocketPath(t *testing.T) {
	t.Setenv(WorkspaceEnvVar, "")
	layout := runpath.Layout{Home: "/home/op"}
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--home", "/home/op"}, layout.PlaneSocket(runpath.PlaneRoot)},
		{[]string{"--home", "/home/op", "--target", "kernel"}, layout.PlaneSocket(runpath.PlaneKernel)},
		{[]string{"--home", "/home/op", "--target", "engine"}, layout.PlaneSocket(runpath.PlaneEngine)},
		{[]string{"--home", "/home/op", "--target", "workspace", "--ws", "alpha"}, layout.WorkspaceSocket("alpha")},
		{[]string{"--socket", "/tmp/custom.sock", "--target", "kernel"}, "/tmp/custom.sock"},
	}
	for _, test := range tests {
		got, err := parseConnection(t, TargetRoot, test.args...).SocketPath()
		if err != nil {
			t.Fatalf("SocketPath(%v): %v", test.args, err)
		}
		if got != test.want {
			t.Errorf("SocketPath(%v) = %q, want %q", test.args, got, test.want)
		}
	}

	_, err := parseConnection(t, "mars", "--home", "/home/op").SocketPath()
	if process.ExitCode(err) != process.ExitUsage {
		t.Errorf("unknown target error = %v, want usage error", err)
	}
}

func TestOptions(t *testing.T) {
	t.Setenv(WorkspaceEnvVar, "from-env")
	options, err := parseConnection(t, TargetRoot, "--role", "operator", "--arm").Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if options.WorkspaceID != "from-env" || options.Role != wire.RoleOperator || !options.Armed {
		t.Errorf("options = %+v", options)
	}

	for _, args := range [][]string{{"--ws", "../etc"}, {"--role", "admin"}} {
		if _, err := parseConnection(t, TargetRoot, args...).Options(); process.ExitCode(err) != process.ExitUsage {
			t.Errorf("Options(%v) error = %v, want usage error", args, err)
		}
	}
}

func TestCallThroughServer(t *testing.T) {
	path := filepath.Join(testutil.SocketDir(t), "kernel.sock")
	listener, err := control.Listen(path, control.Options{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	server := rpc.NewServer(rpc.Options{Plane: rpc.PlaneKernel})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.Serve(ctx, listener)
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, done, 5*time.Second, "server shutdown")
		listener.Close()
	})

	connection := parseConnection(t, TargetKernel, "--socket", path, "--ws", "ws1")
	reply, err := connection.Call(context.Background(), command.Status, nil)
	if err != nil {
		t.Fatalf("Call(STATUS): %v", err)
	}
	var status rpc.StatusResponse
	if err := json.Unmarshal(reply, &status); err != nil {
		t.Fatal(err)
	}
	if status.Status != "ok" || status.Plane != rpc.PlaneKernel {
		t.Errorf("status = %+v, want ok from the kernel plane", status)
	}
}
