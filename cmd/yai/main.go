// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// yai is the operator CLI for the YAI runtime.
package main

import (
	"os"

	"github.com/yai-labs/yai/cmd/yai/commands"
	"github.com/yai-labs/yai/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	return commands.Root().Execute(os.Args[1:])
}
