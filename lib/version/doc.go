// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build identity of the yai binaries.
//
// The release version and commit are injected with -ldflags:
//
//	go build -ldflags "-X github.com/yai-labs/yai/lib/version.Version=0.4.0 \
//	    -X github.com/yai-labs/yai/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Builds without ldflags fall back to the VCS stamp the Go toolchain
// embeds. [Full] also prints the wire protocol generation and the
// shared record sizes, which must agree between every plane and the CLI.
package version
