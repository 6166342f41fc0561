// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/yai-labs/yai/lib/vault"
	"github.com/yai-labs/yai/lib/wire"
)

// Set via -ldflags.
var (
	Version   = "0.1.0-dev"
	GitCommit = ""
	GitDirty  = ""
	BuildTime = ""
)

// Commit returns the build commit, "unknown" when neither ldflags nor
// the toolchain's VCS stamp provide one.
func Commit() string {
	commit, _, _ := vcs()
	if commit == "" {
		return "unknown"
	}
	return commit
}

// vcs merges ldflags values with debug.BuildInfo settings. Ldflags win.
func vcs() (commit string, dirty bool, built string) {
	commit, dirty, built = GitCommit, GitDirty == "true", BuildTime
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return commit, dirty, built
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if commit == "" {
				commit = setting.Value
				if len(commit) > 12 {
					commit = commit[:12]
				}
			}
		case "vcs.modified":
			if GitDirty == "" {
				dirty = setting.Value == "true"
			}
		case "vcs.time":
			if built == "" {
				built = setting.Value
			}
		}
	}
	return commit, dirty, built
}

// Info is the one-line --version output of a binary.
func Info(binary string) string {
	commit, dirty, built := vcs()
	if commit == "" {
		commit = "unknown"
	}
	if dirty {
		commit += "-dirty"
	}
	if built == "" {
		return fmt.Sprintf("%s %s (%s)", binary, Version, commit)
	}
	return fmt.Sprintf("%s %s (%s, %s)", binary, Version, commit, built)
}

// Full adds toolchain, platform, and binary layout lines to Info.
func Full(binary string) string {
	var b strings.Builder
	b.WriteString(Info(binary))
	fmt.Fprintf(&b, "\n  go:       %s", runtime.Version())
	fmt.Fprintf(&b, "\n  platform: %s/%s", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&b, "\n  protocol: v%d (envelope %d bytes, payload <= %d)", wire.Version, wire.EnvelopeSize, wire.MaxPayload)
	fmt.Fprintf(&b, "\n  vault:    %d bytes", vault.Size)
	return b.String()
}

// Print writes Full to stdout. Binaries call it for --version.
func Print(binary string) {
	fmt.Fprintln(os.Stdout, Full(binary))
}
