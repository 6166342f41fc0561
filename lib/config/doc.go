// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the YAML configuration shared by the yai
// binaries.
//
// A file is selected by the --config flag or the YAI_CONFIG
// environment variable; with neither, [Resolve] returns [Default].
// There is no search path. Every file is checked against an embedded
// CUE schema before it is decoded, so an unknown key or an
// out-of-range value fails loading instead of being ignored.
//
// The file may contain environment sections (development, staging,
// production) that override base values when [Config].Environment
// matches. Path fields expand ${HOME}, ${YAI_HOME}, and
// ${VAR:-default}.
//
// Engine cortex tuning can additionally be overridden with the
// YAI_ENGINE_CORTEX_* variables; yai-engine applies those through
// cortex.FromEnv after loading.
package config
