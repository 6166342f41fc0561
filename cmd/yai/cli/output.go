// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// WriteJSON writes value to Stdout as indented JSON.
func WriteJSON(value any) error {
	encoder := json.NewEncoder(Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

// WriteResponse writes a JSON response payload to Stdout, indented.
// A payload that is not JSON is written as is.
func WriteResponse(payload []byte) error {
	var indented bytes.Buffer
	if err := json.Indent(&indented, payload, "", "  "); err != nil {
		_, err := fmt.Fprintf(Stdout, "%s\n", payload)
		return err
	}
	indented.WriteByte('\n')
	_, err := Stdout.Write(indented.Bytes())
	return err
}

// NewCommandLogger returns the logger for CLI diagnostics: text on a
// terminal, JSON otherwise.
func NewCommandLogger(level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	if file, ok := Stderr.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return slog.New(slog.NewTextHandler(Stderr, options))
	}
	return slog.New(slog.NewJSONHandler(Stderr, options))
}
