// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/yai-labs/yai/lib/wire"
)

// Stdin is read by ReadPayload for "-". Tests replace it.
var Stdin io.Reader = os.Stdin

// ReadPayload loads a JSON request body. source is "-" for stdin,
// "@path" for a file, or the JSON text itself. Comments and trailing
// commas are accepted; the result is compact JSON no larger than
// wire.MaxPayload.
func ReadPayload(source string) ([]byte, error) {
	var raw []byte
	switch {
	case source == "-":
		data, err := io.ReadAll(io.LimitReader(Stdin, 4*wire.MaxPayload))
		if err != nil {
			return nil, fmt.Errorf("reading payload from stdin: %w", err)
		}
		raw = data
	case strings.HasPrefix(source, "@"):
		data, err := os.ReadFile(source[1:])
		if err != nil {
			return nil, fmt.Errorf("reading payload file: %w", err)
		}
		raw = data
	default:
		raw = []byte(source)
	}

	standard := jsonc.ToJSON(raw)
	if !json.Valid(standard) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, standard); err != nil {
		return nil, fmt.Errorf("compacting payload: %w", err)
	}
	if compact.Len() > wire.MaxPayload {
		return nil, fmt.Errorf("payload of %d bytes exceeds %d", compact.Len(), wire.MaxPayload)
	}
	return compact.Bytes(), nil
}
