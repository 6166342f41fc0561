// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds small network helpers shared by the planes.
//
// HTTP body helpers bound every read so a misbehaving upstream cannot
// exhaust memory. Connection helpers classify the errors that occur
// when a peer simply goes away.
package netutil

import (
	"errors"
	"fmt"
	"io"
)

// MaxResponseSize bounds upstream response bodies: 16 MiB. Model
// replies are far smaller.
const MaxResponseSize int64 = 16 << 20

// ErrResponseTooLarge is returned when a body exceeds the read limit.
var ErrResponseTooLarge = errors.New("response body exceeds limit")

// ReadResponse reads at most limit bytes of body. A body longer than
// limit is an error rather than a silent truncation. A limit of zero
// or less uses MaxResponseSize.
func ReadResponse(body io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = MaxResponseSize
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrResponseTooLarge, limit)
	}
	return data, nil
}

// ErrorBody reads the start of an error response for diagnostics.
// Read errors are ignored: a partial body is still useful.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	return string(data)
}
