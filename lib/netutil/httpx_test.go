// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"testing"
)

func TestReadResponse(t *testing.T) {
	t.Run("normal body", func(t *testing.T) {
		data, err := ReadResponse(bytes.NewReader([]byte(`{"status":"ok"}`)), 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != `{"status":"ok"}` {
			t.Fatalf("got %q, want %q", data, `{"status":"ok"}`)
		}
	})

	t.Run("exactly at limit", func(t *testing.T) {
		data, err := ReadResponse(strings.NewReader("abcd"), 4)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "abcd" {
			t.Fatalf("got %q, want %q", data, "abcd")
		}
	})

	t.Run("over limit", func(t *testing.T) {
		_, err := ReadResponse(strings.NewReader("abcde"), 4)
		if !errors.Is(err, ErrResponseTooLarge) {
			t.Fatalf("error = %v, want ErrResponseTooLarge", err)
		}
	})

	t.Run("read error propagates", func(t *testing.T) {
		_, err := ReadResponse(&failReader{}, 0)
		if err == nil {
			t.Fatal("expected error from failing reader")
		}
	})
}

func TestErrorBodyTruncates(t *testing.T) {
	body := ErrorBody(strings.NewReader(strings.Repeat("x", 10000)))
	if len(body) != 4096 {
		t.Errorf("len(ErrorBody) = %d, want 4096", len(body))
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"wrapped eof", fmt.Errorf("reading: %w", io.EOF), true},
		{"closed", net.ErrClosed, true},
		{"truncated frame", io.ErrUnexpectedEOF, true},
		{"broken pipe", &net.OpError{Op: "write", Err: syscall.EPIPE}, true},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, false},
		{"other", errors.New("boom"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsExpectedCloseError(test.err); got != test.want {
				t.Errorf("IsExpectedCloseError(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}

type failReader struct{}

func (*failReader) Read([]byte) (int, error) {
	return 0, fmt.Errorf("simulated read failure")
}
