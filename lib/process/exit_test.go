// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain", errors.New("boom"), ExitFailure},
		{"usage", Usagef("unknown flag %q", "--x"), ExitUsage},
		{"wrapped usage", fmt.Errorf("yai ping: %w", Usagef("too many arguments")), ExitUsage},
	}
	for _, test := range tests {
		if got := ExitCode(test.err); got != test.want {
			t.Errorf("%s: ExitCode = %d, want %d", test.name, got, test.want)
		}
	}
}

func TestReport(t *testing.T) {
	var buffer bytes.Buffer
	if code := Report(&buffer, errors.New("vault missing")); code != ExitFailure {
		t.Errorf("Report code = %d, want %d", code, ExitFailure)
	}
	if got := buffer.String(); got != "error: vault missing\n" {
		t.Errorf("Report output = %q, want %q", got, "error: vault missing\n")
	}

	buffer.Reset()
	if code := Report(&buffer, nil); code != ExitOK || buffer.Len() != 0 {
		t.Errorf("Report(nil) = %d, %q", code, buffer.String())
	}
}
