// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"abc", "ab", 1},
		{"abc", "bac", 2},
		{"kitten", "sitting", 3},
		{"vault", "valut", 2},
		{"handshake", "handshak", 1},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
		if got := levenshtein(test.b, test.a); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.b, test.a, got, test.want)
		}
	}
}

func TestSuggestCommand(t *testing.T) {
	commands := []*Command{{Name: "ping"}, {Name: "status"}, {Name: "handshake"}, {Name: "vault"}}
	tests := []struct {
		input string
		want  string
	}{
		{"pign", "ping"},
		{"statu", "status"},
		{"vualt", "vault"},
		{"completely-different", ""},
	}
	for _, test := range tests {
		if got := suggestCommand(test.input, commands); got != test.want {
			t.Errorf("suggestCommand(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestSuggestFlag(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("target", "", "")
	flags.String("ws", "", "")
	flags.Bool("arm", false, "")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--taregt", "root"}, "--target"},
		{[]string{"--ws", "a", "--amr"}, "--arm"},
		{[]string{"--ws=a", "--zzzzzzzz"}, ""},
		{[]string{"--", "--taregt"}, ""},
	}
	for _, test := range tests {
		if got := suggestFlag(test.args, flags); got != test.want {
			t.Errorf("suggestFlag(%v) = %q, want %q", test.args, got, test.want)
		}
	}
}
