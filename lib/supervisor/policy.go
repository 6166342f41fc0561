// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"fmt"
	"time"
)

// Policy decides whether an exited plane is started again.
type Policy int

const (
	// OnFailure restarts planes that exit with an error or a signal.
	OnFailure Policy = iota

	// Always restarts planes however they exit.
	Always

	// Never leaves exited planes stopped.
	Never
)

var policyNames = map[Policy]string{
	OnFailure: "on-failure",
	Always:    "always",
	Never:     "never",
}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy resolves a policy name. Empty is OnFailure.
func ParsePolicy(name string) (Policy, error) {
	if name == "" {
		return OnFailure, nil
	}
	for policy, policyName := range policyNames {
		if policyName == name {
			return policy, nil
		}
	}
	return 0, fmt.Errorf("unknown restart policy %q", name)
}

// ShouldRestart applies the policy to a Wait result.
func (p Policy) ShouldRestart(exitErr error) bool {
	switch p {
	case Always:
		return true
	case OnFailure:
		return exitErr != nil
	default:
		return false
	}
}

// Backoff is an exponential restart delay.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// Delay is the wait before restart number attempt (zero-based):
// Initial doubled attempt times, capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Initial <= 0 {
		return 0
	}
	delay := b.Initial
	for range attempt {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && delay > b.Max {
		return b.Max
	}
	return delay
}
