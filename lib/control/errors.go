// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"errors"
	"fmt"
)

// Kind classifies a transport failure.
type Kind int

const (
	KindSocket Kind = iota + 1
	KindBind
	KindListen
	KindAccept
	KindRead
	KindWrite
	KindOverflow
	KindPeerClosed
	KindBadMagic
	KindClosed
)

var kindNames = map[Kind]string{
	KindSocket:     "socket",
	KindBind:       "bind",
	KindListen:     "listen",
	KindAccept:     "accept",
	KindRead:       "read",
	KindWrite:      "write",
	KindOverflow:   "overflow",
	KindPeerClosed: "peer closed",
	KindBadMagic:   "bad magic",
	KindClosed:     "listener closed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a transport failure.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	message := "control: " + e.Kind.String()
	if e.Path != "" {
		message += " " + e.Path
	}
	if e.Err != nil {
		message += ": " + e.Err.Error()
	}
	return message
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a transport *Error of kind k.
func IsKind(err error, k Kind) bool {
	var transportErr *Error
	return errors.As(err, &transportErr) && transportErr.Kind == k
}
