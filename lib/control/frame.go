// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/yai-labs/yai/lib/wire"
)

// Conn is one control connection.
type Conn struct {
	conn         net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func newConn(conn net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{conn: conn, readTimeout: readTimeout, writeTimeout: writeTimeout}
}

// Wrap adapts an established connection (for example one end of
// net.Pipe) to a Conn with no deadlines.
func Wrap(conn net.Conn) *Conn { return newConn(conn, 0, 0) }

// Dial connects to the control socket at path. timeout bounds each
// subsequent read and write; zero means none.
func Dial(ctx context.Context, path string, timeout time.Duration) (*Conn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, &Error{Kind: KindSocket, Path: path, Err: err}
	}
	return newConn(conn, timeout, timeout), nil
}

// Close closes the connection.
func (c *Conn) Close() error { return c.conn.Close() }

// NetConn returns the underlying connection.
func (c *Conn) NetConn() net.Conn { return c.conn }

// ReadFrame reads one frame. capacity is the largest payload the
// caller accepts; it is further capped at wire.MaxPayload.
//
// On KindBadMagic and KindOverflow the decoded header is returned with
// the error so the caller can address a structured reply before
// closing.
func (c *Conn) ReadFrame(capacity int) (wire.Envelope, []byte, error) {
	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return wire.Envelope{}, nil, &Error{Kind: KindRead, Err: err}
		}
	}
	return ReadFrame(c.conn, capacity)
}

// WriteFrame writes env followed by payload, setting env.PayloadLen
// from the payload.
func (c *Conn) WriteFrame(env wire.Envelope, payload []byte) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return &Error{Kind: KindWrite, Err: err}
		}
	}
	return WriteFrame(c.conn, env, payload)
}

// ReadFrame reads one frame from r. See [Conn.ReadFrame].
func ReadFrame(r io.Reader, capacity int) (wire.Envelope, []byte, error) {
	var header [wire.EnvelopeSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return wire.Envelope{}, nil, &Error{Kind: KindPeerClosed, Err: err}
		}
		return wire.Envelope{}, nil, &Error{Kind: KindRead, Err: err}
	}

	var env wire.Envelope
	if err := env.UnmarshalBinary(header[:]); err != nil {
		return wire.Envelope{}, nil, &Error{Kind: KindRead, Err: err}
	}
	if env.Magic != wire.Magic {
		return env, nil, &Error{Kind: KindBadMagic, Err: fmt.Errorf("magic 0x%08x", env.Magic)}
	}

	limit := min(capacity, wire.MaxPayload)
	if limit < 0 {
		limit = 0
	}
	if uint64(env.PayloadLen) > uint64(limit) {
		return env, nil, &Error{Kind: KindOverflow,
			Err: fmt.Errorf("payload of %d bytes exceeds capacity %d", env.PayloadLen, limit)}
	}
	if env.PayloadLen == 0 {
		return env, nil, nil
	}

	payload := make([]byte, env.PayloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return env, nil, &Error{Kind: KindRead, Err: fmt.Errorf("reading %d byte payload: %w", env.PayloadLen, err)}
	}
	return env, payload, nil
}

// WriteFrame writes one frame to w as a single write.
func WriteFrame(w io.Writer, env wire.Envelope, payload []byte) error {
	if len(payload) > wire.MaxPayload {
		return &Error{Kind: KindOverflow, Err: fmt.Errorf("payload of %d bytes exceeds %d", len(payload), wire.MaxPayload)}
	}
	env.PayloadLen = uint32(len(payload))

	frame := make([]byte, wire.EnvelopeSize+len(payload))
	env.Put(frame)
	copy(frame[wire.EnvelopeSize:], payload)
	if _, err := w.Write(frame); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
			return &Error{Kind: KindPeerClosed, Err: err}
		}
		return &Error{Kind: KindWrite, Err: err}
	}
	return nil
}
