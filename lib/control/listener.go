// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultBacklog is the listen backlog when Options.Backlog is zero.
const DefaultBacklog = 16

// Options configures a listener and the connections it accepts.
type Options struct {
	// Backlog is passed to listen(2).
	Backlog int

	// ReadTimeout bounds each ReadFrame on an accepted connection.
	// Zero means no deadline.
	ReadTimeout time.Duration

	// WriteTimeout bounds each WriteFrame. Zero means no deadline.
	WriteTimeout time.Duration

	// Logger receives accept retries. Nil discards.
	Logger *slog.Logger
}

// Listener accepts control connections on a Unix socket.
type Listener struct {
	path     string
	listener *net.UnixListener
	options  Options
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Listen binds a Unix stream socket at path. A socket file left at
// path by an earlier process is removed first. The parent directory
// is created if needed and the socket is restricted to the owner
// (0600) before listen(2), so no other user can connect even briefly.
func Listen(path string, options Options) (*Listener, error) {
	if options.Backlog <= 0 {
		options.Backlog = DefaultBacklog
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, &Error{Kind: KindSocket, Path: path, Err: err}
	}
	if err := removeStale(path); err != nil {
		return nil, &Error{Kind: KindBind, Path: path, Err: err}
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, &Error{Kind: KindSocket, Path: path, Err: err}
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, &Error{Kind: KindBind, Path: path, Err: err}
	}
	if err := os.Chmod(path, 0o600); err != nil {
		unix.Close(fd)
		os.Remove(path)
		return nil, &Error{Kind: KindBind, Path: path, Err: err}
	}
	if err := unix.Listen(fd, options.Backlog); err != nil {
		unix.Close(fd)
		os.Remove(path)
		return nil, &Error{Kind: KindListen, Path: path, Err: err}
	}

	file := os.NewFile(uintptr(fd), path)
	netListener, err := net.FileListener(file)
	file.Close()
	if err != nil {
		os.Remove(path)
		return nil, &Error{Kind: KindListen, Path: path, Err: err}
	}
	unixListener, ok := netListener.(*net.UnixListener)
	if !ok {
		netListener.Close()
		os.Remove(path)
		return nil, &Error{Kind: KindListen, Path: path, Err: errors.New("not a unix listener")}
	}

	return &Listener{
		path:     path,
		listener: unixListener,
		options:  options,
		logger:   logger,
	}, nil
}

// removeStale deletes a socket file at path. Anything that is not a
// socket is left alone and reported, so a typo in a config file cannot
// delete a regular file.
func removeStale(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return errors.New("path exists and is not a socket")
	}
	return os.Remove(path)
}

// Path returns the socket path.
func (l *Listener) Path() string { return l.path }

// Accept waits for the next connection. Temporary failures (for
// example EMFILE) are retried with a short backoff. When ctx is
// cancelled Accept returns ctx.Err(); after Close it returns an
// *Error of kind KindClosed.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.listener.SetDeadline(time.Time{}); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, &Error{Kind: KindClosed, Path: l.path, Err: err}
		}
	}
	stop := context.AfterFunc(ctx, func() {
		// A deadline in the past unblocks the pending accept.
		l.listener.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	var backoff time.Duration
	for {
		conn, err := l.listener.AcceptUnix()
		if err == nil {
			return newConn(conn, l.options.ReadTimeout, l.options.WriteTimeout), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, &Error{Kind: KindClosed, Path: l.path, Err: err}
		}
		if !temporary(err) {
			return nil, &Error{Kind: KindAccept, Path: l.path, Err: err}
		}

		if backoff == 0 {
			backoff = 5 * time.Millisecond
		} else {
			backoff = min(2*backoff, time.Second)
		}
		l.logger.Warn("accept failed, retrying", "path", l.path, "error", err, "backoff", backoff)
		time.Sleep(backoff)
	}
}

func temporary(err error) bool {
	return errors.Is(err, unix.EMFILE) ||
		errors.Is(err, unix.ENFILE) ||
		errors.Is(err, unix.ENOBUFS) ||
		errors.Is(err, unix.ENOMEM) ||
		errors.Is(err, unix.ECONNABORTED) ||
		errors.Is(err, unix.EINTR)
}

// Close stops listening and removes the socket file.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.listener.Close()
		if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) && l.closeErr == nil {
			l.closeErr = err
		}
	})
	return l.closeErr
}
