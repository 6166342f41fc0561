// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/yai-labs/yai/lib/clock"
	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/control"
	"github.com/yai-labs/yai/lib/events"
	"github.com/yai-labs/yai/lib/kernel"
	"github.com/yai-labs/yai/lib/netutil"
	"github.com/yai-labs/yai/lib/session"
	"github.com/yai-labs/yai/lib/vault"
	"github.com/yai-labs/yai/lib/wire"
)

// Plane names the process a server runs in. It selects the PING reply
// and appears in STATUS responses.
type Plane string

const (
	PlaneRoot      Plane = "root"
	PlaneKernel    Plane = "kernel"
	PlaneWorkspace Plane = "workspace"
	PlaneEngine    Plane = "engine"
)

// Profile decides how unregistered commands are answered.
type Profile int

const (
	// ProfileStrict answers unregistered commands with
	// unsupported_command.
	ProfileStrict Profile = iota

	// ProfilePermissive answers them with {"status":"ok"}.
	ProfilePermissive
)

// ParseProfile resolves "strict" or "permissive".
func ParseProfile(name string) (Profile, error) {
	switch name {
	case "strict", "":
		return ProfileStrict, nil
	case "permissive":
		return ProfilePermissive, nil
	}
	return 0, fmt.Errorf("unknown dispatch profile %q", name)
}

// Mode decides how many commands one connection may carry.
type Mode int

const (
	// ModeMulti serves commands until the peer closes.
	ModeMulti Mode = iota

	// ModeOneshot closes after the first command that follows the
	// handshake.
	ModeOneshot
)

// ParseMode resolves "multi" or "oneshot".
func ParseMode(name string) (Mode, error) {
	switch name {
	case "multi", "":
		return ModeMulti, nil
	case "oneshot":
		return ModeOneshot, nil
	}
	return 0, fmt.Errorf("unknown connection mode %q", name)
}

// VaultSource maps workspace ids to Vault records. *vault.Directory
// implements it.
type VaultSource interface {
	Record(workspaceID string) (*vault.Record, error)
}

type fixedVault struct{ record *vault.Record }

func (f fixedVault) Record(string) (*vault.Record, error) { return f.record, nil }

// SingleVault serves the same record for every workspace. The root
// plane uses it for the system vault.
func SingleVault(record *vault.Record) VaultSource { return fixedVault{record: record} }

// Call is one routed command as seen by a handler.
type Call struct {
	Envelope wire.Envelope
	Payload  []byte

	// Session is the workspace session, nil when the server has no
	// registry.
	Session *session.Session

	// Record is the workspace Vault record, nil when the server has
	// no vault source.
	Record *vault.Record
}

// HandlerFunc serves one command. The returned bytes are the response
// payload. A *wire.ProtocolError is sent to the peer as is; other
// errors become ERR_INTERNAL.
type HandlerFunc func(ctx context.Context, call *Call) ([]byte, error)

// Options configures a Server.
type Options struct {
	Plane   Plane
	Mode    Mode
	Profile Profile

	// Registry owns workspace sessions. Nil serves without sessions.
	Registry *session.Registry

	// Vaults supplies Vault records. Nil serves without a record.
	Vaults VaultSource

	// Kernel drives TRANSITION and the authority lock. Nil creates
	// one sharing Sink and Logger.
	Kernel *kernel.Kernel

	// Capabilities is the server's capability policy. Zero grants all.
	Capabilities uint32

	// PayloadCapacity caps accepted payloads below wire.MaxPayload.
	PayloadCapacity int

	Sink   events.Sink
	Clock  clock.Clock
	Logger *slog.Logger
}

// AllCapabilities is every capability bit the protocol defines.
const AllCapabilities = wire.CapPing | wire.CapHandshake | wire.CapStatus |
	wire.CapControl | wire.CapStorage | wire.CapInference

// Server dispatches control frames.
type Server struct {
	options  Options
	kernel   *kernel.Kernel
	sink     events.Sink
	clock    clock.Clock
	logger   *slog.Logger
	handlers map[command.ID]HandlerFunc

	// sessionCounter numbers handshakes when there is no registry.
	sessionCounter uint32

	// booted holds the workspaces this server has brought up. A
	// record is booted once; later frames see whatever state the
	// operator has since moved it to, PREBOOT included.
	bootMu sync.Mutex
	booted map[string]struct{}
}

// NewServer creates a server with the built-in handlers registered.
func NewServer(options Options) *Server {
	if options.Capabilities == 0 {
		options.Capabilities = AllCapabilities
	}
	if options.PayloadCapacity <= 0 || options.PayloadCapacity > wire.MaxPayload {
		options.PayloadCapacity = wire.MaxPayload
	}
	server := &Server{
		options:  options,
		sink:     options.Sink,
		clock:    options.Clock,
		logger:   options.Logger,
		handlers: make(map[command.ID]HandlerFunc),
		booted:   make(map[string]struct{}),
	}
	if server.sink == nil {
		server.sink = events.Discard
	}
	if server.clock == nil {
		server.clock = clock.Real()
	}
	if server.logger == nil {
		server.logger = slog.New(slog.DiscardHandler)
	}
	server.kernel = options.Kernel
	if server.kernel == nil {
		server.kernel = kernel.New(kernel.Options{Sink: server.sink, Clock: server.clock, Logger: server.logger})
	}

	server.Handle(command.Status, server.handleStatus)
	server.Handle(command.Transition, server.handleTransition)
	server.Handle(command.Control, server.handleControl)
	server.Handle(command.Reconfigure, server.handleReconfigure)
	server.Handle(command.Noop, handleNoop)
	return server
}

// Handle registers a handler for id. Panics on a duplicate, or for
// PING and HANDSHAKE, which the connection state machine owns.
func (s *Server) Handle(id command.ID, handler HandlerFunc) {
	if id == command.Ping || id == command.Handshake {
		panic(fmt.Sprintf("rpc.Server: %s is handled by the connection protocol", id))
	}
	if _, exists := s.handlers[id]; exists {
		panic(fmt.Sprintf("rpc.Server: duplicate handler for %s", id))
	}
	s.handlers[id] = handler
}

// Route registers gate for each id. Effectful commands are refused
// while the workspace record's authority lock is engaged.
func (s *Server) Route(gate Gate, ids ...command.ID) {
	for _, id := range ids {
		s.Handle(id, s.gateHandler(gate))
	}
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed. Connections are served one at a time, to completion.
func (s *Server) Serve(ctx context.Context, listener *control.Listener) error {
	s.logger.Info("control plane listening",
		"plane", string(s.options.Plane),
		"path", listener.Path(),
	)
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || control.IsKind(err, control.KindClosed) {
				return nil
			}
			return err
		}
		s.ServeConn(ctx, conn)
	}
}

// ServeConn runs the protocol on one connection and closes it.
func (s *Server) ServeConn(ctx context.Context, conn *control.Conn) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	state := &connState{server: s, conn: conn}
	err := state.run(ctx)
	if err == nil {
		return
	}
	level := slog.LevelDebug
	if (control.IsKind(err, control.KindRead) || control.IsKind(err, control.KindWrite)) &&
		!netutil.IsExpectedCloseError(err) {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "connection closed", "plane", string(s.options.Plane), "reason", err)
}

func (s *Server) bootOnce(workspaceID string, record *vault.Record) {
	s.bootMu.Lock()
	defer s.bootMu.Unlock()
	if _, done := s.booted[workspaceID]; done {
		return
	}
	s.booted[workspaceID] = struct{}{}
	if err := s.kernel.Boot(record); err != nil {
		s.logger.Warn("workspace boot rejected", "ws_id", workspaceID, "error", err)
	}
}

// workspace resolves the session and record for workspaceID. A fresh
// record is booted from PREBOOT to READY the first time this server
// serves its workspace.
func (s *Server) workspace(workspaceID string) (*session.Session, *vault.Record, *wire.ProtocolError) {
	var held *session.Session
	if s.options.Registry != nil {
		acquired, err := s.options.Registry.Acquire(workspaceID)
		if err != nil {
			if errors.Is(err, session.ErrInvalidWorkspace) {
				return nil, nil, wire.Errorf(wire.CodeBadWorkspaceID, "%v", err)
			}
			return nil, nil, wire.Errorf(wire.CodeSessionDenied, "%v", err)
		}
		held = acquired
	}

	var record *vault.Record
	if s.options.Vaults != nil {
		resolved, err := s.options.Vaults.Record(workspaceID)
		if err != nil {
			return held, nil, wire.Errorf(wire.CodeInternal, "mapping vault: %v", err)
		}
		record = resolved
		s.bootOnce(workspaceID, record)
	}
	return held, record, nil
}
