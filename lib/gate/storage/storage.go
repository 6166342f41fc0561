// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/yai-labs/yai/lib/command"
	"github.com/yai-labs/yai/lib/runpath"
	"github.com/yai-labs/yai/lib/wire"
)

// ResponseVersion is the "v" field of every gate response.
const ResponseVersion = "1"

// DefaultMaxOpen bounds the number of workspace databases held open
// at once.
const DefaultMaxOpen = 16

// DefaultPoolSize is the connection count per workspace database.
// SQLite serializes writers, so a handful covers concurrent readers.
const DefaultPoolSize = 4

// Result codes reported in the "code" field.
const (
	CodeUnavailable        = "ERR_STORAGE_UNAVAILABLE"
	CodeInvalidJSON        = "ERR_INVALID_JSON"
	CodeMissingFields      = "ERR_MISSING_FIELDS"
	CodeMissingID          = "ERR_MISSING_ID"
	CodeNodeNotFound       = "ERR_NODE_NOT_FOUND"
	CodeMethodNotSupported = "ERR_METHOD_NOT_SUPPORTED"
	CodeSQLExec            = "ERR_SQL_EXEC"
)

// Methods understood by Call.
const (
	MethodPutNode   = "put_node"
	MethodGetNode   = "get_node"
	MethodPutEdge   = "put_edge"
	MethodListEdges = "list_edges"
)

// Response is the envelope shared by every gate reply.
type Response struct {
	Version     string `json:"v"`
	Status      string `json:"status"`
	Code        string `json:"code,omitempty"`
	WorkspaceID string `json:"ws_id,omitempty"`
}

// Node is one vertex of the workspace graph.
type Node struct {
	ID   string          `json:"id"`
	Kind string          `json:"kind"`
	Meta json.RawMessage `json:"meta"`
}

// NodeResponse is the get_node reply.
type NodeResponse struct {
	Response
	Node
}

// Edge is one labelled link between two nodes.
type Edge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}

// EdgesResponse is the list_edges reply.
type EdgesResponse struct {
	Response
	Edges []Edge `json:"edges"`
}

// RPCRequest is the STORAGE_RPC payload.
type RPCRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Options configures a Gate.
type Options struct {
	// Layout locates the per-workspace database files.
	Layout runpath.Layout

	// MaxOpen caps the open databases. Zero uses DefaultMaxOpen.
	MaxOpen int

	// PoolSize is the connections per database. Zero uses
	// DefaultPoolSize.
	PoolSize int

	Logger *slog.Logger
}

// Gate is the workspace graph store. Each workspace gets its own
// SQLite database, opened on first use and kept until Close.
//
// Failures are reported inside the JSON response rather than as Go
// errors, so the caller always receives a body describing the outcome.
type Gate struct {
	options Options
	logger  *slog.Logger

	mu     sync.Mutex
	pools  map[string]*pool
	closed bool
}

// New returns a gate. No database is opened until a workspace is
// first addressed.
func New(options Options) *Gate {
	if options.MaxOpen <= 0 {
		options.MaxOpen = DefaultMaxOpen
	}
	if options.PoolSize <= 0 {
		options.PoolSize = DefaultPoolSize
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gate{
		options: options,
		logger:  logger,
		pools:   make(map[string]*pool),
	}
}

// Dispatch maps storage commands onto gate methods. STORAGE_PUT and
// STORAGE_GET carry node parameters directly; STORAGE_RPC carries an
// RPCRequest naming the method.
func (g *Gate) Dispatch(ctx context.Context, workspaceID string, id command.ID, payload []byte) ([]byte, error) {
	switch id {
	case command.StoragePut:
		return g.Call(ctx, workspaceID, MethodPutNode, payload), nil
	case command.StorageGet:
		return g.Call(ctx, workspaceID, MethodGetNode, payload), nil
	case command.StorageRPC:
		var request RPCRequest
		if err := json.Unmarshal(payload, &request); err != nil {
			return g.respond("error", CodeInvalidJSON, workspaceID), nil
		}
		params := request.Params
		if len(params) == 0 {
			params = []byte("{}")
		}
		return g.Call(ctx, workspaceID, request.Method, params), nil
	default:
		return nil, wire.Errorf(wire.CodeUnsupportedCommand, "storage gate does not serve %s", id)
	}
}

// Call runs one method against the workspace database and returns the
// JSON response.
func (g *Gate) Call(ctx context.Context, workspaceID, method string, params []byte) []byte {
	db, err := g.database(workspaceID)
	if err != nil {
		g.logger.Warn("storage unavailable", "workspace", workspaceID, "error", err)
		return g.respond("error", CodeUnavailable, workspaceID)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(params, &fields); err != nil || fields == nil {
		return g.respond("error", CodeInvalidJSON, workspaceID)
	}

	switch method {
	case MethodPutNode:
		return g.putNode(ctx, db, fields)
	case MethodGetNode:
		return g.getNode(ctx, db, fields)
	case MethodPutEdge:
		return g.putEdge(ctx, db, fields)
	case MethodListEdges:
		return g.listEdges(ctx, db, fields)
	default:
		return g.respond("error", CodeMethodNotSupported, workspaceID)
	}
}

func (g *Gate) putNode(ctx context.Context, db *pool, fields map[string]json.RawMessage) []byte {
	id, okID := stringField(fields, "id")
	kind, okKind := stringField(fields, "kind")
	if !okID || !okKind {
		return g.respond("error", CodeMissingFields, db.workspaceID)
	}
	meta := "{}"
	if raw, ok := fields["meta"]; ok {
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err == nil {
			meta = compact.String()
		}
	}

	err := db.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"INSERT OR REPLACE INTO nodes (id, kind, meta) VALUES (?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{id, kind, meta}})
	})
	if err != nil {
		g.logger.Error("put_node failed", "workspace", db.workspaceID, "id", id, "error", err)
		return g.respond("error", CodeSQLExec, db.workspaceID)
	}
	return g.respond("ok", "", db.workspaceID)
}

func (g *Gate) getNode(ctx context.Context, db *pool, fields map[string]json.RawMessage) []byte {
	id, ok := stringField(fields, "id")
	if !ok {
		return g.respond("error", CodeMissingID, db.workspaceID)
	}

	var node *Node
	err := db.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT id, kind, meta FROM nodes WHERE id = ?",
			&sqlitex.ExecOptions{
				Args: []any{id},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					meta := stmt.ColumnText(2)
					if !json.Valid([]byte(meta)) {
						meta = "null"
					}
					node = &Node{
						ID:   stmt.ColumnText(0),
						Kind: stmt.ColumnText(1),
						Meta: json.RawMessage(meta),
					}
					return nil
				},
			})
	})
	if err != nil {
		g.logger.Error("get_node failed", "workspace", db.workspaceID, "id", id, "error", err)
		return g.respond("error", CodeSQLExec, db.workspaceID)
	}
	if node == nil {
		return g.respond("error", CodeNodeNotFound, db.workspaceID)
	}
	return g.marshal(NodeResponse{Response: g.response("ok", "", db.workspaceID), Node: *node})
}

func (g *Gate) putEdge(ctx context.Context, db *pool, fields map[string]json.RawMessage) []byte {
	source, okSource := stringField(fields, "source")
	target, okTarget := stringField(fields, "target")
	relation, okRelation := stringField(fields, "relation")
	if !okSource || !okTarget || !okRelation {
		return g.respond("error", CodeMissingFields, db.workspaceID)
	}

	err := db.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"INSERT OR REPLACE INTO edges (source, target, relation) VALUES (?, ?, ?)",
			&sqlitex.ExecOptions{Args: []any{source, target, relation}})
	})
	if err != nil {
		g.logger.Error("put_edge failed", "workspace", db.workspaceID, "error", err)
		return g.respond("error", CodeSQLExec, db.workspaceID)
	}
	return g.respond("ok", "", db.workspaceID)
}

// listEdges returns every edge, or only those leaving "source" when
// the parameter is given.
func (g *Gate) listEdges(ctx context.Context, db *pool, fields map[string]json.RawMessage) []byte {
	query := "SELECT source, target, relation FROM edges ORDER BY source, target, relation"
	var args []any
	if source, ok := stringField(fields, "source"); ok {
		query = "SELECT source, target, relation FROM edges WHERE source = ? ORDER BY target, relation"
		args = []any{source}
	}

	edges := []Edge{}
	err := db.with(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				edges = append(edges, Edge{
					Source:   stmt.ColumnText(0),
					Target:   stmt.ColumnText(1),
					Relation: stmt.ColumnText(2),
				})
				return nil
			},
		})
	})
	if err != nil {
		g.logger.Error("list_edges failed", "workspace", db.workspaceID, "error", err)
		return g.respond("error", CodeSQLExec, db.workspaceID)
	}
	return g.marshal(EdgesResponse{Response: g.response("ok", "", db.workspaceID), Edges: edges})
}

// database returns the open pool for a workspace, opening it on first
// use.
func (g *Gate) database(workspaceID string) (*pool, error) {
	if !wire.ValidWorkspaceID(workspaceID) {
		return nil, errors.New("invalid workspace id")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, errors.New("storage gate is closed")
	}
	if db, ok := g.pools[workspaceID]; ok {
		return db, nil
	}
	if len(g.pools) >= g.options.MaxOpen {
		return nil, errors.New("too many open workspace databases")
	}

	if err := runpath.Ensure(g.options.Layout.WorkspaceDir(workspaceID)); err != nil {
		return nil, err
	}
	db, err := openPool(workspaceID, g.options.Layout.StorageDB(workspaceID), g.options.PoolSize, g.logger)
	if err != nil {
		return nil, err
	}
	g.pools[workspaceID] = db
	return db, nil
}

// Open reports the number of open workspace databases.
func (g *Gate) Open() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pools)
}

// Close closes every open database. Later calls report
// ERR_STORAGE_UNAVAILABLE.
func (g *Gate) Close() error {
	g.mu.Lock()
	pools := g.pools
	g.pools = make(map[string]*pool)
	g.closed = true
	g.mu.Unlock()

	var errs []error
	for _, db := range pools {
		if err := db.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (g *Gate) response(status, code, workspaceID string) Response {
	return Response{Version: ResponseVersion, Status: status, Code: code, WorkspaceID: workspaceID}
}

func (g *Gate) respond(status, code, workspaceID string) []byte {
	return g.marshal(g.response(status, code, workspaceID))
}

func (g *Gate) marshal(value any) []byte {
	data, err := json.Marshal(value)
	if err != nil {
		// Every response type is plain strings and raw JSON that was
		// validated on the way in.
		panic("storage: marshalling response: " + err.Error())
	}
	return data
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	return value, true
}
