// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// schema is applied to every connection on first use. Statements are
// idempotent so reopening an existing database is harmless.
const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id         TEXT PRIMARY KEY NOT NULL,
	kind       TEXT NOT NULL,
	meta       TEXT DEFAULT '{}',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS edges (
	source   TEXT NOT NULL,
	target   TEXT NOT NULL,
	relation TEXT NOT NULL,
	PRIMARY KEY (source, target, relation)
);
`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA temp_store=MEMORY",
}

// pool is one workspace database. Connections are prepared lazily:
// pragmas first, then the graph schema.
type pool struct {
	inner       *sqlitex.Pool
	workspaceID string
	path        string
	logger      *slog.Logger
}

func openPool(workspaceID, path string, size int, logger *slog.Logger) (*pool, error) {
	inner, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    size,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	logger.Info("storage database opened",
		"workspace", workspaceID,
		"path", path,
		"pool_size", size,
	)
	return &pool{inner: inner, workspaceID: workspaceID, path: path, logger: logger}, nil
}

// with borrows a connection for the duration of fn.
func (p *pool) with(ctx context.Context, fn func(*sqlite.Conn) error) error {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return fmt.Errorf("taking connection: %w", err)
	}
	defer p.inner.Put(conn)
	return fn(conn)
}

func (p *pool) close() error {
	if err := p.inner.Close(); err != nil {
		p.logger.Error("storage database close failed",
			"workspace", p.workspaceID,
			"path", p.path,
			"error", err,
		)
		return fmt.Errorf("closing %s: %w", p.path, err)
	}
	p.logger.Info("storage database closed", "workspace", p.workspaceID)
	return nil
}

func prepareConnection(conn *sqlite.Conn) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
