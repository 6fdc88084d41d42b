// ABOUTME: Connection acquire/release capability pair consumed by the Store
// ABOUTME: SQLitePool implements it over modernc.org/sqlite via database/sql

package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Pool hands out single-owner connections. A non-transactional operation
// acquires, uses and releases a connection before returning; an open
// transaction holds its connection until Commit or Rollback releases it.
type Pool interface {
	Acquire(ctx context.Context) (*sql.Conn, error)
	Release(conn *sql.Conn)
}

// SQLitePool implements Pool over a SQLite database file.
type SQLitePool struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLitePool opens (creating if needed) a SQLite database at the given
// path. Parent directories are created if needed. WAL mode is enabled for
// better concurrent performance.
func NewSQLitePool(path string) (*SQLitePool, error) {
	logger := slog.Default().With("component", "pool")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	logger.Info("SQLite pool initialized", "path", path)
	return &SQLitePool{db: db, logger: logger}, nil
}

// Acquire checks a dedicated connection out of the pool.
func (p *SQLitePool) Acquire(ctx context.Context) (*sql.Conn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	return conn, nil
}

// Release returns a connection to the pool.
func (p *SQLitePool) Release(conn *sql.Conn) {
	if err := conn.Close(); err != nil {
		p.logger.Warn("releasing connection", "error", err)
	}
}

// DB exposes the underlying handle for out-of-band inspection, mainly tests.
func (p *SQLitePool) DB() *sql.DB { return p.db }

// Close closes the underlying database.
func (p *SQLitePool) Close() error {
	p.logger.Info("closing SQLite pool")
	return p.db.Close()
}
