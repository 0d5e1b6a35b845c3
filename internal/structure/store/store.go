// Package store is the persistence layer: schema, dialect-aware bulk
// upsert, association rebuild, deletion, and fetch operations. Apart from
// the entrypoint (cmd/vstructured), which branches on the dialect to pick
// the driver name and the SQLite pool size, this is the only package in
// the module that knows about Postgres vs. SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect identifies the two supported storage backends.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectSQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// ParseDialect maps a configured dialect name to a Dialect, erroring on
// anything else per the upsert contract's "must error on any other
// dialect" requirement.
func ParseDialect(name string) (Dialect, error) {
	switch name {
	case "postgres", "postgresql":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return 0, fmt.Errorf("unsupported database dialect %q: only postgres and sqlite are supported", name)
	}
}

// dbtx is satisfied by both *sql.DB and *sql.Tx, letting every store
// function run either directly against the pool or inside a transaction
// the Structure Service façade controls.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps a database handle bound to a fixed dialect.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open wraps an already-opened *sql.DB. Callers are expected to have
// opened it with the driver matching dialect ("postgres" or "sqlite3").
func Open(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func (s *Store) Dialect() Dialect { return s.dialect }

// Conn returns the store's pool handle for read operations that run
// outside any caller-managed transaction: each read uses its own session
// and never crosses the boundary with a write transaction.
func (s *Store) Conn() dbtx { return s.db }

// WithTx runs fn inside a single transaction, committing on success and
// rolling back on any error (including a panic, which it re-raises after
// rollback).
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyDBError(s.dialect, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return classifyDBError(s.dialect, err)
	}
	return nil
}

// placeholder returns the dialect's bind-variable syntax for the n-th
// (1-indexed) parameter.
func (s *Store) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
