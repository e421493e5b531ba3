// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package sqlite implements the access-state store on an embedded SQLite
// database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/holomush/warden/internal/store"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS access_state (
    key        TEXT PRIMARY KEY,
    value      BLOB NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);`

// Store implements store.Store on SQLite. A single connection serializes all
// transactions, which matches the one-invocation-at-a-time model of the host.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, oops.In("sqlite").With("path", path).Wrapf(err, "creating database directory")
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, oops.In("sqlite").Code("DB_CONNECT_FAILED").With("path", path).Wrap(err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close() //nolint:errcheck // schema error takes precedence
		return nil, oops.In("sqlite").Code("SCHEMA_FAILED").With("path", path).Wrap(err)
	}
	return &Store{db: db}, nil
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.run(ctx, nil, fn)
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.run(ctx, nil, func(tx store.Tx) error {
		return fn(store.ReadOnly(tx))
	})
}

// Ping implements store.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return oops.In("sqlite").With("operation", "ping").Wrap(err)
	}
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return oops.In("sqlite").With("operation", "close").Wrap(err)
	}
	return nil
}

func (s *Store) run(ctx context.Context, opts *sql.TxOptions, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return oops.In("sqlite").Code(store.CodeBeginFailed).Wrap(err)
	}

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		_ = tx.Rollback() //nolint:errcheck // the callback error takes precedence
		return err
	}

	if err := tx.Commit(); err != nil {
		return oops.In("sqlite").Code(store.CodeCommitFailed).Wrap(err)
	}
	return nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := t.tx.QueryRowContext(ctx, `SELECT value FROM access_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, oops.In("sqlite").Code(store.CodeGetFailed).With("key", key).Wrap(err)
	}
	return value, true, nil
}

func (t *sqliteTx) Set(ctx context.Context, key string, value []byte) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO access_state (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value,
		     updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		key, value)
	if err != nil {
		return oops.In("sqlite").Code(store.CodeSetFailed).With("key", key).Wrap(err)
	}
	return nil
}

func (t *sqliteTx) Remove(ctx context.Context, key string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM access_state WHERE key = ?`, key); err != nil {
		return oops.In("sqlite").Code(store.CodeRemoveFailed).With("key", key).Wrap(err)
	}
	return nil
}
