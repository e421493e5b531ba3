// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
)

// poolIface is the subset of pgxpool.Pool used by PostgresStore.
// pgxmock.PgxPoolIface satisfies it in tests.
type poolIface interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store on the access_state table.
// Update transactions run at SERIALIZABLE isolation and are retried on
// serialization failures.
type PostgresStore struct {
	pool poolIface
}

// NewPostgresStore connects to the database at dsn.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.In("store").Code("DB_CONNECT_FAILED").Wrapf(err, "connecting to database")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStoreWithPool wraps an existing pool.
func NewPostgresStoreWithPool(pool poolIface) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Update implements Store.
func (s *PostgresStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	return RetryConflicts(ctx, func(ctx context.Context) error {
		return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
	})
}

// View implements Store.
func (s *PostgresStore) View(ctx context.Context, fn func(tx Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx Tx) error {
		return fn(ReadOnly(tx))
	})
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return oops.In("store").With("operation", "ping").Wrap(err)
	}
	return nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) run(ctx context.Context, opts pgx.TxOptions, fn func(tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return oops.In("store").Code(CodeBeginFailed).Wrap(classify(err))
	}

	if err := fn(&postgresTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx) //nolint:errcheck // the callback error takes precedence
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.In("store").Code(CodeCommitFailed).Wrap(classify(err))
	}
	return nil
}

// classify marks serialization failures and deadlocks as retryable conflicts.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return Conflict(err)
		}
	}
	return err
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := t.tx.QueryRow(ctx, `SELECT value FROM access_state WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, oops.In("store").Code(CodeGetFailed).With("key", key).Wrap(classify(err))
	}
	return value, true, nil
}

func (t *postgresTx) Set(ctx context.Context, key string, value []byte) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO access_state (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = now()`,
		key, value)
	if err != nil {
		return oops.In("store").Code(CodeSetFailed).With("key", key).Wrap(classify(err))
	}
	return nil
}

func (t *postgresTx) Remove(ctx context.Context, key string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM access_state WHERE key = $1`, key)
	if err != nil {
		return oops.In("store").Code(CodeRemoveFailed).With("key", key).Wrap(classify(err))
	}
	return nil
}
