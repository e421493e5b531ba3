// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package redisstore implements the access-state store on Redis.
//
// Transactions are optimistic: every key read is WATCHed and the transaction
// ends in a single MULTI/EXEC that flushes staged writes (empty for views).
// A concurrent writer aborts the EXEC and the whole callback is rerun.
package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/warden/internal/store"
)

// DefaultPrefix namespaces all keys written by the store.
const DefaultPrefix = "warden:"

const pingTimeout = 5 * time.Second

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key. Defaults to DefaultPrefix.
	Prefix string
}

// Store implements store.Store on Redis.
type Store struct {
	client *redis.Client
	prefix string
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	s := NewWithClient(client, opts.Prefix)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.Ping(pingCtx); err != nil {
		_ = client.Close() //nolint:errcheck // ping error takes precedence
		return nil, oops.In("redis").Code("DB_CONNECT_FAILED").With("addr", opts.Addr).Wrap(err)
	}
	return s, nil
}

// NewWithClient wraps an existing client. An empty prefix selects DefaultPrefix.
func NewWithClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.watched(ctx, fn, func(ctx context.Context, rtx *redis.Tx, overlay *store.Overlay) error {
		if !overlay.Dirty() {
			return nil
		}
		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, w := range overlay.Writes() {
				if w.Remove {
					pipe.Del(ctx, s.prefix+w.Key)
					continue
				}
				pipe.Set(ctx, s.prefix+w.Key, w.Value, 0)
			}
			return nil
		})
		return err
	})
}

// View implements store.Store. Every key read is WATCHed and an empty
// MULTI/EXEC runs afterwards, so a callback only sees values that were all
// current at the same moment. A concurrent writer reruns the callback.
func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	readOnly := func(tx store.Tx) error {
		return fn(store.ReadOnly(tx))
	}
	return s.watched(ctx, readOnly, func(ctx context.Context, rtx *redis.Tx, _ *store.Overlay) error {
		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Ping(ctx)
			return nil
		})
		return err
	})
}

// watched runs fn over an overlay whose reads WATCH their keys, then calls
// finish inside the same WATCH. An aborted EXEC is retried as a conflict.
func (s *Store) watched(
	ctx context.Context,
	fn func(tx store.Tx) error,
	finish func(ctx context.Context, rtx *redis.Tx, overlay *store.Overlay) error,
) error {
	return store.RetryConflicts(ctx, func(ctx context.Context) error {
		var fnErr error
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			overlay := store.NewOverlay(store.ReaderFunc(func(ctx context.Context, key string) ([]byte, bool, error) {
				if err := rtx.Watch(ctx, s.prefix+key).Err(); err != nil {
					return nil, false, oops.In("redis").Code(store.CodeGetFailed).With("key", key).Wrap(err)
				}
				return s.get(ctx, rtx, key)
			}))

			if fnErr = fn(overlay); fnErr != nil {
				return fnErr
			}
			return finish(ctx, rtx, overlay)
		})

		switch {
		case fnErr != nil:
			return fnErr
		case errors.Is(err, redis.TxFailedErr):
			return store.Conflict(err)
		case err != nil:
			return oops.In("redis").Code(store.CodeCommitFailed).Wrap(err)
		}
		return nil
	})
}

// Ping implements store.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return oops.In("redis").With("operation", "ping").Wrap(err)
	}
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return oops.In("redis").With("operation", "close").Wrap(err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, rtx *redis.Tx, key string) ([]byte, bool, error) {
	v, err := rtx.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, oops.In("redis").Code(store.CodeGetFailed).With("key", key).Wrap(err)
	}
	return v, true, nil
}
