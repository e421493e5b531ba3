// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store provides the persistent key-value storage that backs role
// bindings, transfer state and the emergency flag.
//
// Every access happens inside a transaction. Update commits all writes made
// by its callback only when the callback returns nil; any error discards them,
// so callers never observe a partially applied invocation.
package store

import (
	"context"

	"github.com/samber/oops"
)

// Error codes returned by store implementations.
const (
	CodeGetFailed    = "STORE_GET_FAILED"
	CodeSetFailed    = "STORE_SET_FAILED"
	CodeRemoveFailed = "STORE_REMOVE_FAILED"
	CodeBeginFailed  = "STORE_BEGIN_FAILED"
	CodeCommitFailed = "STORE_COMMIT_FAILED"
	CodeConflict     = "STORE_CONFLICT"
	CodeReadOnly     = "STORE_READ_ONLY"
	CodeClosed       = "STORE_CLOSED"
)

// Tx is a view of the store within one transaction.
type Tx interface {
	// Get returns the value stored at key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value at key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// Store is a transactional key-value store.
type Store interface {
	// Update runs fn in a read-write transaction. Writes are committed only if
	// fn returns nil.
	Update(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx Tx) error) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

// readOnlyTx rejects writes on top of a readable transaction.
type readOnlyTx struct {
	Tx
}

// ReadOnly wraps tx so that Set and Remove fail with STORE_READ_ONLY.
func ReadOnly(tx Tx) Tx {
	return readOnlyTx{Tx: tx}
}

func (readOnlyTx) Set(_ context.Context, key string, _ []byte) error {
	return oops.In("store").Code(CodeReadOnly).With("key", key).Errorf("write in read-only transaction")
}

func (readOnlyTx) Remove(_ context.Context, key string) error {
	return oops.In("store").Code(CodeReadOnly).With("key", key).Errorf("remove in read-only transaction")
}
