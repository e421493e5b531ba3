// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/warden/internal/store"
	"github.com/holomush/warden/pkg/errutil"
)

func TestMemoryStore_UpdateCommits(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.Set(ctx, "k", []byte("v"))
	}))

	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		v, ok, err := tx.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v", string(v))
		return nil
	}))
}

func TestMemoryStore_UpdateRollsBackEveryWrite(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.Set(ctx, "keep", []byte("1"))
	}))

	sentinel := errors.New("abort")
	err := s.Update(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Set(ctx, "new", []byte("2")))
		require.NoError(t, tx.Remove(ctx, "keep"))
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		_, ok, _ := tx.Get(ctx, "new")
		assert.False(t, ok)
		v, ok, _ := tx.Get(ctx, "keep")
		assert.True(t, ok)
		assert.Equal(t, "1", string(v))
		return nil
	}))
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_TransactionSeesOwnWrites(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Set(ctx, "k", []byte("a")))
		v, ok, err := tx.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "a", string(v))

		require.NoError(t, tx.Remove(ctx, "k"))
		_, ok, err = tx.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))
	assert.Zero(t, s.Len())
}

func TestMemoryStore_ViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	err := s.View(ctx, func(tx store.Tx) error {
		return tx.Set(ctx, "k", []byte("v"))
	})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, store.CodeReadOnly)

	err = s.View(ctx, func(tx store.Tx) error {
		return tx.Remove(ctx, "k")
	})
	errutil.AssertErrorCode(t, err, store.CodeReadOnly)
}

func TestMemoryStore_ReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.Set(ctx, "k", []byte("abc"))
	}))

	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		v, _, _ := tx.Get(ctx, "k")
		v[0] = 'z'
		return nil
	}))
	require.NoError(t, s.View(ctx, func(tx store.Tx) error {
		v, _, _ := tx.Get(ctx, "k")
		assert.Equal(t, "abc", string(v))
		return nil
	}))
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())

	errutil.AssertErrorCode(t, s.Ping(ctx), store.CodeClosed)
	errutil.AssertErrorCode(t, s.Update(ctx, func(store.Tx) error { return nil }), store.CodeClosed)
}

func TestOverlay_WritesOrderedByKey(t *testing.T) {
	ctx := context.Background()
	o := store.NewOverlay(store.ReaderFunc(func(context.Context, string) ([]byte, bool, error) {
		return []byte("base"), true, nil
	}))
	assert.False(t, o.Dirty())

	require.NoError(t, o.Set(ctx, "b", []byte("2")))
	require.NoError(t, o.Remove(ctx, "a"))
	require.NoError(t, o.Set(ctx, "b", []byte("3")))

	writes := o.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, store.Write{Key: "a", Remove: true}, writes[0])
	assert.Equal(t, store.Write{Key: "b", Value: []byte("3")}, writes[1])

	v, ok, err := o.Get(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "base", string(v))
}

func TestRetryConflicts(t *testing.T) {
	ctx := context.Background()

	attempts := 0
	err := store.RetryConflicts(ctx, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return store.Conflict(errors.New("lost race"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = store.RetryConflicts(ctx, func(context.Context) error {
		attempts++
		return store.Conflict(errors.New("lost race"))
	})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, store.CodeConflict)
	assert.Equal(t, 5, attempts)
}
