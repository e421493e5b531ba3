// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"sort"
)

// Reader is the read half of a backend, consulted by an Overlay for keys it
// has not staged.
type Reader interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(ctx context.Context, key string) ([]byte, bool, error)

// Get calls f.
func (f ReaderFunc) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return f(ctx, key)
}

// Write is one staged mutation. Value is nil for removals.
type Write struct {
	Key    string
	Value  []byte
	Remove bool
}

// Overlay stages writes in memory on top of a Reader. Reads observe staged
// writes first, so a transaction sees its own changes. Nothing reaches the
// backend until the owner flushes Writes.
type Overlay struct {
	base   Reader
	staged map[string]Write
}

// NewOverlay returns an empty Overlay reading through to base.
func NewOverlay(base Reader) *Overlay {
	return &Overlay{base: base, staged: make(map[string]Write)}
}

// Get returns the staged value for key, falling back to the base reader.
func (o *Overlay) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if w, ok := o.staged[key]; ok {
		if w.Remove {
			return nil, false, nil
		}
		return cloneBytes(w.Value), true, nil
	}
	return o.base.Get(ctx, key)
}

// Set stages value at key.
func (o *Overlay) Set(_ context.Context, key string, value []byte) error {
	o.staged[key] = Write{Key: key, Value: cloneBytes(value)}
	return nil
}

// Remove stages deletion of key.
func (o *Overlay) Remove(_ context.Context, key string) error {
	o.staged[key] = Write{Key: key, Remove: true}
	return nil
}

// Writes returns the staged mutations ordered by key.
func (o *Overlay) Writes() []Write {
	writes := make([]Write, 0, len(o.staged))
	for _, w := range o.staged {
		writes = append(writes, w)
	}
	sort.Slice(writes, func(i, j int) bool { return writes[i].Key < writes[j].Key })
	return writes
}

// Dirty reports whether any write has been staged.
func (o *Overlay) Dirty() bool {
	return len(o.staged) > 0
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
