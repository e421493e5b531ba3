// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"sync"

	"github.com/samber/oops"
)

// MemoryStore is an in-process Store. Update transactions are serialized;
// View transactions run concurrently with each other.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return oops.In("store").Code(CodeClosed).Errorf("memory store is closed")
	}

	overlay := NewOverlay(ReaderFunc(s.get))
	if err := fn(overlay); err != nil {
		return err
	}

	for _, w := range overlay.Writes() {
		if w.Remove {
			delete(s.data, w.Key)
			continue
		}
		s.data[w.Key] = w.Value
	}
	return nil
}

// View implements Store.
func (s *MemoryStore) View(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return oops.In("store").Code(CodeClosed).Errorf("memory store is closed")
	}
	return fn(ReadOnly(NewOverlay(ReaderFunc(s.get))))
}

// Ping implements Store.
func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return oops.In("store").Code(CodeClosed).Errorf("memory store is closed")
	}
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// get reads committed data; callers hold mu.
func (s *MemoryStore) get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(v), true, nil
}
