// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access

import (
	"context"
	"encoding/json"

	"github.com/samber/oops"

	"github.com/holomush/warden/internal/store"
)

// Storage keys. Each role binding, each half of a transfer and the emergency
// flag live under their own key.
const emergencyModeKey = "emergency_mode"

func roleKey(r Role) string             { return "role:" + r.String() }
func transferDeadlineKey(r Role) string { return "transfer:" + r.String() + ":deadline" }
func transferFutureKey(r Role) string   { return "transfer:" + r.String() + ":future" }

// state is the access-control view of one store transaction. It holds no data
// of its own: every read goes to the transaction.
type state struct {
	tx     store.Tx
	now    func() uint64
	events []Event
}

func (s *state) emit(e Event) {
	s.events = append(s.events, e)
}

// load decodes the JSON value at key into v and reports whether it existed.
func (s *state) load(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := s.tx.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, oops.In("access").Code(CodeCorruptState).With("key", key).Wrap(err)
	}
	return true, nil
}

func (s *state) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return oops.In("access").With("key", key).Wrap(err)
	}
	return s.tx.Set(ctx, key, raw)
}

func (s *state) remove(ctx context.Context, key string) error {
	return s.tx.Remove(ctx, key)
}
