// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package accesstest provides test helpers for access control.
package accesstest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/holomush/warden/internal/access"
	"github.com/holomush/warden/internal/ledger"
	"github.com/holomush/warden/internal/store"
)

// Start is the ledger time fixtures begin at.
const Start uint64 = 1_700_000_000

// RecordingSink is an EventSink that keeps every published event.
type RecordingSink struct {
	mu     sync.Mutex
	events []access.Event
}

// Publish implements access.EventSink.
func (r *RecordingSink) Publish(_ context.Context, events []access.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

// Events returns a copy of the recorded events.
func (r *RecordingSink) Events() []access.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]access.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *RecordingSink) Types() []access.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]access.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// Reset drops every recorded event.
func (r *RecordingSink) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Fixture bundles a controller with its in-memory store, clock and sink.
type Fixture struct {
	Store      *store.MemoryStore
	Clock      *ledger.ManualClock
	Sink       *RecordingSink
	Controller *access.Controller
	Service    *access.Service
}

// New builds a Fixture with an empty memory store and the clock at Start.
func New(t testing.TB) *Fixture {
	t.Helper()
	f := &Fixture{
		Store: store.NewMemoryStore(),
		Clock: ledger.NewManualClock(Start),
		Sink:  &RecordingSink{},
	}
	f.Controller = access.NewController(f.Store, f.Clock, access.WithEventSink(f.Sink))
	f.Service = access.NewService(f.Controller)
	t.Cleanup(func() { _ = f.Store.Close() })
	return f
}

// WithAdmin builds a Fixture and initializes admin as the Admin.
func WithAdmin(t testing.TB, admin access.Identity) *Fixture {
	t.Helper()
	f := New(t)
	require.NoError(t, f.Controller.InitAdmin(context.Background(), admin))
	f.Sink.Reset()
	return f
}

var _ access.EventSink = (*RecordingSink)(nil)
