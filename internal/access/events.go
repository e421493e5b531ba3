// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access

import (
	"context"
	"crypto/rand"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType identifies the kind of state change.
type EventType string

const (
	EventRoleSet           EventType = "role_set"
	EventRoleHoldersSet    EventType = "role_holders_set"
	EventTransferCommitted EventType = "transfer_committed"
	EventTransferApplied   EventType = "transfer_applied"
	EventTransferReverted  EventType = "transfer_reverted"
	EventEmergencyModeSet  EventType = "emergency_mode_set"
	EventAdminInitialized  EventType = "admin_initialized"
)

// Event records one committed mutation. Events from a failed invocation are
// never published.
type Event struct {
	ID         ulid.ULID  `json:"id"`
	Type       EventType  `json:"type"`
	Role       Role       `json:"role,omitempty"`
	Identities []Identity `json:"identities,omitempty"`
	Deadline   uint64     `json:"deadline,omitempty"`
	Value      bool       `json:"value,omitempty"`
	At         time.Time  `json:"at"`
}

// EventSink receives events after their invocation commits.
type EventSink interface {
	Publish(ctx context.Context, events []Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, events []Event)

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, events []Event) {
	f(ctx, events)
}

// LogSink writes every event to a logger at Info.
type LogSink struct {
	Logger *slog.Logger
}

// Publish logs each event.
func (s LogSink) Publish(ctx context.Context, events []Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, e := range events {
		attrs := []any{
			"event_id", e.ID.String(),
			"event_type", string(e.Type),
		}
		if e.Role.IsValid() {
			attrs = append(attrs, "role", e.Role.String())
		}
		if len(e.Identities) > 0 {
			attrs = append(attrs, "identities", e.Identities)
		}
		if e.Deadline != 0 {
			attrs = append(attrs, "deadline", e.Deadline)
		}
		if e.Type == EventEmergencyModeSet {
			attrs = append(attrs, "value", e.Value)
		}
		logger.InfoContext(ctx, "access state changed", attrs...)
	}
}

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

func newEventID(at time.Time) ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy)
}
