// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/warden/internal/access"
	"github.com/holomush/warden/internal/ledger"
	"github.com/holomush/warden/internal/store"
)

func TestLogSink_LogsCommittedEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ctrl := access.NewController(store.NewMemoryStore(), ledger.NewManualClock(1000), access.WithLogger(logger))
	ctx := context.Background()

	require.NoError(t, ctrl.InitAdmin(ctx, "root"))
	_, err := ctrl.CommitTransfer(ctx, access.Admin, "heir")
	require.NoError(t, err)
	require.NoError(t, ctrl.SetEmergencyMode(ctx, false))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	var entries []map[string]any
	for _, line := range lines {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, "access state changed", entry["msg"])
		assert.NotEmpty(t, entry["event_id"])
		entries = append(entries, entry)
	}

	assert.Equal(t, "role_set", entries[0]["event_type"])
	assert.Equal(t, "Admin", entries[0]["role"])
	assert.Equal(t, "admin_initialized", entries[1]["event_type"])
	assert.Equal(t, "transfer_committed", entries[2]["event_type"])
	assert.InDelta(t, float64(1000+access.TransferDelay), entries[2]["deadline"], 0)
	assert.Equal(t, "emergency_mode_set", entries[3]["event_type"])
	assert.Equal(t, false, entries[3]["value"])
	assert.NotContains(t, entries[3], "role")
}

func TestSinkFunc(t *testing.T) {
	var got []access.Event
	sink := access.SinkFunc(func(_ context.Context, events []access.Event) {
		got = append(got, events...)
	})
	ctrl := access.NewController(store.NewMemoryStore(), nil, access.WithEventSink(sink))

	require.NoError(t, ctrl.Bind(context.Background(), access.RewardsAdmin, "r"))
	require.Len(t, got, 1)
	assert.Equal(t, access.EventRoleSet, got[0].Type)
}

func TestEvent_JSON(t *testing.T) {
	raw, err := json.Marshal(access.Event{Type: access.EventTransferApplied, Role: access.EmergencyAdmin, Identities: []access.Identity{"x"}})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "transfer_applied", decoded["type"])
	assert.Equal(t, "EmergencyAdmin", decoded["role"])
	assert.NotContains(t, decoded, "deadline")
}
