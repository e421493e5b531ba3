// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/warden/internal/access"
	"github.com/holomush/warden/internal/access/accesstest"
	"github.com/holomush/warden/pkg/errutil"
)

func TestTransferDelay(t *testing.T) {
	assert.Equal(t, uint64(259200), access.TransferDelay)
}

func TestCommitTransfer_SetsDeadline(t *testing.T) {
	ctx := context.Background()
	f := accesstest.WithAdmin(t, "root")

	deadline, err := f.Controller.CommitTransfer(ctx, access.Admin, "heir")
	require.NoError(t, err)
	assert.Equal(t, accesstest.Start+access.TransferDelay, deadline)

	got, err := f.Controller.TransferDeadline(ctx, access.Admin)
	require.NoError(t, err)
	assert.Equal(t, deadline, got)

	future, ok, err := f.Controller.FutureHolder(ctx, access.Admin)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, access.Identity("heir"), future)

	// Committing does not move the role.
	admin, err := f.Controller.Holder(ctx, access.Admin)
	require.NoError(t, err)
	assert.Equal(t, access.Identity("root"), admin)
}

func TestApplyTransfer_Delay(t *testing.T) {
	for _, r := range []access.Role{access.Admin, access.EmergencyAdmin} {
		t.Run(r.String(), func(t *testing.T) {
			ctx := context.Background()
			f := accesstest.WithAdmin(t, "root")
			if r != access.Admin {
				require.NoError(t, f.Controller.Bind(ctx, r, "old"))
			}

			deadline, err := f.Controller.CommitTransfer(ctx, r, "heir")
			require.NoError(t, err)

			f.Clock.Set(deadline - 1)
			_, err = f.Controller.ApplyTransfer(ctx, r)
			errutil.AssertErrorCode(t, err, access.CodeTransferNotReady)
			errutil.AssertErrorContext(t, err, "deadline", deadline)

			f.Clock.Set(deadline)
			holder, err := f.Controller.ApplyTransfer(ctx, r)
			require.NoError(t, err)
			assert.Equal(t, access.Identity("heir"), holder)

			got, err := f.Controller.Holder(ctx, r)
			require.NoError(t, err)
			assert.Equal(t, access.Identity("heir"), got)

			deadlineAfter, err := f.Controller.TransferDeadline(ctx, r)
			require.NoError(t, err)
			assert.Zero(t, deadlineAfter)

			_, ok, err := f.Controller.FutureHolder(ctx, r)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestApplyTransfer_AfterDeadline(t *testing.T) {
	ctx := context.Background()
	f := accesstest.WithAdmin(t, "root")

	_, err := f.Controller.CommitTransfer(ctx, access.Admin, "heir")
	require.NoError(t, err)
	f.Clock.Advance(access.TransferDelay * 10)

	_, err = f.Controller.ApplyTransfer(ctx, access.Admin)
	require.NoError(t, err)

	ok, err := f.Controller.HasRole(ctx, "root", access.Admin)
	require.NoError(t, err)
	assert.False(t, ok, "old admin loses the role")
	ok, err = f.Controller.HasRole(ctx, "root", access.RewardsAdmin)
	require.NoError(t, err)
	assert.False(t, ok, "old admin loses supremacy")
}

func TestApplyTransfer_NoPending(t *testing.T) {
	_, err := accesstest.WithAdmin(t, "root").Controller.ApplyTransfer(context.Background(), access.Admin)
	errutil.AssertErrorCode(t, err, access.CodeNoPendingTransfer)
}

func TestCommitTransfer_AlreadyPending(t *testing.T) {
	ctx := context.Background()
	f := accesstest.WithAdmin(t, "root")

	first, err := f.Controller.CommitTransfer(ctx, access.Admin, "heir")
	require.NoError(t, err)

	f.Clock.Advance(60)
	_, err = f.Controller.CommitTransfer(ctx, access.Admin, "usurper")
	errutil.AssertErrorCode(t, err, access.CodeTransferAlreadyPending)

	future, _, err := f.Controller.FutureHolder(ctx, access.Admin)
	require.NoError(t, err)
	assert.Equal(t, access.Identity("heir"), future)
	deadline, err := f.Controller.TransferDeadline(ctx, access.Admin)
	require.NoError(t, err)
	assert.Equal(t, first, deadline)
}

func TestCommitTransfer_PerRoleIndependence(t *testing.T) {
	ctx := context.Background()
	f := accesstest.WithAdmin(t, "root")

	_, err := f.Controller.CommitTransfer(ctx, access.Admin, "heir")
	require.NoError(t, err)
	_, err = f.Controller.CommitTransfer(ctx, access.EmergencyAdmin, "ema")
	require.NoError(t, err)
}

func TestTransfer_NonDelayedRoles(t *testing.T) {
	ctx := context.Background()
	ctrl := accesstest.WithAdmin(t, "root").Controller

	for _, r := range []access.Role{access.RewardsAdmin, access.OperationsAdmin, access.PauseAdmin, access.EmergencyPauseAdmin} {
		t.Run(r.String(), func(t *testing.T) {
			_, err := ctrl.CommitTransfer(ctx, r, "x")
			errutil.AssertErrorCode(t, err, access.CodeWrongRoleKind)

			_, err = ctrl.ApplyTransfer(ctx, r)
			errutil.AssertErrorCode(t, err, access.CodeWrongRoleKind)

			errutil.AssertErrorCode(t, ctrl.RevertTransfer(ctx, r), access.CodeWrongRoleKind)

			deadline, err := ctrl.TransferDeadline(ctx, r)
			require.NoError(t, err)
			assert.Zero(t, deadline)
		})
	}
}

func TestRevertTransfer(t *testing.T) {
	ctx := context.Background()
	f := accesstest.WithAdmin(t, "root")

	_, err := f.Controller.CommitTransfer(ctx, access.Admin, "heir")
	require.NoError(t, err)
	f.Clock.Advance(access.TransferDelay)

	require.NoError(t, f.Controller.RevertTransfer(ctx, access.Admin))

	deadline, err := f.Controller.TransferDeadline(ctx, access.Admin)
	require.NoError(t, err)
	assert.Zero(t, deadline)

	admin, err := f.Controller.Holder(ctx, access.Admin)
	require.NoError(t, err)
	assert.Equal(t, access.Identity("root"), admin)

	_, err = f.Controller.ApplyTransfer(ctx, access.Admin)
	errutil.AssertErrorCode(t, err, access.CodeNoPendingTransfer)

	// Idle again, so a new commit is accepted.
	_, err = f.Controller.CommitTransfer(ctx, access.Admin, "other")
	require.NoError(t, err)
}

func TestRevertTransfer_IdleFails(t *testing.T) {
	f := accesstest.WithAdmin(t, "root")

	err := f.Controller.RevertTransfer(context.Background(), access.Admin)
	errutil.AssertErrorCode(t, err, access.CodeNoPendingTransfer)
	assert.Empty(t, f.Sink.Events())
}

func TestTransfer_Events(t *testing.T) {
	ctx := context.Background()
	f := accesstest.WithAdmin(t, "root")

	deadline, err := f.Controller.CommitTransfer(ctx, access.EmergencyAdmin, "ema")
	require.NoError(t, err)
	require.NoError(t, f.Controller.RevertTransfer(ctx, access.EmergencyAdmin))
	_, err = f.Controller.CommitTransfer(ctx, access.EmergencyAdmin, "ema")
	require.NoError(t, err)
	f.Clock.Advance(access.TransferDelay)
	_, err = f.Controller.ApplyTransfer(ctx, access.EmergencyAdmin)
	require.NoError(t, err)

	assert.Equal(t, []access.EventType{
		access.EventTransferCommitted,
		access.EventTransferReverted,
		access.EventTransferCommitted,
		access.EventRoleSet,
		access.EventTransferApplied,
	}, f.Sink.Types())
	assert.Equal(t, deadline, f.Sink.Events()[0].Deadline)
}

func TestTransferState_Pending(t *testing.T) {
	assert.False(t, access.TransferState{}.Pending())
	assert.True(t, access.TransferState{Target: "x", Deadline: 1}.Pending())
}
