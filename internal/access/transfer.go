// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access

import (
	"context"

	"github.com/samber/oops"
)

// TransferDelay is the fixed wait, in seconds, between committing and applying
// a transfer of a transfer-delayed role (three days).
const TransferDelay uint64 = 3 * 24 * 60 * 60

// TransferState is the persisted state of a delayed transfer. A zero Deadline
// means Idle; otherwise the transfer to Target is Pending.
type TransferState struct {
	Target   Identity `json:"target,omitempty"`
	Deadline uint64   `json:"deadline"`
}

// Pending reports whether a transfer is in flight.
func (t TransferState) Pending() bool {
	return t.Deadline != 0
}

// transfer reads the transfer state of r. Roles outside the delayed protocol
// are always Idle.
func (s *state) transfer(ctx context.Context, r Role) (TransferState, error) {
	if !r.IsValid() {
		return TransferState{}, errUnknownRoleValue(r)
	}
	if !r.TransferDelayed() {
		return TransferState{}, nil
	}

	var st TransferState
	if _, err := s.load(ctx, transferDeadlineKey(r), &st.Deadline); err != nil {
		return TransferState{}, err
	}
	if !st.Pending() {
		return TransferState{}, nil
	}

	ok, err := s.load(ctx, transferFutureKey(r), &st.Target)
	if err != nil {
		return TransferState{}, err
	}
	if !ok || st.Target == "" {
		return TransferState{}, oops.In("access").Code(CodeCorruptState).
			With("role", r.String()).
			With("deadline", st.Deadline).
			Errorf("pending transfer has no target")
	}
	return st, nil
}

func (s *state) requireDelayed(r Role, op string) error {
	if !r.IsValid() {
		return errUnknownRoleValue(r)
	}
	if !r.TransferDelayed() {
		return errWrongKind(r, op)
	}
	return nil
}

// commitTransfer moves r from Idle to Pending. now is read exactly once.
func (s *state) commitTransfer(ctx context.Context, r Role, target Identity) (uint64, error) {
	if err := s.requireDelayed(r, "commitTransfer"); err != nil {
		return 0, err
	}
	if err := target.validate(); err != nil {
		return 0, err
	}

	current, err := s.transfer(ctx, r)
	if err != nil {
		return 0, err
	}
	if current.Pending() {
		return 0, oops.In("access").Code(CodeTransferAlreadyPending).
			With("role", r.String()).
			With("deadline", current.Deadline).
			Errorf("a transfer of %s is already pending", r)
	}

	deadline := s.now() + TransferDelay
	if err := s.save(ctx, transferDeadlineKey(r), deadline); err != nil {
		return 0, err
	}
	if err := s.save(ctx, transferFutureKey(r), target); err != nil {
		return 0, err
	}

	s.emit(Event{Type: EventTransferCommitted, Role: r, Identities: []Identity{target}, Deadline: deadline})
	return deadline, nil
}

// applyTransfer binds r to the pending target once the deadline has passed
// and returns r to Idle.
func (s *state) applyTransfer(ctx context.Context, r Role) (Identity, error) {
	if err := s.requireDelayed(r, "applyTransfer"); err != nil {
		return "", err
	}

	current, err := s.transfer(ctx, r)
	if err != nil {
		return "", err
	}
	if !current.Pending() {
		return "", errNoPending(r)
	}

	now := s.now()
	if now < current.Deadline {
		return "", oops.In("access").Code(CodeTransferNotReady).
			With("role", r.String()).
			With("now", now).
			With("deadline", current.Deadline).
			Errorf("transfer of %s not ready until %d", r, current.Deadline)
	}

	if err := s.bind(ctx, r, current.Target); err != nil {
		return "", err
	}
	if err := s.clearTransfer(ctx, r); err != nil {
		return "", err
	}

	s.emit(Event{Type: EventTransferApplied, Role: r, Identities: []Identity{current.Target}, Deadline: current.Deadline})
	return current.Target, nil
}

// revertTransfer cancels a pending transfer without touching the binding.
// Reverting an Idle role fails rather than silently succeeding.
func (s *state) revertTransfer(ctx context.Context, r Role) error {
	if err := s.requireDelayed(r, "revertTransfer"); err != nil {
		return err
	}

	current, err := s.transfer(ctx, r)
	if err != nil {
		return err
	}
	if !current.Pending() {
		return errNoPending(r)
	}

	if err := s.clearTransfer(ctx, r); err != nil {
		return err
	}

	s.emit(Event{Type: EventTransferReverted, Role: r, Identities: []Identity{current.Target}, Deadline: current.Deadline})
	return nil
}

func (s *state) clearTransfer(ctx context.Context, r Role) error {
	if err := s.remove(ctx, transferDeadlineKey(r)); err != nil {
		return err
	}
	return s.remove(ctx, transferFutureKey(r))
}

func errNoPending(r Role) error {
	return oops.In("access").Code(CodeNoPendingTransfer).
		With("role", r.String()).
		Errorf("no pending transfer for %s", r)
}
