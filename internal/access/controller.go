// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// InitAdmin binds Admin for the first time. Any later call fails with
// ALREADY_INITIALIZED.
func (c *Controller) InitAdmin(ctx context.Context, admin Identity) error {
	return c.update(ctx, "init_admin", func(ctx context.Context, s *state) error {
		return s.initAdmin(ctx, admin)
	})
}

// Bind replaces the holder of a single-holder role.
func (c *Controller) Bind(ctx context.Context, r Role, id Identity) error {
	return c.update(ctx, "bind", func(ctx context.Context, s *state) error {
		return s.bind(ctx, r, id)
	}, roleAttr(r))
}

// BindAll replaces the member set of a multi-holder role.
func (c *Controller) BindAll(ctx context.Context, r Role, ids []Identity) error {
	return c.update(ctx, "bind_all", func(ctx context.Context, s *state) error {
		_, err := s.bindAll(ctx, r, ids)
		return err
	}, roleAttr(r))
}

// Holder returns the holder of a single-holder role, failing with ROLE_UNSET
// when nobody holds it.
func (c *Controller) Holder(ctx context.Context, r Role) (Identity, error) {
	var id Identity
	err := c.view(ctx, "holder", func(ctx context.Context, s *state) error {
		var err error
		id, err = s.holder(ctx, r)
		return err
	}, roleAttr(r))
	return id, err
}

// HolderOrNone is Holder without the ROLE_UNSET failure.
func (c *Controller) HolderOrNone(ctx context.Context, r Role) (Identity, bool, error) {
	var (
		id Identity
		ok bool
	)
	err := c.view(ctx, "holder_or_none", func(ctx context.Context, s *state) error {
		var err error
		id, ok, err = s.holderOrNone(ctx, r)
		return err
	}, roleAttr(r))
	return id, ok, err
}

// Holders returns the sorted member set of a multi-holder role.
func (c *Controller) Holders(ctx context.Context, r Role) ([]Identity, error) {
	var ids []Identity
	err := c.view(ctx, "holders", func(ctx context.Context, s *state) error {
		var err error
		ids, err = s.holders(ctx, r)
		return err
	}, roleAttr(r))
	return ids, err
}

// Holds reports whether id is bound to r. Admin gets no implicit pass here.
func (c *Controller) Holds(ctx context.Context, id Identity, r Role) (bool, error) {
	var ok bool
	err := c.view(ctx, "holds", func(ctx context.Context, s *state) error {
		var err error
		ok, err = s.holds(ctx, id, r)
		return err
	}, roleAttr(r))
	return ok, err
}

// HasRole reports whether id is the Admin or is bound to r.
func (c *Controller) HasRole(ctx context.Context, id Identity, r Role) (bool, error) {
	var ok bool
	err := c.view(ctx, "has_role", func(ctx context.Context, s *state) error {
		var err error
		ok, err = s.hasRole(ctx, id, r)
		return err
	}, roleAttr(r))
	return ok, err
}

// RequireRole fails with UNAUTHORIZED unless HasRole(id, r) holds.
func (c *Controller) RequireRole(ctx context.Context, id Identity, r Role) error {
	return c.view(ctx, "require_role", func(ctx context.Context, s *state) error {
		return c.check(ctx, s, id, r)
	}, roleAttr(r))
}

// check is requireRole with metrics and a debug log on denial.
func (c *Controller) check(ctx context.Context, s *state, id Identity, r Role) error {
	err := s.requireRole(ctx, id, r)
	if ErrorCode(err) == CodeUnauthorized {
		recordCheck(r, false)
		c.logger.DebugContext(ctx, "role check denied",
			"identity", string(id),
			"role", r.String(),
		)
		return err
	}
	if err == nil {
		recordCheck(r, true)
	}
	return err
}

// CommitTransfer starts a delayed transfer of r to target and returns its
// deadline.
func (c *Controller) CommitTransfer(ctx context.Context, r Role, target Identity) (uint64, error) {
	var deadline uint64
	err := c.update(ctx, "commit_transfer", func(ctx context.Context, s *state) error {
		var err error
		deadline, err = s.commitTransfer(ctx, r, target)
		return err
	}, roleAttr(r))
	return deadline, err
}

// ApplyTransfer completes a pending transfer whose deadline has passed and
// returns the new holder.
func (c *Controller) ApplyTransfer(ctx context.Context, r Role) (Identity, error) {
	var id Identity
	err := c.update(ctx, "apply_transfer", func(ctx context.Context, s *state) error {
		var err error
		id, err = s.applyTransfer(ctx, r)
		return err
	}, roleAttr(r))
	return id, err
}

// RevertTransfer cancels a pending transfer. It fails with
// NO_PENDING_TRANSFER when the role is Idle.
func (c *Controller) RevertTransfer(ctx context.Context, r Role) error {
	return c.update(ctx, "revert_transfer", func(ctx context.Context, s *state) error {
		return s.revertTransfer(ctx, r)
	}, roleAttr(r))
}

// TransferDeadline returns the pending transfer deadline of r, or 0 when Idle.
func (c *Controller) TransferDeadline(ctx context.Context, r Role) (uint64, error) {
	st, err := c.Transfer(ctx, r)
	return st.Deadline, err
}

// FutureHolder returns the pending transfer target of r. ok is false when Idle.
func (c *Controller) FutureHolder(ctx context.Context, r Role) (Identity, bool, error) {
	st, err := c.Transfer(ctx, r)
	if err != nil {
		return "", false, err
	}
	return st.Target, st.Pending(), nil
}

// Transfer returns the full transfer state of r.
func (c *Controller) Transfer(ctx context.Context, r Role) (TransferState, error) {
	var st TransferState
	err := c.view(ctx, "transfer", func(ctx context.Context, s *state) error {
		var err error
		st, err = s.transfer(ctx, r)
		return err
	}, roleAttr(r))
	return st, err
}

// SetEmergencyMode writes the emergency flag. The caller authorizes first.
func (c *Controller) SetEmergencyMode(ctx context.Context, value bool) error {
	return c.update(ctx, "set_emergency_mode", func(ctx context.Context, s *state) error {
		return s.setEmergencyMode(ctx, value)
	}, attribute.Bool("access.emergency_mode", value))
}

// EmergencyMode returns the emergency flag, false if never set.
func (c *Controller) EmergencyMode(ctx context.Context) (bool, error) {
	var value bool
	err := c.view(ctx, "emergency_mode", func(ctx context.Context, s *state) error {
		var err error
		value, err = s.emergencyMode(ctx)
		return err
	})
	return value, err
}
