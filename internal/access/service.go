// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// Service is the name-based, caller-gated surface used by the CLI and the
// HTTP API. Role names are parsed inside the same transaction as the
// authorization check and the mutation, so an unknown name or a failed check
// changes nothing.
type Service struct {
	ctrl *Controller
}

// NewService wraps ctrl.
func NewService(ctrl *Controller) *Service {
	return &Service{ctrl: ctrl}
}

// Controller returns the underlying facade.
func (s *Service) Controller() *Controller {
	return s.ctrl
}

// RoleStatus describes one catalog role and its current bindings.
type RoleStatus struct {
	Role            Role          `json:"role" yaml:"role"`
	Multiplicity    string        `json:"multiplicity" yaml:"multiplicity"`
	TransferDelayed bool          `json:"transfer_delayed" yaml:"transfer_delayed"`
	Holders         []Identity    `json:"holders" yaml:"holders"`
	Transfer        TransferState `json:"transfer" yaml:"transfer"`
}

func nameAttr(name string) attribute.KeyValue {
	return attribute.String("access.role", name)
}

// InitAdmin binds the first Admin. It is ungated and succeeds only once.
func (s *Service) InitAdmin(ctx context.Context, admin Identity) error {
	return s.ctrl.InitAdmin(ctx, admin)
}

// SetRole binds a single-holder role. Requires Admin.
func (s *Service) SetRole(ctx context.Context, caller Identity, name string, id Identity) error {
	return s.ctrl.update(ctx, "set_role", func(ctx context.Context, st *state) error {
		r, err := ParseRole(name)
		if err != nil {
			return err
		}
		if err := s.ctrl.check(ctx, st, caller, Admin); err != nil {
			return err
		}
		return st.bind(ctx, r, id)
	}, nameAttr(name))
}

// SetRoleHolders replaces the members of a multi-holder role and returns the
// stored, deduplicated set. Requires Admin.
func (s *Service) SetRoleHolders(ctx context.Context, caller Identity, name string, ids []Identity) ([]Identity, error) {
	var set []Identity
	err := s.ctrl.update(ctx, "set_role_holders", func(ctx context.Context, st *state) error {
		r, err := ParseRole(name)
		if err != nil {
			return err
		}
		if err := s.ctrl.check(ctx, st, caller, Admin); err != nil {
			return err
		}
		set, err = st.bindAll(ctx, r, ids)
		return err
	}, nameAttr(name))
	if err != nil {
		return nil, err
	}
	return set, nil
}

// Role returns the holder of a single-holder role.
func (s *Service) Role(ctx context.Context, name string) (Identity, error) {
	r, err := ParseRole(name)
	if err != nil {
		return "", err
	}
	return s.ctrl.Holder(ctx, r)
}

// RoleHolders returns the members of a multi-holder role.
func (s *Service) RoleHolders(ctx context.Context, name string) ([]Identity, error) {
	r, err := ParseRole(name)
	if err != nil {
		return nil, err
	}
	return s.ctrl.Holders(ctx, r)
}

// HasRole reports whether id passes a check for the named role.
func (s *Service) HasRole(ctx context.Context, id Identity, name string) (bool, error) {
	r, err := ParseRole(name)
	if err != nil {
		return false, err
	}
	return s.ctrl.HasRole(ctx, id, r)
}

// RequireRole gates a protected operation on the named role.
func (s *Service) RequireRole(ctx context.Context, caller Identity, name string) error {
	r, err := ParseRole(name)
	if err != nil {
		return err
	}
	return s.ctrl.RequireRole(ctx, caller, r)
}

// SetEmergencyMode writes the emergency flag. Requires EmergencyAdmin.
func (s *Service) SetEmergencyMode(ctx context.Context, caller Identity, value bool) error {
	return s.ctrl.update(ctx, "set_emergency_mode", func(ctx context.Context, st *state) error {
		if err := s.ctrl.check(ctx, st, caller, EmergencyAdmin); err != nil {
			return err
		}
		return st.setEmergencyMode(ctx, value)
	}, attribute.Bool("access.emergency_mode", value))
}

// EmergencyMode returns the emergency flag.
func (s *Service) EmergencyMode(ctx context.Context) (bool, error) {
	return s.ctrl.EmergencyMode(ctx)
}

// CommitTransfer starts a delayed transfer of the named role. Requires Admin.
func (s *Service) CommitTransfer(ctx context.Context, caller Identity, name string, target Identity) (uint64, error) {
	var deadline uint64
	err := s.ctrl.update(ctx, "commit_transfer", func(ctx context.Context, st *state) error {
		r, err := ParseRole(name)
		if err != nil {
			return err
		}
		if err := s.ctrl.check(ctx, st, caller, Admin); err != nil {
			return err
		}
		deadline, err = st.commitTransfer(ctx, r, target)
		return err
	}, nameAttr(name))
	return deadline, err
}

// ApplyTransfer completes a ready transfer of the named role. Requires Admin.
func (s *Service) ApplyTransfer(ctx context.Context, caller Identity, name string) (Identity, error) {
	var holder Identity
	err := s.ctrl.update(ctx, "apply_transfer", func(ctx context.Context, st *state) error {
		r, err := ParseRole(name)
		if err != nil {
			return err
		}
		if err := s.ctrl.check(ctx, st, caller, Admin); err != nil {
			return err
		}
		holder, err = st.applyTransfer(ctx, r)
		return err
	}, nameAttr(name))
	return holder, err
}

// RevertTransfer cancels a pending transfer of the named role. Requires Admin.
func (s *Service) RevertTransfer(ctx context.Context, caller Identity, name string) error {
	return s.ctrl.update(ctx, "revert_transfer", func(ctx context.Context, st *state) error {
		r, err := ParseRole(name)
		if err != nil {
			return err
		}
		if err := s.ctrl.check(ctx, st, caller, Admin); err != nil {
			return err
		}
		return st.revertTransfer(ctx, r)
	}, nameAttr(name))
}

// TransferDeadline returns the pending deadline of the named role, 0 if Idle.
func (s *Service) TransferDeadline(ctx context.Context, name string) (uint64, error) {
	r, err := ParseRole(name)
	if err != nil {
		return 0, err
	}
	return s.ctrl.TransferDeadline(ctx, r)
}

// Transfer returns the deadline and target of the named role, read together.
func (s *Service) Transfer(ctx context.Context, name string) (TransferState, error) {
	r, err := ParseRole(name)
	if err != nil {
		return TransferState{}, err
	}
	return s.ctrl.Transfer(ctx, r)
}

// FutureHolder returns the pending target of the named role.
func (s *Service) FutureHolder(ctx context.Context, name string) (Identity, bool, error) {
	r, err := ParseRole(name)
	if err != nil {
		return "", false, err
	}
	return s.ctrl.FutureHolder(ctx, r)
}

// Describe reports every catalog role with its bindings and transfer state,
// read in one transaction.
func (s *Service) Describe(ctx context.Context) ([]RoleStatus, error) {
	var out []RoleStatus
	err := s.ctrl.view(ctx, "describe", func(ctx context.Context, st *state) error {
		out = make([]RoleStatus, 0, len(Roles()))
		for _, r := range Roles() {
			status := RoleStatus{
				Role:            r,
				Multiplicity:    r.Multiplicity().String(),
				TransferDelayed: r.TransferDelayed(),
				Holders:         []Identity{},
			}
			if r.Multiplicity() == Multi {
				ids, err := st.holders(ctx, r)
				if err != nil {
					return err
				}
				status.Holders = ids
			} else {
				id, ok, err := st.holderOrNone(ctx, r)
				if err != nil {
					return err
				}
				if ok {
					status.Holders = []Identity{id}
				}
			}
			transfer, err := st.transfer(ctx, r)
			if err != nil {
				return err
			}
			status.Transfer = transfer
			out = append(out, status)
		}
		return nil
	})
	return out, err
}
