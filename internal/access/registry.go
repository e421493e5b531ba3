// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access

import (
	"context"
	"slices"

	"github.com/samber/oops"
)

func (s *state) requireKind(r Role, want Multiplicity, op string) error {
	if !r.IsValid() {
		return errUnknownRoleValue(r)
	}
	if r.Multiplicity() != want {
		return errWrongKind(r, op)
	}
	return nil
}

// bind replaces the holder of a single-holder role. The previous holder loses
// the role in the same write.
func (s *state) bind(ctx context.Context, r Role, id Identity) error {
	if err := s.requireKind(r, Single, "bind"); err != nil {
		return err
	}
	if err := id.validate(); err != nil {
		return err
	}
	if err := s.save(ctx, roleKey(r), id); err != nil {
		return err
	}
	s.emit(Event{Type: EventRoleSet, Role: r, Identities: []Identity{id}})
	return nil
}

func (s *state) holderOrNone(ctx context.Context, r Role) (Identity, bool, error) {
	if err := s.requireKind(r, Single, "holder"); err != nil {
		return "", false, err
	}
	var id Identity
	ok, err := s.load(ctx, roleKey(r), &id)
	if err != nil || !ok {
		return "", false, err
	}
	return id, true, nil
}

func (s *state) holder(ctx context.Context, r Role) (Identity, error) {
	id, ok, err := s.holderOrNone(ctx, r)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", oops.In("access").Code(CodeRoleUnset).With("role", r.String()).Errorf("role %s has no holder", r)
	}
	return id, nil
}

// bindAll replaces the whole member set of a multi-holder role and returns
// the stored set. Duplicates collapse and an empty set clears the role.
func (s *state) bindAll(ctx context.Context, r Role, ids []Identity) ([]Identity, error) {
	if err := s.requireKind(r, Multi, "bindAll"); err != nil {
		return nil, err
	}
	set, err := identitySet(ids)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, roleKey(r), set); err != nil {
		return nil, err
	}
	s.emit(Event{Type: EventRoleHoldersSet, Role: r, Identities: set})
	return set, nil
}

func (s *state) holders(ctx context.Context, r Role) ([]Identity, error) {
	if err := s.requireKind(r, Multi, "holders"); err != nil {
		return nil, err
	}
	var set []Identity
	if _, err := s.load(ctx, roleKey(r), &set); err != nil {
		return nil, err
	}
	if set == nil {
		set = []Identity{}
	}
	return set, nil
}

// holds reports plain membership, without admin supremacy.
func (s *state) holds(ctx context.Context, id Identity, r Role) (bool, error) {
	if !r.IsValid() {
		return false, errUnknownRoleValue(r)
	}
	if id == "" {
		return false, nil
	}

	if r.Multiplicity() == Multi {
		set, err := s.holders(ctx, r)
		if err != nil {
			return false, err
		}
		return slices.Contains(set, id), nil
	}

	current, ok, err := s.holderOrNone(ctx, r)
	if err != nil {
		return false, err
	}
	return ok && current == id, nil
}

// hasRole is holds plus admin supremacy: the bound Admin passes every check.
// Checking Admin itself gets no second pass.
func (s *state) hasRole(ctx context.Context, id Identity, r Role) (bool, error) {
	if r != Admin {
		isAdmin, err := s.holds(ctx, id, Admin)
		if err != nil {
			return false, err
		}
		if isAdmin {
			return true, nil
		}
	}
	return s.holds(ctx, id, r)
}

// requireRole fails with UNAUTHORIZED unless hasRole holds. An empty caller
// holds nothing, so it is refused the same way.
func (s *state) requireRole(ctx context.Context, id Identity, r Role) error {
	ok, err := s.hasRole(ctx, id, r)
	if err != nil {
		return err
	}
	if !ok {
		return oops.In("access").Code(CodeUnauthorized).
			With("identity", string(id)).
			With("role", r.String()).
			Errorf("identity lacks role %s", r)
	}
	return nil
}

func (s *state) initAdmin(ctx context.Context, id Identity) error {
	if err := id.validate(); err != nil {
		return err
	}
	current, ok, err := s.holderOrNone(ctx, Admin)
	if err != nil {
		return err
	}
	if ok {
		return oops.In("access").Code(CodeAlreadyInitialized).
			With("admin", string(current)).
			Errorf("admin already initialized")
	}
	if err := s.bind(ctx, Admin, id); err != nil {
		return err
	}
	s.emit(Event{Type: EventAdminInitialized, Role: Admin, Identities: []Identity{id}})
	return nil
}
