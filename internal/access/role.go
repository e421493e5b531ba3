// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access

import "github.com/samber/oops"

// Role is one of the fixed privilege categories. The set is closed: every
// valid Role appears in the catalog below with immutable attributes.
type Role int

// Catalog roles.
const (
	Admin Role = iota + 1
	EmergencyAdmin
	RewardsAdmin
	OperationsAdmin
	PauseAdmin
	EmergencyPauseAdmin
)

// Multiplicity says how many identities may hold a role at once.
type Multiplicity int

const (
	// Single roles are held by at most one identity.
	Single Multiplicity = iota + 1
	// Multi roles are held by a set of identities.
	Multi
)

func (m Multiplicity) String() string {
	switch m {
	case Single:
		return "single"
	case Multi:
		return "multi"
	default:
		return "unknown"
	}
}

type roleSpec struct {
	name            string
	multiplicity    Multiplicity
	transferDelayed bool
}

// catalog is the single source of role attributes. Nothing about a role's
// kind is ever persisted.
var catalog = map[Role]roleSpec{
	Admin:               {name: "Admin", multiplicity: Single, transferDelayed: true},
	EmergencyAdmin:      {name: "EmergencyAdmin", multiplicity: Single, transferDelayed: true},
	RewardsAdmin:        {name: "RewardsAdmin", multiplicity: Single},
	OperationsAdmin:     {name: "OperationsAdmin", multiplicity: Single},
	PauseAdmin:          {name: "PauseAdmin", multiplicity: Single},
	EmergencyPauseAdmin: {name: "EmergencyPauseAdmin", multiplicity: Multi},
}

var byName = func() map[string]Role {
	m := make(map[string]Role, len(catalog))
	for r, spec := range catalog {
		m[spec.name] = r
	}
	return m
}()

// Roles returns every catalog role in declaration order.
func Roles() []Role {
	return []Role{Admin, EmergencyAdmin, RewardsAdmin, OperationsAdmin, PauseAdmin, EmergencyPauseAdmin}
}

// ParseRole returns the role with the given external name.
// Names are case-sensitive; anything outside the catalog fails with UNKNOWN_ROLE.
func ParseRole(name string) (Role, error) {
	r, ok := byName[name]
	if !ok {
		return 0, oops.In("access").Code(CodeUnknownRole).With("role", name).Errorf("unknown role %q", name)
	}
	return r, nil
}

// String returns the external name of r.
func (r Role) String() string {
	if spec, ok := catalog[r]; ok {
		return spec.name
	}
	return "Role(?)"
}

// IsValid reports whether r is a catalog role.
func (r Role) IsValid() bool {
	_, ok := catalog[r]
	return ok
}

// Multiplicity returns whether r is single- or multi-holder.
func (r Role) Multiplicity() Multiplicity {
	return catalog[r].multiplicity
}

// TransferDelayed reports whether r changes hands only through the delayed
// commit/apply protocol.
func (r Role) TransferDelayed() bool {
	return catalog[r].transferDelayed
}

// MarshalText encodes r by name.
func (r Role) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, oops.In("access").Code(CodeUnknownRole).With("role", int(r)).Errorf("unknown role")
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
