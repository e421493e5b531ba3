// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access

import (
	"slices"

	"github.com/samber/oops"
)

// Identity is an opaque, already-authenticated principal supplied by the host.
// Access control never verifies signatures; it only checks role membership.
type Identity string

func (id Identity) validate() error {
	if id == "" {
		return oops.In("access").Code(CodeInvalidIdentity).Errorf("identity cannot be empty")
	}
	return nil
}

// identitySet deduplicates ids and sorts them so stored sets are canonical.
func identitySet(ids []Identity) ([]Identity, error) {
	out := make([]Identity, 0, len(ids))
	for _, id := range ids {
		if err := id.validate(); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
