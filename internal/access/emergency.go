// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access

import "context"

// setEmergencyMode writes the flag unconditionally. Callers authorize first.
func (s *state) setEmergencyMode(ctx context.Context, value bool) error {
	if err := s.save(ctx, emergencyModeKey, value); err != nil {
		return err
	}
	s.emit(Event{Type: EventEmergencyModeSet, Value: value})
	return nil
}

// emergencyMode returns the last written flag, false if never set.
func (s *state) emergencyMode(ctx context.Context) (bool, error) {
	var value bool
	if _, err := s.load(ctx, emergencyModeKey, &value); err != nil {
		return false, err
	}
	return value, nil
}
