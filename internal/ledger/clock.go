// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package ledger provides the host-supplied time source used by delayed
// ownership transfers.
//
// Timestamps are unix seconds. A zero timestamp is reserved as "unset" by
// callers, so clocks never report zero once running.
package ledger

import (
	"sync"
	"time"
)

// Clock reports the current ledger time in unix seconds.
// Implementations must be monotonically non-decreasing.
type Clock interface {
	Now() uint64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current unix time in seconds.
func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix()) //nolint:gosec // unix time is positive
}

// ManualClock is a Clock advanced explicitly by the caller.
type ManualClock struct {
	mu  sync.Mutex
	now uint64
}

// NewManualClock returns a ManualClock starting at now.
func NewManualClock(now uint64) *ManualClock {
	return &ManualClock{now: now}
}

// Now returns the current manual time.
func (c *ManualClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to now. Moving backwards is ignored.
func (c *ManualClock) Set(now uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now > c.now {
		c.now = now
	}
}

// Advance moves the clock forward by d seconds and returns the new time.
func (c *ManualClock) Advance(d uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}
