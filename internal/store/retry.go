// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Retry limits for transactions that lose an optimistic or serializable race.
const (
	conflictRetries     = 4
	conflictBaseBackoff = 20 * time.Millisecond
	conflictMaxBackoff  = 500 * time.Millisecond
)

// errConflict marks an attempt that lost a concurrency race and may be rerun.
var errConflict = errors.New("transaction conflict")

// Conflict wraps err to signal that the transaction attempt may be retried.
func Conflict(err error) error {
	return errors.Join(errConflict, err)
}

// RetryConflicts runs attempt until it succeeds, fails with an error not
// produced by Conflict, or the retry budget is exhausted.
func RetryConflicts(ctx context.Context, attempt func(ctx context.Context) error) error {
	backoff := retry.WithCappedDuration(conflictMaxBackoff,
		retry.WithMaxRetries(conflictRetries, retry.NewExponential(conflictBaseBackoff)))

	var last error
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := attempt(ctx)
		if err != nil && errors.Is(err, errConflict) {
			last = err
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && errors.Is(err, errConflict) {
		return oops.In("store").Code(CodeConflict).
			With("attempts", conflictRetries+1).
			Wrapf(last, "transaction kept conflicting")
	}
	return err
}
