// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access

import "context"

type callerKey struct{}

// WithCaller returns a context carrying the authenticated caller identity.
func WithCaller(ctx context.Context, caller Identity) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller stored by WithCaller.
// ok is false when no caller was set or it is empty.
func CallerFrom(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(callerKey{}).(Identity)
	return v, ok && v != ""
}
