// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/holomush/warden/internal/access"
)

type nestedContextKey struct{}

func TestCallerFrom(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		expected access.Identity
		ok       bool
	}{
		{
			name: "regular context has no caller",
			ctx:  context.Background(),
		},
		{
			name:     "caller context returns caller",
			ctx:      access.WithCaller(context.Background(), "alice"),
			expected: "alice",
			ok:       true,
		},
		{
			name: "nested caller context returns caller",
			ctx: context.WithValue(
				access.WithCaller(context.Background(), "alice"),
				nestedContextKey{}, "val",
			),
			expected: "alice",
			ok:       true,
		},
		{
			name: "empty caller is treated as absent",
			ctx:  access.WithCaller(context.Background(), ""),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := access.CallerFrom(tt.ctx)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}
