// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access

import (
	"github.com/samber/oops"

	"github.com/holomush/warden/pkg/errutil"
)

// Error codes. Every failure aborts the whole invocation.
const (
	CodeUnknownRole            = "UNKNOWN_ROLE"
	CodeWrongRoleKind          = "WRONG_ROLE_KIND"
	CodeRoleUnset              = "ROLE_UNSET"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeAlreadyInitialized     = "ALREADY_INITIALIZED"
	CodeTransferAlreadyPending = "TRANSFER_ALREADY_PENDING"
	CodeNoPendingTransfer      = "NO_PENDING_TRANSFER"
	CodeTransferNotReady       = "TRANSFER_NOT_READY"
	CodeInvalidIdentity        = "INVALID_IDENTITY"
	CodeCorruptState           = "CORRUPT_STATE"
)

// ErrorCode returns the access error code carried by err, or "".
func ErrorCode(err error) string {
	return errutil.Code(err)
}

func errWrongKind(r Role, op string) error {
	return oops.In("access").Code(CodeWrongRoleKind).
		With("role", r.String()).
		With("operation", op).
		With("multiplicity", r.Multiplicity().String()).
		With("transfer_delayed", r.TransferDelayed()).
		Errorf("%s not permitted for role %s", op, r)
}

func errUnknownRoleValue(r Role) error {
	return oops.In("access").Code(CodeUnknownRole).With("role", int(r)).Errorf("role is not in the catalog")
}
