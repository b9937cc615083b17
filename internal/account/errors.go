// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"errors"

	"github.com/samber/oops"

	"github.com/holomush/accountd/pkg/errutil"
)

// ErrNotFound is returned by repositories when a requested account does not exist.
var ErrNotFound = errors.New("not found")

// Error codes returned by the account services. Callers match on these via
// oops.AsOops(err).Code().
const (
	CodeDuplicateEmail     = "DUPLICATE_EMAIL"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInactiveAccount    = "INACTIVE_ACCOUNT"
	CodeInvalidCode        = "INVALID_CODE"
	CodeCodeExpired        = "CODE_EXPIRED"
	CodeAlreadyActive      = "ALREADY_ACTIVE"
	CodeEmailNotFound      = "EMAIL_NOT_FOUND"
	CodePasswordMismatch   = "PASSWORD_MISMATCH"
	CodeHashingError       = "HASHING_ERROR"

	CodeAccountNotFound  = "ACCOUNT_NOT_FOUND"
	CodeInvalidID        = "INVALID_ID"
	CodeInvalidQuery     = "INVALID_QUERY"
	CodeStoreFailed      = "STORE_QUERY_FAILED"
	CodeTokenIssueFailed = "TOKEN_ISSUE_FAILED"
)

// ErrorCode returns the oops code carried by err, or "" if it has none.
func ErrorCode(err error) string {
	return errutil.Code(err)
}

// HasCode reports whether err carries the given oops code.
func HasCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

func errDuplicateEmail(email string) error {
	return oops.Code(CodeDuplicateEmail).With("email", email).Errorf("email already registered")
}

func errInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
}

func errInvalidCode() error {
	return oops.Code(CodeInvalidCode).Errorf("code is not valid")
}

func errCodeExpired() error {
	return oops.Code(CodeCodeExpired).Errorf("code is expired")
}

func errEmailNotFound(email string) error {
	return oops.Code(CodeEmailNotFound).With("email", email).Errorf("email not found")
}

func storeError(operation string, err error) error {
	return oops.Code(CodeStoreFailed).With("operation", operation).Wrap(err)
}
