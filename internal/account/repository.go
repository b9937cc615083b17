// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"context"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/accountd/internal/notify"
	"github.com/holomush/accountd/internal/token"
)

// Repository is the credential store. Each method is individually atomic;
// callers never rely on multi-record transactions.
type Repository interface {
	// FindByEmail returns the account with the given email, or an error wrapping ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// FindByID returns the account with the given id, or an error wrapping ErrNotFound.
	FindByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// ExistsByEmail reports whether an account uses the email.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Create persists a new account. A duplicate email yields DUPLICATE_EMAIL.
	Create(ctx context.Context, acct *Account) error

	// UpdateFields applies patch to a single record.
	UpdateFields(ctx context.Context, id ulid.ULID, patch Patch) error

	// List returns the page of accounts selected by q and the total match count.
	List(ctx context.Context, q Query) ([]*Account, int, error)

	// Delete removes the account.
	Delete(ctx context.Context, id ulid.ULID) error
}

// Notifier delivers templated messages. Delivery is not observed by callers.
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) error
}

// TokenIssuer signs bearer tokens for authenticated accounts.
type TokenIssuer interface {
	Issue(ctx context.Context, claims token.Claims) (token.Token, error)
}

// Recorder counts operation outcomes.
type Recorder interface {
	RecordOperation(operation, result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordOperation(string, string) {}
