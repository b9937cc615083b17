// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/notify"
)

// Notification subjects.
const (
	SubjectActivation    = "Activate your account"
	SubjectPasswordReset = "Change password account"
)

// Lifecycle runs the account state machine: registration, activation and
// password reset. Each operation performs at most one mutating store write,
// after every check has passed.
type Lifecycle struct {
	settings
	repo     Repository
	hasher   PasswordHasher
	notifier Notifier
}

// NewLifecycle creates a Lifecycle. Returns an error if any collaborator is nil.
func NewLifecycle(repo Repository, hasher PasswordHasher, notifier Notifier, opts ...Option) (*Lifecycle, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}
	if hasher == nil {
		return nil, ErrNilHasher
	}
	if notifier == nil {
		return nil, ErrNilNotifier
	}
	return &Lifecycle{
		settings: newSettings(opts),
		repo:     repo,
		hasher:   hasher,
		notifier: notifier,
	}, nil
}

// ResetTicket identifies the account a reset code was issued for.
type ResetTicket struct {
	ID    ulid.ULID
	Email string
}

// Register creates a pending account and sends its activation code.
func (l *Lifecycle) Register(ctx context.Context, email, password, name string) (id ulid.ULID, err error) {
	ctx, finish := l.begin(ctx, "register")
	defer finish(&err)

	exists, err := l.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return ulid.ULID{}, storeError("check email", err)
	}
	if exists {
		return ulid.ULID{}, errDuplicateEmail(email)
	}

	hash, err := l.hasher.Hash(password)
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeHashingError).With("operation", "hash password").Wrap(err)
	}

	now := l.now()
	slot, err := newSlot(l.codes, now, l.codeTTL)
	if err != nil {
		return ulid.ULID{}, oops.With("operation", "generate activation code").Wrap(err)
	}

	acct := &Account{
		ID:           NewID(now),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		IsActive:     false,
		Activation:   &slot,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := l.repo.Create(ctx, acct); err != nil {
		return ulid.ULID{}, storeError("create account", err)
	}

	l.notify(ctx, acct, SubjectActivation, notify.TemplateActivation, slot.Code)
	return acct.ID, nil
}

// CheckCode activates the account when code matches its live activation code.
// A mismatch is reported before expiry. Repeating a successful check while the
// code is still live succeeds again.
func (l *Lifecycle) CheckCode(ctx context.Context, id, code string) (err error) {
	ctx, finish := l.begin(ctx, "check_code")
	defer finish(&err)

	accountID, err := ulid.Parse(id)
	if err != nil {
		return errInvalidCode()
	}

	acct, err := l.repo.FindByID(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return errInvalidCode()
	}
	if err != nil {
		return storeError("find account by id", err)
	}

	if !acct.Activation.Matches(code) {
		return errInvalidCode()
	}
	if !acct.Activation.ValidAt(l.now()) {
		return errCodeExpired()
	}

	active := true
	if err := l.repo.UpdateFields(ctx, acct.ID, Patch{IsActive: &active}); err != nil {
		return storeError("activate account", err)
	}
	return nil
}

// RetryActivate issues a fresh activation code for a pending account.
func (l *Lifecycle) RetryActivate(ctx context.Context, email string) (id ulid.ULID, err error) {
	ctx, finish := l.begin(ctx, "retry_activate")
	defer finish(&err)

	acct, err := l.findByEmail(ctx, email)
	if err != nil {
		return ulid.ULID{}, err
	}
	if acct.IsActive {
		return ulid.ULID{}, oops.Code(CodeAlreadyActive).With("email", email).Errorf("account already active")
	}

	slot, err := newSlot(l.codes, l.now(), l.codeTTL)
	if err != nil {
		return ulid.ULID{}, oops.With("operation", "generate activation code").Wrap(err)
	}
	if err := l.repo.UpdateFields(ctx, acct.ID, Patch{Activation: SetSlot(slot)}); err != nil {
		return ulid.ULID{}, storeError("refresh activation code", err)
	}

	l.notify(ctx, acct, SubjectActivation, notify.TemplateActivation, slot.Code)
	return acct.ID, nil
}

// RetryPassword issues a password reset code. It applies to pending and active
// accounts alike and leaves any activation code untouched.
func (l *Lifecycle) RetryPassword(ctx context.Context, email string) (ticket ResetTicket, err error) {
	ctx, finish := l.begin(ctx, "retry_password")
	defer finish(&err)

	acct, err := l.findByEmail(ctx, email)
	if err != nil {
		return ResetTicket{}, err
	}

	slot, err := newSlot(l.codes, l.now(), l.codeTTL)
	if err != nil {
		return ResetTicket{}, oops.With("operation", "generate reset code").Wrap(err)
	}
	if err := l.repo.UpdateFields(ctx, acct.ID, Patch{Reset: SetSlot(slot)}); err != nil {
		return ResetTicket{}, storeError("refresh reset code", err)
	}

	l.notify(ctx, acct, SubjectPasswordReset, notify.TemplatePasswordReset, slot.Code)
	return ResetTicket{ID: acct.ID, Email: acct.Email}, nil
}

// ChangePassword replaces the password when code matches the account's live
// reset code. The reset code is consumed on success.
func (l *Lifecycle) ChangePassword(ctx context.Context, email, code, password, confirm string) (id ulid.ULID, err error) {
	ctx, finish := l.begin(ctx, "change_password")
	defer finish(&err)

	if password != confirm {
		return ulid.ULID{}, oops.Code(CodePasswordMismatch).Errorf("password and confirm password do not match")
	}

	acct, err := l.findByEmail(ctx, email)
	if err != nil {
		return ulid.ULID{}, err
	}
	if !acct.Reset.Matches(code) {
		return ulid.ULID{}, errInvalidCode()
	}
	if !acct.Reset.ValidAt(l.now()) {
		return ulid.ULID{}, errCodeExpired()
	}

	hash, err := l.hasher.Hash(password)
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeHashingError).With("operation", "hash password").Wrap(err)
	}
	if err := l.repo.UpdateFields(ctx, acct.ID, Patch{PasswordHash: &hash, Reset: ClearSlot()}); err != nil {
		return ulid.ULID{}, storeError("store password", err)
	}
	return acct.ID, nil
}

func (l *Lifecycle) findByEmail(ctx context.Context, email string) (*Account, error) {
	acct, err := l.repo.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, errEmailNotFound(email)
	}
	if err != nil {
		return nil, storeError("find account by email", err)
	}
	return acct, nil
}

// notify dispatches a code message. Failures are logged and never returned.
func (l *Lifecycle) notify(ctx context.Context, acct *Account, subject, template, code string) {
	msg := notify.Message{
		To:       acct.Email,
		Subject:  subject,
		Template: template,
		Data:     notify.Data{Name: acct.DisplayName(), Code: code},
	}
	if err := l.notifier.Send(ctx, msg); err != nil {
		l.logger.WarnContext(ctx, "notification not sent",
			"account_id", acct.ID.String(),
			"template", template,
			"error", err)
	}
}
