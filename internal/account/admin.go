// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Admin provides direct account management outside the self-service flows.
type Admin struct {
	settings
	repo   Repository
	hasher PasswordHasher
}

// NewAdmin creates an Admin. Returns an error if any collaborator is nil.
func NewAdmin(repo Repository, hasher PasswordHasher, opts ...Option) (*Admin, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}
	if hasher == nil {
		return nil, ErrNilHasher
	}
	return &Admin{settings: newSettings(opts), repo: repo, hasher: hasher}, nil
}

// CreateInput describes an account created by an administrator.
type CreateInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Address  string
}

// UpdateInput is a partial profile change. Nil fields are left unchanged.
type UpdateInput struct {
	Email   *string
	Name    *string
	Phone   *string
	Address *string
}

// Create persists an account that is active immediately and carries no codes.
func (a *Admin) Create(ctx context.Context, in CreateInput) (id ulid.ULID, err error) {
	ctx, finish := a.begin(ctx, "admin_create")
	defer finish(&err)

	exists, err := a.repo.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return ulid.ULID{}, storeError("check email", err)
	}
	if exists {
		return ulid.ULID{}, errDuplicateEmail(in.Email)
	}

	hash, err := a.hasher.Hash(in.Password)
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeHashingError).With("operation", "hash password").Wrap(err)
	}

	now := a.now()
	acct := &Account{
		ID:           NewID(now),
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Phone:        in.Phone,
		Address:      in.Address,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.repo.Create(ctx, acct); err != nil {
		return ulid.ULID{}, storeError("create account", err)
	}
	return acct.ID, nil
}

// List returns one page of accounts matching q.
func (a *Admin) List(ctx context.Context, q Query) (page Page, err error) {
	ctx, finish := a.begin(ctx, "admin_list")
	defer finish(&err)

	if err := q.Validate(); err != nil {
		return Page{}, err
	}
	q = q.Normalized()

	accounts, total, err := a.repo.List(ctx, q)
	if err != nil {
		return Page{}, storeError("list accounts", err)
	}

	items := make([]View, 0, len(accounts))
	for _, acct := range accounts {
		items = append(items, acct.View())
	}
	return Page{Items: items, Meta: newPageMeta(q, total)}, nil
}

// Get returns the account with the given id.
func (a *Admin) Get(ctx context.Context, id string) (view View, err error) {
	ctx, finish := a.begin(ctx, "admin_get")
	defer finish(&err)

	accountID, err := ParseID(id)
	if err != nil {
		return View{}, err
	}
	acct, err := a.repo.FindByID(ctx, accountID)
	if err != nil {
		return View{}, notFoundOrStore(accountID, "find account by id", err)
	}
	return acct.View(), nil
}

// Update applies a partial profile change.
func (a *Admin) Update(ctx context.Context, id string, in UpdateInput) (err error) {
	ctx, finish := a.begin(ctx, "admin_update")
	defer finish(&err)

	accountID, err := ParseID(id)
	if err != nil {
		return err
	}

	acct, err := a.repo.FindByID(ctx, accountID)
	if err != nil {
		return notFoundOrStore(accountID, "find account by id", err)
	}

	if in.Email != nil && *in.Email != acct.Email {
		exists, err := a.repo.ExistsByEmail(ctx, *in.Email)
		if err != nil {
			return storeError("check email", err)
		}
		if exists {
			return errDuplicateEmail(*in.Email)
		}
	}

	patch := Patch{Email: in.Email, Name: in.Name, Phone: in.Phone, Address: in.Address}
	if patch.IsEmpty() {
		return nil
	}
	if err := a.repo.UpdateFields(ctx, accountID, patch); err != nil {
		return notFoundOrStore(accountID, "update account", err)
	}
	return nil
}

// Delete removes the account.
func (a *Admin) Delete(ctx context.Context, id string) (err error) {
	ctx, finish := a.begin(ctx, "admin_delete")
	defer finish(&err)

	accountID, err := ParseID(id)
	if err != nil {
		return err
	}
	if err := a.repo.Delete(ctx, accountID); err != nil {
		return notFoundOrStore(accountID, "delete account", err)
	}
	return nil
}

func notFoundOrStore(id ulid.ULID, operation string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return oops.Code(CodeAccountNotFound).With("account_id", id.String()).Errorf("account not found")
	}
	return storeError(operation, err)
}
