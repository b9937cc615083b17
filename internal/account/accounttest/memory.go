// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package accounttest provides in-memory fakes for account collaborators.
package accounttest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/account"
)

// MemoryRepository is a mutex-guarded in-memory account.Repository.
type MemoryRepository struct {
	mu       sync.Mutex
	accounts map[ulid.ULID]*account.Account
	now      func() time.Time
	failures map[string]error
	writes   int
}

var _ account.Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[ulid.ULID]*account.Account),
		now:      time.Now,
		failures: make(map[string]error),
	}
}

// FailOn makes every later call to the named method return err.
func (r *MemoryRepository) FailOn(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[method] = err
}

// Writes returns the number of successful mutating calls.
func (r *MemoryRepository) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

// Put stores a copy of acct, bypassing uniqueness checks.
func (r *MemoryRepository) Put(acct *account.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[acct.ID] = clone(acct)
}

// Get returns a copy of the stored account, or nil.
func (r *MemoryRepository) Get(id ulid.ULID) *account.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		return clone(a)
	}
	return nil
}

// FindByEmail implements account.Repository.
func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures["FindByEmail"]; err != nil {
		return nil, err
	}
	for _, a := range r.accounts {
		if a.Email == email {
			return clone(a), nil
		}
	}
	return nil, oops.Code(account.CodeAccountNotFound).With("email", email).Wrap(account.ErrNotFound)
}

// FindByID implements account.Repository.
func (r *MemoryRepository) FindByID(_ context.Context, id ulid.ULID) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures["FindByID"]; err != nil {
		return nil, err
	}
	a, ok := r.accounts[id]
	if !ok {
		return nil, oops.Code(account.CodeAccountNotFound).With("id", id.String()).Wrap(account.ErrNotFound)
	}
	return clone(a), nil
}

// ExistsByEmail implements account.Repository.
func (r *MemoryRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures["ExistsByEmail"]; err != nil {
		return false, err
	}
	return r.emailTaken(email, ulid.ULID{}), nil
}

// Create implements account.Repository.
func (r *MemoryRepository) Create(_ context.Context, acct *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures["Create"]; err != nil {
		return err
	}
	if r.emailTaken(acct.Email, ulid.ULID{}) {
		return oops.Code(account.CodeDuplicateEmail).With("email", acct.Email).Errorf("email already registered")
	}
	r.accounts[acct.ID] = clone(acct)
	r.writes++
	return nil
}

// UpdateFields implements account.Repository.
func (r *MemoryRepository) UpdateFields(_ context.Context, id ulid.ULID, patch account.Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures["UpdateFields"]; err != nil {
		return err
	}
	a, ok := r.accounts[id]
	if !ok {
		return oops.Code(account.CodeAccountNotFound).With("id", id.String()).Wrap(account.ErrNotFound)
	}
	if patch.Email != nil && r.emailTaken(*patch.Email, id) {
		return oops.Code(account.CodeDuplicateEmail).With("email", *patch.Email).Errorf("email already registered")
	}
	patch.Apply(a, r.now())
	r.writes++
	return nil
}

// Delete implements account.Repository.
func (r *MemoryRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures["Delete"]; err != nil {
		return err
	}
	if _, ok := r.accounts[id]; !ok {
		return oops.Code(account.CodeAccountNotFound).With("id", id.String()).Wrap(account.ErrNotFound)
	}
	delete(r.accounts, id)
	r.writes++
	return nil
}

// List implements account.Repository.
func (r *MemoryRepository) List(_ context.Context, q account.Query) ([]*account.Account, int, error) {
	q = q.Normalized()

	r.mu.Lock()
	if err := r.failures["List"]; err != nil {
		r.mu.Unlock()
		return nil, 0, err
	}
	matched := make([]*account.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		if matchesAll(a, q.Filters) {
			matched = append(matched, clone(a))
		}
	}
	r.mu.Unlock()

	sortAccounts(matched, q.Sort)

	total := len(matched)
	start := min(q.Offset(), total)
	end := min(start+q.PageSize, total)
	return matched[start:end], total, nil
}

func (r *MemoryRepository) emailTaken(email string, except ulid.ULID) bool {
	for id, a := range r.accounts {
		if a.Email == email && id != except {
			return true
		}
	}
	return false
}

func matchesAll(a *account.Account, filters []account.Filter) bool {
	for _, f := range filters {
		if !matches(a, f) {
			return false
		}
	}
	return true
}

func matches(a *account.Account, f account.Filter) bool {
	v, err := f.TypedValue()
	if err != nil {
		return false
	}
	switch f.Field {
	case account.FieldEmail, account.FieldName:
		got := a.Email
		if f.Field == account.FieldName {
			got = a.Name
		}
		want, _ := v.(string)
		switch f.Op {
		case account.OpEq:
			return got == want
		case account.OpNe:
			return got != want
		case account.OpContains:
			return strings.Contains(strings.ToLower(got), strings.ToLower(want))
		}
	case account.FieldIsActive:
		want, _ := v.(bool)
		if f.Op == account.OpNe {
			return a.IsActive != want
		}
		return a.IsActive == want
	case account.FieldCreatedAt:
		want, _ := v.(time.Time)
		switch f.Op {
		case account.OpEq:
			return a.CreatedAt.Equal(want)
		case account.OpNe:
			return !a.CreatedAt.Equal(want)
		case account.OpLt:
			return a.CreatedAt.Before(want)
		case account.OpGt:
			return a.CreatedAt.After(want)
		}
	}
	return false
}

func sortAccounts(accounts []*account.Account, keys []account.SortKey) {
	if len(keys) == 0 {
		keys = []account.SortKey{{Field: account.FieldCreatedAt}}
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		for _, k := range keys {
			c := compare(accounts[i], accounts[j], k.Field)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return accounts[i].ID.Compare(accounts[j].ID) < 0
	})
}

func compare(a, b *account.Account, field account.Field) int {
	switch field {
	case account.FieldEmail:
		return strings.Compare(a.Email, b.Email)
	case account.FieldName:
		return strings.Compare(a.Name, b.Name)
	case account.FieldIsActive:
		switch {
		case a.IsActive == b.IsActive:
			return 0
		case a.IsActive:
			return 1
		default:
			return -1
		}
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func clone(a *account.Account) *account.Account {
	c := *a
	if a.Activation != nil {
		slot := *a.Activation
		c.Activation = &slot
	}
	if a.Reset != nil {
		slot := *a.Reset
		c.Reset = &slot
	}
	return &c
}
