// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accountd/internal/account"
	"github.com/holomush/accountd/pkg/errutil"
)

func TestAdmin_Create(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.admin.Create(ctx, account.CreateInput{
		Email: "ops@x.com", Password: "pw", Name: "Ops", Phone: "555-0100", Address: "1 Main St",
	})
	require.NoError(t, err)

	acct := f.repo.Get(id)
	require.NotNil(t, acct)
	assert.True(t, acct.IsActive)
	assert.Nil(t, acct.Activation)
	assert.Nil(t, acct.Reset)
	assert.Equal(t, "555-0100", acct.Phone)
	assert.Empty(t, f.notifier.Sent())

	_, err = f.gateway.Login(ctx, "ops@x.com", "pw")
	require.NoError(t, err, "admin-created accounts can log in immediately")

	_, err = f.admin.Create(ctx, account.CreateInput{Email: "ops@x.com", Password: "pw"})
	errutil.AssertErrorCode(t, err, account.CodeDuplicateEmail)
}

func TestAdmin_GetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.activate(t, "a@x.com", "pw1")
	f.activate(t, "b@x.com", "pw2")

	view, err := f.admin.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, view.ID)
	assert.Equal(t, "a@x.com", view.Email)

	require.NoError(t, f.admin.Update(ctx, id, account.UpdateInput{Name: ptr("Ann"), Phone: ptr("555")}))
	view, err = f.admin.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ann", view.Name)
	assert.Equal(t, "555", view.Phone)

	err = f.admin.Update(ctx, id, account.UpdateInput{Email: ptr("b@x.com")})
	errutil.AssertErrorCode(t, err, account.CodeDuplicateEmail)

	require.NoError(t, f.admin.Update(ctx, id, account.UpdateInput{Email: ptr("a@x.com")}), "unchanged email is not a duplicate")

	require.NoError(t, f.admin.Delete(ctx, id))
	_, err = f.admin.Get(ctx, id)
	errutil.AssertErrorCode(t, err, account.CodeAccountNotFound)

	err = f.admin.Delete(ctx, id)
	errutil.AssertErrorCode(t, err, account.CodeAccountNotFound)
}

func TestAdmin_InvalidID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.admin.Get(ctx, "bogus")
	errutil.AssertErrorCode(t, err, account.CodeInvalidID)
	err = f.admin.Update(ctx, "", account.UpdateInput{})
	errutil.AssertErrorCode(t, err, account.CodeInvalidID)
	err = f.admin.Delete(ctx, "bogus")
	errutil.AssertErrorCode(t, err, account.CodeInvalidID)
}

func TestAdmin_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := range 12 {
		_, err := f.admin.Create(ctx, account.CreateInput{
			Email:    fmt.Sprintf("user%02d@x.com", i),
			Password: "pw",
			Name:     fmt.Sprintf("User %02d", i),
		})
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}
	f.register(t, "pending@x.com", "pw", "Pending")

	t.Run("default paging", func(t *testing.T) {
		page, err := f.admin.List(ctx, account.Query{})
		require.NoError(t, err)
		assert.Len(t, page.Items, account.DefaultPageSize)
		assert.Equal(t, account.PageMeta{Current: 1, PageSize: 10, Pages: 2, Total: 13}, page.Meta)
	})

	t.Run("second page", func(t *testing.T) {
		page, err := f.admin.List(ctx, account.Query{Page: 2, PageSize: 10})
		require.NoError(t, err)
		assert.Len(t, page.Items, 3)
	})

	t.Run("filter and sort", func(t *testing.T) {
		page, err := f.admin.List(ctx, account.Query{
			Filters: []account.Filter{{Field: account.FieldIsActive, Op: account.OpEq, Value: "true"}},
			Sort:    []account.SortKey{{Field: account.FieldEmail, Desc: true}},
		})
		require.NoError(t, err)
		assert.Equal(t, 12, page.Meta.Total)
		assert.Equal(t, "user11@x.com", page.Items[0].Email)
	})

	t.Run("contains filter", func(t *testing.T) {
		page, err := f.admin.List(ctx, account.Query{
			Filters: []account.Filter{{Field: account.FieldName, Op: account.OpContains, Value: "pend"}},
		})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "pending@x.com", page.Items[0].Email)
		assert.False(t, page.Items[0].IsActive)
	})

	t.Run("invalid query is rejected", func(t *testing.T) {
		_, err := f.admin.List(ctx, account.Query{
			Filters: []account.Filter{{Field: "password_hash", Op: account.OpEq, Value: "x"}},
		})
		errutil.AssertErrorCode(t, err, account.CodeInvalidQuery)
	})
}
