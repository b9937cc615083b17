// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/accountd/internal/account"
	"github.com/holomush/accountd/internal/account/postgres"
)

var _ = Describe("Repository", func() {
	var (
		ctx  context.Context
		repo *postgres.Repository
		now  time.Time
	)

	newAccount := func(email string, active bool) *account.Account {
		return &account.Account{
			ID:           account.NewID(now),
			Email:        email,
			PasswordHash: "hash",
			IsActive:     active,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Now().UTC().Truncate(time.Microsecond)
		repo = postgres.NewRepository(testPool)
		_, err := testPool.Exec(ctx, `TRUNCATE accounts`)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Create and Find", func() {
		It("round-trips code slots", func() {
			acct := newAccount("ada@example.com", false)
			acct.Activation = &account.CodeSlot{Code: "c0de", ExpiresAt: now.Add(5 * time.Minute)}
			Expect(repo.Create(ctx, acct)).To(Succeed())

			got, err := repo.FindByEmail(ctx, "ada@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(acct.ID))
			Expect(got.Activation).NotTo(BeNil())
			Expect(got.Activation.Code).To(Equal("c0de"))
			Expect(got.Activation.ExpiresAt).To(BeTemporally("==", acct.Activation.ExpiresAt))
			Expect(got.Reset).To(BeNil())
		})

		It("treats email as case-sensitive", func() {
			Expect(repo.Create(ctx, newAccount("ada@example.com", true))).To(Succeed())

			_, err := repo.FindByEmail(ctx, "ADA@example.com")
			Expect(err).To(MatchError(account.ErrNotFound))
		})

		It("rejects duplicate emails under concurrency", func() {
			const attempts = 8
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				ok, dups int
			)
			for range attempts {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					err := repo.Create(ctx, newAccount("race@example.com", false))
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						ok++
					case account.HasCode(err, account.CodeDuplicateEmail):
						dups++
					default:
						Fail("unexpected error: " + err.Error())
					}
				}()
			}
			wg.Wait()
			Expect(ok).To(Equal(1))
			Expect(dups).To(Equal(attempts - 1))
		})
	})

	Describe("UpdateFields", func() {
		It("leaves unrelated slots alone", func() {
			acct := newAccount("ada@example.com", false)
			acct.Activation = &account.CodeSlot{Code: "act", ExpiresAt: now.Add(time.Minute)}
			Expect(repo.Create(ctx, acct)).To(Succeed())

			reset := account.CodeSlot{Code: "reset", ExpiresAt: now.Add(time.Minute)}
			Expect(repo.UpdateFields(ctx, acct.ID, account.Patch{Reset: account.SetSlot(reset)})).To(Succeed())

			got, err := repo.FindByID(ctx, acct.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Activation.Code).To(Equal("act"))
			Expect(got.Reset.Code).To(Equal("reset"))

			Expect(repo.UpdateFields(ctx, acct.ID, account.Patch{Reset: account.ClearSlot()})).To(Succeed())
			got, err = repo.FindByID(ctx, acct.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Reset).To(BeNil())
			Expect(got.Activation).NotTo(BeNil())
		})

		It("reports missing accounts", func() {
			active := true
			err := repo.UpdateFields(ctx, account.NewID(now), account.Patch{IsActive: &active})
			Expect(err).To(MatchError(account.ErrNotFound))
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			for i, email := range []string{"a@example.com", "b@example.com", "c@test.org"} {
				acct := newAccount(email, i%2 == 0)
				acct.CreatedAt = now.Add(time.Duration(i) * time.Second)
				Expect(repo.Create(ctx, acct)).To(Succeed())
			}
		})

		It("filters and counts", func() {
			q := account.Query{Filters: []account.Filter{{Field: account.FieldEmail, Op: account.OpContains, Value: "EXAMPLE"}}}
			accounts, total, err := repo.List(ctx, q)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(2))
			Expect(accounts).To(HaveLen(2))
		})

		It("pages in creation order by default", func() {
			accounts, total, err := repo.List(ctx, account.Query{Page: 2, PageSize: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(3))
			Expect(accounts).To(HaveLen(1))
			Expect(accounts[0].Email).To(Equal("c@test.org"))
		})

		It("sorts descending", func() {
			q := account.Query{Sort: []account.SortKey{{Field: account.FieldEmail, Desc: true}}}
			accounts, _, err := repo.List(ctx, q)
			Expect(err).NotTo(HaveOccurred())
			Expect(accounts[0].Email).To(Equal("c@test.org"))
		})
	})

	Describe("Delete", func() {
		It("removes the account", func() {
			acct := newAccount("ada@example.com", true)
			Expect(repo.Create(ctx, acct)).To(Succeed())
			Expect(repo.Delete(ctx, acct.ID)).To(Succeed())
			Expect(repo.Delete(ctx, acct.ID)).To(MatchError(account.ErrNotFound))
		})
	})
})
