// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accountd/internal/account"
	"github.com/holomush/accountd/internal/account/accounttest"
	"github.com/holomush/accountd/internal/notify"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	repo      *accounttest.MemoryRepository
	hasher    *accounttest.StubHasher
	notifier  *accounttest.RecordingNotifier
	clock     *accounttest.Clock
	lifecycle *account.Lifecycle
	gateway   *account.Gateway
	admin     *account.Admin
}

func newFixture(t *testing.T, opts ...account.Option) *fixture {
	t.Helper()
	f := &fixture{
		repo:     accounttest.NewMemoryRepository(),
		hasher:   &accounttest.StubHasher{},
		notifier: &accounttest.RecordingNotifier{},
		clock:    accounttest.NewClock(epoch),
	}
	opts = append([]account.Option{
		account.WithClock(f.clock.Now),
		account.WithCodeGenerator(accounttest.SequentialCodes()),
	}, opts...)

	var err error
	f.lifecycle, err = account.NewLifecycle(f.repo, f.hasher, f.notifier, opts...)
	require.NoError(t, err)
	f.gateway, err = account.NewGateway(f.repo, f.hasher, &accounttest.StaticIssuer{TTL: time.Hour, Now: f.clock.Now}, opts...)
	require.NoError(t, err)
	f.admin, err = account.NewAdmin(f.repo, f.hasher, opts...)
	require.NoError(t, err)
	return f
}

// register creates a pending account and returns its id and activation code.
func (f *fixture) register(t *testing.T, email, password, name string) (string, string) {
	t.Helper()
	id, err := f.lifecycle.Register(context.Background(), email, password, name)
	require.NoError(t, err)
	return id.String(), f.notifier.Last().Data.Code
}

// activate registers and activates an account.
func (f *fixture) activate(t *testing.T, email, password string) string {
	t.Helper()
	id, code := f.register(t, email, password, "")
	require.NoError(t, f.lifecycle.CheckCode(context.Background(), id, code))
	return id
}

func (f *fixture) account(t *testing.T, id string) *account.Account {
	t.Helper()
	parsed, err := account.ParseID(id)
	require.NoError(t, err)
	acct := f.repo.Get(parsed)
	require.NotNil(t, acct)
	return acct
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, msg notify.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordOperation(operation, result string) {
	m.Called(operation, result)
}
