// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/holomush/accountd/internal/account/accounttest"
	"github.com/holomush/accountd/internal/store"
)

// mockDatabase implements Database for testing.
type mockDatabase struct {
	pingErr error
	closed  atomic.Bool
}

func (m *mockDatabase) Ping(context.Context) error { return m.pingErr }

func (m *mockDatabase) Close() { m.closed.Store(true) }

// mockMigrator implements Migrator and records every call.
type mockMigrator struct {
	mu     sync.Mutex
	calls  []string
	steps  []int
	forced []int
	status store.Status
	err    error
}

func (m *mockMigrator) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.err
}

func (m *mockMigrator) Up() error   { return m.record("up") }
func (m *mockMigrator) Down() error { return m.record("down") }

func (m *mockMigrator) Steps(n int) error {
	m.mu.Lock()
	m.steps = append(m.steps, n)
	m.mu.Unlock()
	return m.record("steps")
}

func (m *mockMigrator) Force(v int) error {
	m.mu.Lock()
	m.forced = append(m.forced, v)
	m.mu.Unlock()
	return m.record("force")
}

func (m *mockMigrator) Status() (store.Status, error) {
	return m.status, m.record("status")
}

func (m *mockMigrator) Close() error { return m.record("close") }

func (m *mockMigrator) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// recordingTransport is a notify.Transport over a RecordingNotifier.
type recordingTransport struct {
	*accounttest.RecordingNotifier
	closed atomic.Bool
}

func (t *recordingTransport) Close() error {
	t.closed.Store(true)
	return nil
}

var errUnreachable = errors.New("connection refused")
