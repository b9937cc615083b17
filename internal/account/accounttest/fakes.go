// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package accounttest

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/account"
	"github.com/holomush/accountd/internal/notify"
	"github.com/holomush/accountd/internal/token"
)

const stubPrefix = "stub$"

// StubHasher is a cheap, deterministic account.PasswordHasher for tests.
// Hashes are the plaintext behind a fixed prefix.
type StubHasher struct {
	// HashErr, when set, is returned by Hash.
	HashErr error
	// Outdated makes NeedsUpgrade report true for every hash.
	Outdated bool
}

var _ account.PasswordHasher = (*StubHasher)(nil)

// Hash implements account.PasswordHasher.
func (h *StubHasher) Hash(password string) (string, error) {
	if h.HashErr != nil {
		return "", h.HashErr
	}
	return stubPrefix + password, nil
}

// Verify implements account.PasswordHasher.
func (h *StubHasher) Verify(password, hash string) (bool, error) {
	stored, ok := strings.CutPrefix(hash, stubPrefix)
	if !ok {
		return false, oops.Code(account.CodeHashingError).Errorf("not a stub hash")
	}
	return stored == password, nil
}

// NeedsUpgrade implements account.PasswordHasher.
func (h *StubHasher) NeedsUpgrade(string) bool {
	return h.Outdated
}

// RecordingNotifier captures sent messages. Err, when set, is returned by Send
// after the message is recorded.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	Err  error
}

// Send implements account.Notifier.
func (n *RecordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.Err
}

// Sent returns a copy of the recorded messages.
func (n *RecordingNotifier) Sent() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.sent...)
}

// Last returns the most recent message, or the zero Message.
func (n *RecordingNotifier) Last() notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return notify.Message{}
	}
	return n.sent[len(n.sent)-1]
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock starting at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StaticIssuer issues tokens of the form "token-<subject>".
type StaticIssuer struct {
	TTL time.Duration
	Now func() time.Time
	Err error
}

// Issue implements account.TokenIssuer.
func (i *StaticIssuer) Issue(_ context.Context, claims token.Claims) (token.Token, error) {
	if i.Err != nil {
		return token.Token{}, i.Err
	}
	now := time.Now()
	if i.Now != nil {
		now = i.Now()
	}
	return token.Token{Value: "token-" + claims.SubjectID, ExpiresAt: now.Add(i.TTL)}, nil
}

// SequentialCodes returns a generator yielding code-1, code-2, ...
func SequentialCodes() account.CodeGenerator {
	var mu sync.Mutex
	n := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "code-" + strconv.Itoa(n), nil
	}
}
