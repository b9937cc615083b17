// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Account is a persisted identity with credentials and activation state.
type Account struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	Name         string
	Phone        string
	Address      string
	IsActive     bool
	Activation   *CodeSlot
	Reset        *CodeSlot
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// State is the lifecycle state of an account.
type State int

// Lifecycle states.
const (
	StatePendingActivation State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "pending_activation"
}

// State returns the account's lifecycle state.
func (a *Account) State() State {
	if a.IsActive {
		return StateActive
	}
	return StatePendingActivation
}

// DisplayName returns the name, falling back to the email when unset.
func (a *Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

// View returns the sanitized outward representation of the account.
func (a *Account) View() View {
	return View{
		ID:        a.ID.String(),
		Email:     a.Email,
		Name:      a.Name,
		Phone:     a.Phone,
		Address:   a.Address,
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
	}
}

// View is an account with credentials and codes stripped.
type View struct {
	ID        string    `json:"_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// CodeSlot holds a verification code and the instant it stops being valid.
// Code and ExpiresAt are always set together.
type CodeSlot struct {
	Code      string
	ExpiresAt time.Time
}

// ValidAt reports whether the slot's code is still live at now.
// Expiry is exclusive: a code is invalid at exactly ExpiresAt.
func (s *CodeSlot) ValidAt(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// Matches reports whether code equals the stored code.
func (s *CodeSlot) Matches(code string) bool {
	return s != nil && s.Code != "" && s.Code == code
}

// SlotUpdate is a tri-state slot change inside a Patch: nil leaves the slot
// alone, Clear removes it, otherwise Value replaces it.
type SlotUpdate struct {
	Value *CodeSlot
	Clear bool
}

// SetSlot returns an update that replaces the slot.
func SetSlot(slot CodeSlot) *SlotUpdate {
	return &SlotUpdate{Value: &slot}
}

// ClearSlot returns an update that removes the slot.
func ClearSlot() *SlotUpdate {
	return &SlotUpdate{Clear: true}
}

// Patch is a partial update applied to a single account record.
// Nil fields are left unchanged.
type Patch struct {
	Email        *string
	Name         *string
	Phone        *string
	Address      *string
	PasswordHash *string
	IsActive     *bool
	Activation   *SlotUpdate
	Reset        *SlotUpdate
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Email == nil && p.Name == nil && p.Phone == nil && p.Address == nil &&
		p.PasswordHash == nil && p.IsActive == nil && p.Activation == nil && p.Reset == nil
}

// Apply writes the patch onto a. Stores without native partial updates use it.
func (p Patch) Apply(a *Account, now time.Time) {
	if p.Email != nil {
		a.Email = *p.Email
	}
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Phone != nil {
		a.Phone = *p.Phone
	}
	if p.Address != nil {
		a.Address = *p.Address
	}
	if p.PasswordHash != nil {
		a.PasswordHash = *p.PasswordHash
	}
	if p.IsActive != nil {
		a.IsActive = *p.IsActive
	}
	a.Activation = p.Activation.apply(a.Activation)
	a.Reset = p.Reset.apply(a.Reset)
	a.UpdatedAt = now
}

func (u *SlotUpdate) apply(cur *CodeSlot) *CodeSlot {
	switch {
	case u == nil:
		return cur
	case u.Clear || u.Value == nil:
		return nil
	default:
		slot := *u.Value
		return &slot
	}
}
