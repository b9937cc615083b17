// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// CodeTTL is how long a verification code stays valid after it is issued.
const CodeTTL = 5 * time.Minute

// CodeGenerator produces a fresh opaque verification code.
type CodeGenerator func() (string, error)

// UUIDCodes generates random UUIDv4 verification codes.
func UUIDCodes() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", oops.Code("CODE_GENERATE_FAILED").Wrap(err)
	}
	return id.String(), nil
}

// newSlot issues a code that expires ttl after now.
func newSlot(gen CodeGenerator, now time.Time, ttl time.Duration) (CodeSlot, error) {
	code, err := gen()
	if err != nil {
		return CodeSlot{}, err
	}
	return CodeSlot{Code: code, ExpiresAt: now.Add(ttl)}, nil
}
