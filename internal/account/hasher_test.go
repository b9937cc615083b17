// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/accountd/internal/account"
	"github.com/holomush/accountd/pkg/errutil"
)

// cheapArgon2id keeps tests fast; production uses DefaultArgon2idParams.
var cheapArgon2id = account.Argon2idParams{Time: 1, MemoryKiB: 64, Threads: 1, SaltLength: 16, KeyLength: 32}

func newArgon2id(t *testing.T) *account.Argon2idHasher {
	t.Helper()
	h, err := account.NewArgon2idHasher(cheapArgon2id)
	require.NoError(t, err)
	return h
}

func TestArgon2idHasher_Hash(t *testing.T) {
	hasher := newArgon2id(t)

	t.Run("produces PHC formatted hash with configured params", func(t *testing.T) {
		hash, err := hasher.Hash("password123")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=64,t=1,p=1$"))
	})

	t.Run("same password produces different hashes (salt)", func(t *testing.T) {
		hash1, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		hash2, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("accepts empty password", func(t *testing.T) {
		hash, err := hasher.Hash("")
		require.NoError(t, err)
		ok, err := hasher.Verify("", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestArgon2idHasher_Verify(t *testing.T) {
	hasher := newArgon2id(t)
	hash, err := hasher.Hash("correctpassword")
	require.NoError(t, err)

	t.Run("correct password verifies", func(t *testing.T) {
		ok, err := hasher.Verify("correctpassword", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("incorrect password is a mismatch not an error", func(t *testing.T) {
		ok, err := hasher.Verify("wrongpassword", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	malformed := []struct {
		name string
		hash string
	}{
		{"not a hash", "not-a-valid-hash"},
		{"wrong algorithm", "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{"bad version", "$argon2id$vXX$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{"unknown version", "$argon2id$v=16$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{"bad params", "$argon2id$v=19$m=x,t=1,p=4$c2FsdA$aGFzaA"},
		{"threads overflow", "$argon2id$v=19$m=64,t=1,p=256$c2FsdA$aGFzaA"},
		{"bad salt encoding", "$argon2id$v=19$m=64,t=1,p=1$!!!$aGFzaA"},
		{"bad key encoding", "$argon2id$v=19$m=64,t=1,p=1$c2FsdA$!!!"},
		{"empty key", "$argon2id$v=19$m=64,t=1,p=1$c2FsdA$"},
	}
	for _, tt := range malformed {
		t.Run("malformed hash: "+tt.name, func(t *testing.T) {
			ok, err := hasher.Verify("password", tt.hash)
			require.Error(t, err)
			assert.False(t, ok)
			errutil.AssertErrorCode(t, err, account.CodeHashingError)
		})
	}
}

func TestArgon2idHasher_NeedsUpgrade(t *testing.T) {
	hasher := newArgon2id(t)
	current, err := hasher.Hash("pw")
	require.NoError(t, err)

	stronger, err := account.NewArgon2idHasher(account.Argon2idParams{Time: 2, MemoryKiB: 64, Threads: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)

	bcryptHasher, err := account.NewBcryptHasher(4)
	require.NoError(t, err)
	legacy, err := bcryptHasher.Hash("pw")
	require.NoError(t, err)

	assert.False(t, hasher.NeedsUpgrade(current))
	assert.True(t, stronger.NeedsUpgrade(current))
	assert.True(t, hasher.NeedsUpgrade(legacy))
	assert.True(t, hasher.NeedsUpgrade("garbage"))
}

func TestNewArgon2idHasher_Params(t *testing.T) {
	t.Run("zero params select defaults", func(t *testing.T) {
		hasher, err := account.NewArgon2idHasher(account.Argon2idParams{})
		require.NoError(t, err)
		defaults, err := account.NewArgon2idHasher(account.DefaultArgon2idParams())
		require.NoError(t, err)
		assert.Equal(t, defaults, hasher)
	})

	t.Run("partial params are rejected", func(t *testing.T) {
		_, err := account.NewArgon2idHasher(account.Argon2idParams{Time: 1})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, account.CodeHashingError)
	})
}

func TestBcryptHasher(t *testing.T) {
	hasher, err := account.NewBcryptHasher(4)
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		hash, err := hasher.Hash("secret")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$2a$04$"))

		ok, err := hasher.Verify("secret", hash)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = hasher.Verify("other", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("inputs beyond bcrypt limit are hashable", func(t *testing.T) {
		long := strings.Repeat("a", 100)
		hash, err := hasher.Hash(long)
		require.NoError(t, err)

		ok, err := hasher.Verify(long, hash)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = hasher.Verify(strings.Repeat("a", 99)+"b", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("verifies long passwords hashed by truncation", func(t *testing.T) {
		long := strings.Repeat("x", 72) + "-tail"
		legacy, err := bcrypt.GenerateFromPassword([]byte(long[:72]), bcrypt.MinCost)
		require.NoError(t, err)

		ok, err := hasher.Verify(long, string(legacy))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = hasher.Verify(strings.Repeat("y", 80), string(legacy))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("verifies argon2id hashes", func(t *testing.T) {
		hash, err := newArgon2id(t).Hash("secret")
		require.NoError(t, err)

		ok, err := hasher.Verify("secret", hash)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, hasher.NeedsUpgrade(hash))
	})

	t.Run("malformed bcrypt hash is an error", func(t *testing.T) {
		_, err := hasher.Verify("secret", "$2a$04$short")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, account.CodeHashingError)
	})

	t.Run("cost change needs upgrade", func(t *testing.T) {
		hash, err := hasher.Hash("secret")
		require.NoError(t, err)
		stronger, err := account.NewBcryptHasher(5)
		require.NoError(t, err)
		assert.False(t, hasher.NeedsUpgrade(hash))
		assert.True(t, stronger.NeedsUpgrade(hash))
	})

	t.Run("invalid cost is rejected", func(t *testing.T) {
		_, err := account.NewBcryptHasher(99)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, account.CodeHashingError)
	})
}

func TestNewHasher(t *testing.T) {
	tests := []struct {
		name    string
		cfg     account.HasherConfig
		want    any
		wantErr bool
	}{
		{"default is argon2id", account.HasherConfig{}, &account.Argon2idHasher{}, false},
		{"argon2id", account.HasherConfig{Algorithm: "argon2id", Argon2id: cheapArgon2id}, &account.Argon2idHasher{}, false},
		{"bcrypt", account.HasherConfig{Algorithm: "bcrypt", BcryptCost: 4}, &account.BcryptHasher{}, false},
		{"unknown", account.HasherConfig{Algorithm: "md5"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := account.NewHasher(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, account.CodeHashingError)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, h)
		})
	}
}
