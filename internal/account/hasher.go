// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Supported hashing algorithms.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// DefaultBcryptCost matches the cost used by earlier deployments.
const DefaultBcryptCost = 10

// bcryptMaxInput is the longest input bcrypt accepts.
const bcryptMaxInput = 72

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted hash of the password. Any string is accepted.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on a malformed hash.
	Verify(password, hash string) (bool, error)

	// NeedsUpgrade returns true if the hash was produced with different parameters
	// or a different algorithm than the hasher currently uses.
	NeedsUpgrade(hash string) bool
}

// Argon2idParams are the cost parameters for argon2id.
type Argon2idParams struct {
	Time       uint32 `koanf:"time" json:"time,omitempty"`
	MemoryKiB  uint32 `koanf:"memory_kib" json:"memory_kib,omitempty"`
	Threads    uint8  `koanf:"threads" json:"threads,omitempty"`
	SaltLength uint32 `koanf:"salt_length" json:"salt_length,omitempty"`
	KeyLength  uint32 `koanf:"key_length" json:"key_length,omitempty"`
}

// DefaultArgon2idParams returns the OWASP-recommended argon2id parameters.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:       1,
		MemoryKiB:  64 * 1024,
		Threads:    4,
		SaltLength: 16,
		KeyLength:  32,
	}
}

// Validate checks that every parameter is usable.
func (p Argon2idParams) Validate() error {
	if p.Time == 0 || p.MemoryKiB == 0 || p.Threads == 0 || p.SaltLength == 0 || p.KeyLength == 0 {
		return oops.Code(CodeHashingError).
			With("params", fmt.Sprintf("%+v", p)).
			Errorf("argon2id parameters must all be positive")
	}
	return nil
}

// HasherConfig selects and parameterizes a PasswordHasher.
type HasherConfig struct {
	Algorithm  string         `koanf:"algorithm" json:"algorithm,omitempty" jsonschema:"enum=argon2id,enum=bcrypt"`
	Argon2id   Argon2idParams `koanf:"argon2id" json:"argon2id,omitempty"`
	BcryptCost int            `koanf:"bcrypt_cost" json:"bcrypt_cost,omitempty" jsonschema:"minimum=4,maximum=31"`
}

// NewHasher builds the hasher described by cfg.
func NewHasher(cfg HasherConfig) (PasswordHasher, error) {
	switch cfg.Algorithm {
	case "", AlgorithmArgon2id:
		return NewArgon2idHasher(cfg.Argon2id)
	case AlgorithmBcrypt:
		return NewBcryptHasher(cfg.BcryptCost)
	default:
		return nil, oops.Code(CodeHashingError).
			With("algorithm", cfg.Algorithm).
			Errorf("unsupported hash algorithm")
	}
}

// Argon2idHasher implements PasswordHasher using argon2id. It also verifies
// bcrypt hashes so stored credentials can be upgraded on login.
type Argon2idHasher struct {
	params Argon2idParams
	rand   io.Reader
}

// NewArgon2idHasher creates an Argon2idHasher. Zero-valued params select the defaults.
func NewArgon2idHasher(params Argon2idParams) (*Argon2idHasher, error) {
	if params == (Argon2idParams{}) {
		params = DefaultArgon2idParams()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2idHasher{params: params, rand: rand.Reader}, nil
}

// Hash produces an argon2id hash of the password in PHC string format.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(h.rand, salt); err != nil {
		return "", oops.Code(CodeHashingError).With("operation", "generate salt").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, h.params.KeyLength)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches an argon2id or bcrypt hash.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	if isBcryptHash(encodedHash) {
		return verifyBcrypt(password, encodedHash)
	}
	return verifyArgon2id(password, encodedHash)
}

// NeedsUpgrade returns true if the hash is not argon2id or uses other parameters.
func (h *Argon2idHasher) NeedsUpgrade(encodedHash string) bool {
	params, err := parseArgon2idParams(encodedHash)
	if err != nil {
		return true
	}
	return params.Time != h.params.Time ||
		params.MemoryKiB != h.params.MemoryKiB ||
		params.Threads != h.params.Threads
}

// BcryptHasher implements PasswordHasher using bcrypt. It also verifies
// argon2id hashes so a deployment can switch algorithms in either direction.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. A zero cost selects DefaultBcryptCost.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, oops.Code(CodeHashingError).
			With("cost", cost).
			Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Hash produces a bcrypt hash of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(bcryptInput(password), h.cost)
	if err != nil {
		return "", oops.Code(CodeHashingError).With("operation", "bcrypt hash").Wrap(err)
	}
	return string(hash), nil
}

// Verify checks if the password matches a bcrypt or argon2id hash.
func (h *BcryptHasher) Verify(password, encodedHash string) (bool, error) {
	if isBcryptHash(encodedHash) {
		return verifyBcrypt(password, encodedHash)
	}
	return verifyArgon2id(password, encodedHash)
}

// NeedsUpgrade returns true if the hash is not bcrypt or uses another cost.
func (h *BcryptHasher) NeedsUpgrade(encodedHash string) bool {
	if !isBcryptHash(encodedHash) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(encodedHash))
	return err != nil || cost != h.cost
}

func isBcryptHash(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}

// bcryptInput reduces inputs bcrypt would reject to a fixed-length digest.
func bcryptInput(password string) []byte {
	if len(password) <= bcryptMaxInput {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.RawStdEncoding.EncodeToString(sum[:]))
}

func verifyBcrypt(password, encodedHash string) (bool, error) {
	ok, err := compareBcrypt(encodedHash, bcryptInput(password))
	if ok || err != nil || len(password) <= bcryptMaxInput {
		return ok, err
	}
	// Hashes imported from other systems were computed on the first 72 bytes.
	return compareBcrypt(encodedHash, []byte(password[:bcryptMaxInput]))
}

func compareBcrypt(encodedHash string, input []byte) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), input)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code(CodeHashingError).With("reason", "malformed bcrypt hash").Wrap(err)
	}
}

func parseArgon2idParams(encodedHash string) (Argon2idParams, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return Argon2idParams{}, oops.Code(CodeHashingError).Errorf("invalid hash format")
	}
	if parts[1] != AlgorithmArgon2id {
		return Argon2idParams{}, oops.Code(CodeHashingError).Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Argon2idParams{}, oops.Code(CodeHashingError).Wrap(err)
	}
	if version != argon2.Version {
		return Argon2idParams{}, oops.Code(CodeHashingError).Errorf("unsupported argon2 version: %d", version)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return Argon2idParams{}, oops.Code(CodeHashingError).Wrap(err)
	}
	// threads must fit in uint8
	if threads == 0 || threads > 255 {
		return Argon2idParams{}, oops.Code(CodeHashingError).Errorf("threads value %d out of range", threads)
	}
	return Argon2idParams{Time: time, MemoryKiB: memory, Threads: uint8(threads)}, nil
}

func verifyArgon2id(password, encodedHash string) (bool, error) {
	params, err := parseArgon2idParams(encodedHash)
	if err != nil {
		return false, err
	}
	parts := strings.Split(encodedHash, "$")

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code(CodeHashingError).Wrap(err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, oops.Code(CodeHashingError).Wrap(err)
	}

	// Bound the key length so the uint32 conversion cannot overflow.
	keyLen := len(expected)
	if keyLen == 0 || keyLen > 1<<30 {
		return false, oops.Code(CodeHashingError).Errorf("invalid hash key length: %d", keyLen)
	}
	if params.Time == 0 || params.MemoryKiB == 0 {
		return false, oops.Code(CodeHashingError).Errorf("invalid argon2id cost parameters")
	}

	computed := argon2.IDKey([]byte(password), salt, params.Time, params.MemoryKiB, params.Threads, uint32(keyLen))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}
