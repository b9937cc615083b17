// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/token"
	"github.com/holomush/accountd/pkg/errutil"
)

// dummyPassword is hashed once and verified against when an email is unknown,
// so lookups for missing and existing accounts cost the same.
const dummyPassword = "accountd-timing-equalizer"

// Gateway validates credentials and issues bearer tokens.
type Gateway struct {
	settings
	repo   Repository
	hasher PasswordHasher
	issuer TokenIssuer

	dummyOnce sync.Once
	dummyHash string
}

// NewGateway creates a Gateway. Returns an error if any collaborator is nil.
func NewGateway(repo Repository, hasher PasswordHasher, issuer TokenIssuer, opts ...Option) (*Gateway, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}
	if hasher == nil {
		return nil, ErrNilHasher
	}
	if issuer == nil {
		return nil, ErrNilIssuer
	}
	return &Gateway{
		settings: newSettings(opts),
		repo:     repo,
		hasher:   hasher,
		issuer:   issuer,
	}, nil
}

// Principal is the sanitized identity returned after a successful login.
type Principal struct {
	ID    string `json:"_id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// LoginResult is an authenticated principal and its bearer token.
type LoginResult struct {
	Account Principal
	Token   token.Token
}

// ValidateCredentials checks email and password. Unknown emails and wrong
// passwords yield the same INVALID_CREDENTIALS error. Inactive accounts are
// rejected only after the password has been verified.
func (g *Gateway) ValidateCredentials(ctx context.Context, email, password string) (p Principal, err error) {
	ctx, finish := g.begin(ctx, "validate_credentials")
	defer finish(&err)

	acct, err := g.authenticate(ctx, email, password)
	if err != nil {
		return Principal{}, err
	}
	return Principal{ID: acct.ID.String(), Email: acct.Email, Name: acct.Name}, nil
}

// Login validates the credentials and issues a token for the account.
func (g *Gateway) Login(ctx context.Context, email, password string) (res LoginResult, err error) {
	ctx, finish := g.begin(ctx, "login")
	defer finish(&err)

	acct, err := g.authenticate(ctx, email, password)
	if err != nil {
		return LoginResult{}, err
	}

	tok, err := g.issuer.Issue(ctx, token.Claims{SubjectID: acct.ID.String(), Principal: acct.Email})
	if err != nil {
		return LoginResult{}, oops.Code(CodeTokenIssueFailed).With("account_id", acct.ID.String()).Wrap(err)
	}
	return LoginResult{
		Account: Principal{ID: acct.ID.String(), Email: acct.Email, Name: acct.Name},
		Token:   tok,
	}, nil
}

func (g *Gateway) authenticate(ctx context.Context, email, password string) (*Account, error) {
	acct, lookupErr := g.repo.FindByEmail(ctx, email)
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return nil, storeError("find account by email", lookupErr)
	}

	if acct == nil {
		// Always run a verify so missing accounts cost the same as wrong passwords.
		_, _ = g.hasher.Verify(password, g.dummy()) //nolint:errcheck // result is discarded
		return nil, errInvalidCredentials()
	}

	valid, err := g.hasher.Verify(password, acct.PasswordHash)
	if err != nil {
		return nil, oops.Code(CodeHashingError).
			With("account_id", acct.ID.String()).
			With("operation", "verify password").
			Wrap(err)
	}
	if !valid {
		return nil, errInvalidCredentials()
	}

	if !acct.IsActive {
		return nil, oops.Code(CodeInactiveAccount).With("email", email).Errorf("your account is inactive")
	}

	g.upgradeHash(ctx, acct, password)
	return acct, nil
}

// upgradeHash rehashes the password when the stored hash uses outdated
// parameters. Failures are logged only.
func (g *Gateway) upgradeHash(ctx context.Context, acct *Account, password string) {
	if !g.hasher.NeedsUpgrade(acct.PasswordHash) {
		return
	}
	hash, err := g.hasher.Hash(password)
	if err != nil {
		errutil.LogError(g.logger, "password rehash failed", err)
		return
	}
	if err := g.repo.UpdateFields(ctx, acct.ID, Patch{PasswordHash: &hash}); err != nil {
		errutil.LogError(g.logger, "password rehash not stored", err)
		return
	}
	acct.PasswordHash = hash
}

func (g *Gateway) dummy() string {
	g.dummyOnce.Do(func() {
		hash, err := g.hasher.Hash(dummyPassword)
		if err != nil {
			g.logger.Warn("dummy hash unavailable", "error", err)
		}
		g.dummyHash = hash
	})
	return g.dummyHash
}
