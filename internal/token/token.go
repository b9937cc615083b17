// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package token issues and verifies HS256-signed bearer tokens.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// MinKeyLength is the shortest signing key accepted, in bytes.
const MinKeyLength = 32

// DefaultTTL is the token lifetime used by the default configuration.
const DefaultTTL = 24 * time.Hour

// Config configures token signing.
type Config struct {
	SigningKey string        `koanf:"signing_key" json:"signing_key,omitempty"`
	TTL        time.Duration `koanf:"ttl" json:"ttl,omitempty"`
	Issuer     string        `koanf:"issuer" json:"issuer,omitempty"`
}

// Validate checks the key length and TTL.
func (c Config) Validate() error {
	if len(c.SigningKey) < MinKeyLength {
		return oops.Code("TOKEN_CONFIG_INVALID").
			With("min_length", MinKeyLength).
			Errorf("signing key must be at least %d bytes", MinKeyLength)
	}
	if c.TTL <= 0 {
		return oops.Code("TOKEN_CONFIG_INVALID").With("ttl", c.TTL.String()).Errorf("ttl must be positive")
	}
	return nil
}

// Claims identifies the authenticated principal.
type Claims struct {
	SubjectID string
	Principal string
}

// Token is a signed bearer token.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// jwtClaims is the wire form: the principal travels as "username".
type jwtClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Option configures an Issuer or Verifier.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the time source. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Issuer signs tokens with a fixed key and lifetime.
type Issuer struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewIssuer creates an Issuer from cfg.
func NewIssuer(cfg Config, opts ...Option) (*Issuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Issuer{key: []byte(cfg.SigningKey), ttl: cfg.TTL, issuer: cfg.Issuer, now: o.now}, nil
}

// Issue signs claims into a token expiring TTL from now.
func (i *Issuer) Issue(_ context.Context, claims Claims) (Token, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Username: claims.Principal,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   claims.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := tok.SignedString(i.key)
	if err != nil {
		return Token{}, oops.Code("TOKEN_SIGN_FAILED").With("subject", claims.SubjectID).Wrap(err)
	}
	return Token{Value: signed, ExpiresAt: expiresAt}, nil
}

// Verifier checks tokens produced by an Issuer with the same key.
type Verifier struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewVerifier creates a Verifier from cfg.
func NewVerifier(cfg Config, opts ...Option) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Verifier{key: []byte(cfg.SigningKey), issuer: cfg.Issuer, now: o.now}, nil
}

// Parse verifies value and returns its claims.
func (v *Verifier) Parse(value string) (Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(value, &jwtClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.key, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, oops.Code("TOKEN_EXPIRED").Wrap(err)
		}
		return Claims{}, oops.Code("TOKEN_INVALID").Wrap(err)
	}

	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return Claims{}, oops.Code("TOKEN_INVALID").Errorf("token claims could not be decoded")
	}
	return Claims{SubjectID: claims.Subject, Principal: claims.Username}, nil
}
