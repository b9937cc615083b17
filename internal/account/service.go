// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("accountd/account")

// Construction errors.
var (
	ErrNilRepository = oops.Code("ACCOUNT_NIL_REPOSITORY").Errorf("repository must not be nil")
	ErrNilHasher     = oops.Code("ACCOUNT_NIL_HASHER").Errorf("password hasher must not be nil")
	ErrNilNotifier   = oops.Code("ACCOUNT_NIL_NOTIFIER").Errorf("notifier must not be nil")
	ErrNilIssuer     = oops.Code("ACCOUNT_NIL_ISSUER").Errorf("token issuer must not be nil")
)

// settings holds the collaborators shared by the account services.
type settings struct {
	now      func() time.Time
	codes    CodeGenerator
	codeTTL  time.Duration
	logger   *slog.Logger
	recorder Recorder
}

func newSettings(opts []Option) settings {
	s := settings{
		now:      time.Now,
		codes:    UUIDCodes,
		codeTTL:  CodeTTL,
		logger:   slog.Default(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures an account service during construction.
type Option func(*settings)

// WithClock sets the time source. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCodeGenerator sets the verification code source. Defaults to UUIDCodes.
func WithCodeGenerator(gen CodeGenerator) Option {
	return func(s *settings) {
		if gen != nil {
			s.codes = gen
		}
	}
}

// WithCodeTTL overrides how long issued codes stay valid. Intended for tests;
// production code uses CodeTTL.
func WithCodeTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.codeTTL = ttl
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder sets the operation outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(s *settings) {
		if r != nil {
			s.recorder = r
		}
	}
}

// begin starts a traced operation. The returned func must be deferred with a
// pointer to the operation's error result.
func (s *settings) begin(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, span := tracer.Start(ctx, "account."+operation, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		result := "ok"
		if err := *errp; err != nil {
			result = ErrorCode(err)
			if result == "" {
				result = "error"
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		s.recorder.RecordOperation(operation, result)
		span.End()
	}
}
