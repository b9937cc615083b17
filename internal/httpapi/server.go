// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package httpapi exposes the account services over HTTP with fiber.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/account"
	"github.com/holomush/accountd/internal/token"
)

// Authenticator logs accounts in.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (account.LoginResult, error)
}

// Lifecycle drives registration, activation and password reset.
type Lifecycle interface {
	Register(ctx context.Context, email, password, name string) (ulid.ULID, error)
	CheckCode(ctx context.Context, id, code string) error
	RetryActivate(ctx context.Context, email string) (ulid.ULID, error)
	RetryPassword(ctx context.Context, email string) (account.ResetTicket, error)
	ChangePassword(ctx context.Context, email, code, password, confirm string) (ulid.ULID, error)
}

// Admin manages accounts directly.
type Admin interface {
	Create(ctx context.Context, in account.CreateInput) (ulid.ULID, error)
	List(ctx context.Context, q account.Query) (account.Page, error)
	Get(ctx context.Context, id string) (account.View, error)
	Update(ctx context.Context, id string, in account.UpdateInput) error
	Delete(ctx context.Context, id string) error
}

// TokenVerifier checks bearer tokens.
type TokenVerifier interface {
	Parse(value string) (token.Claims, error)
}

// Recorder counts served requests.
type Recorder interface {
	RecordHTTPRequest(route string, status int)
}

type nopRecorder struct{}

func (nopRecorder) RecordHTTPRequest(string, int) {}

// Config holds listener settings.
type Config struct {
	Addr         string        `koanf:"addr" json:"addr,omitempty"`
	ReadTimeout  time.Duration `koanf:"read_timeout" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration `koanf:"write_timeout" json:"write_timeout,omitempty"`
	// GRPCHealthAddr enables the grpc.health.v1 endpoint when set.
	GRPCHealthAddr string `koanf:"grpc_health_addr" json:"grpc_health_addr,omitempty"`
}

// DefaultConfig listens on :8080 with 10s timeouts.
func DefaultConfig() Config {
	return Config{Addr: ":8080", ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second}
}

// Server serves the account API.
type Server struct {
	app      *fiber.App
	cfg      Config
	logger   *slog.Logger
	recorder Recorder
	listener net.Listener
	running  atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder sets the request counter.
func WithRecorder(r Recorder) Option {
	return func(s *Server) {
		if r != nil {
			s.recorder = r
		}
	}
}

// Services bundles the handlers' collaborators.
type Services struct {
	Auth      Authenticator
	Lifecycle Lifecycle
	Admin     Admin
	Verifier  TokenVerifier
}

func (s Services) validate() error {
	switch {
	case s.Auth == nil:
		return oops.Code("HTTP_SERVER_INVALID").Errorf("authenticator is required")
	case s.Lifecycle == nil:
		return oops.Code("HTTP_SERVER_INVALID").Errorf("lifecycle is required")
	case s.Admin == nil:
		return oops.Code("HTTP_SERVER_INVALID").Errorf("admin is required")
	case s.Verifier == nil:
		return oops.Code("HTTP_SERVER_INVALID").Errorf("token verifier is required")
	}
	return nil
}

// NewServer builds the fiber app and registers all routes.
func NewServer(cfg Config, svc Services, opts ...Option) (*Server, error) {
	if err := svc.validate(); err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, logger: slog.Default(), recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(s)
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "accountd",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(s.observe)
	s.routes(svc)
	return s, nil
}

func (s *Server) routes(svc Services) {
	h := &handlers{svc: svc}
	guard := bearerGuard(svc.Verifier)

	auth := s.app.Group("/auth")
	auth.Post("/login", h.login)
	auth.Post("/register", h.register)
	auth.Post("/check-code", h.checkCode)
	auth.Post("/retry-active", h.retryActive)
	auth.Post("/retry-password", h.retryPassword)
	auth.Post("/change-password", h.changePassword)
	auth.Get("/profile", guard, h.profile)

	users := s.app.Group("/users", guard)
	users.Post("/", h.createUser)
	users.Get("/", h.listUsers)
	users.Get("/:id", h.getUser)
	users.Patch("/:id", h.updateUser)
	users.Delete("/:id", h.deleteUser)
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured address. The returned channel receives a
// serve error and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("http server already running")
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("HTTP_LISTEN_FAILED").With("addr", s.cfg.Addr).Wrap(err)
	}
	s.listener = ln

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.app.Listener(ln); err != nil {
			s.logger.Error("http server error", "error", err)
			errCh <- err
		}
	}()

	s.logger.Info("http server started", "addr", ln.Addr().String())
	return errCh, nil
}

// Stop drains in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return oops.With("operation", "shutdown_http_server").Wrap(err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// Addr returns the listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
