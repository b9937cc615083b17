// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/holomush/accountd/internal/account"
	"github.com/holomush/accountd/internal/account/postgres"
	"github.com/holomush/accountd/internal/notify"
	"github.com/holomush/accountd/internal/observability"
	"github.com/holomush/accountd/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil or zero values use their default implementations.
type ServeDeps struct {
	// Connect opens the database and returns the account repository over it.
	// Default: store.Open with a postgres.Repository
	Connect func(ctx context.Context, cfg store.DatabaseConfig) (Database, account.Repository, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// TransportFactory creates the notification transport.
	// Default: notify.New
	TransportFactory func(cfg notify.Config, logger *slog.Logger) (notify.Transport, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// ConnectRetries bounds startup connection attempts after the first.
	// Default: 5
	ConnectRetries uint64

	// ConnectBackoff is the first retry delay; later delays double.
	// Default: 500ms
	ConnectBackoff time.Duration

	// Ready, when set, receives the HTTP API address once serving.
	Ready func(apiAddr string)
}

// Database wraps the methods serve uses from pgxpool.Pool.
type Database interface {
	Ping(ctx context.Context) error
	Close()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.Connect == nil {
		out.Connect = func(ctx context.Context, cfg store.DatabaseConfig) (Database, account.Repository, error) {
			pool, err := store.Open(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			return pool, postgres.NewRepository(pool), nil
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = newMigrator
	}
	if out.TransportFactory == nil {
		out.TransportFactory = notify.New
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if out.ConnectRetries == 0 {
		out.ConnectRetries = 5
	}
	if out.ConnectBackoff == 0 {
		out.ConnectBackoff = 500 * time.Millisecond
	}
	return &out
}

func newMigrator(databaseURL string) (Migrator, error) {
	return store.NewMigrator(databaseURL)
}
