// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store owns the PostgreSQL connection pool and schema migrations.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
)

// DatabaseConfig configures the connection pool.
type DatabaseConfig struct {
	URL            string        `koanf:"url" json:"url,omitempty" jsonschema:"description=PostgreSQL connection URL"`
	MaxConns       int32         `koanf:"max_conns" json:"max_conns,omitempty" jsonschema:"minimum=0"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" json:"connect_timeout,omitempty"`
}

// DefaultDatabaseConfig returns pool defaults. URL is left empty.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{MaxConns: 10, ConnectTimeout: 5 * time.Second}
}

// Validate checks the pool settings.
func (c DatabaseConfig) Validate() error {
	if c.URL == "" {
		return oops.Code("DATABASE_CONFIG_INVALID").With("key", "database.url").Errorf("database url is required")
	}
	if c.MaxConns < 0 {
		return oops.Code("DATABASE_CONFIG_INVALID").With("key", "database.max_conns").Errorf("max_conns must be non-negative, got %d", c.MaxConns)
	}
	if c.ConnectTimeout < 0 {
		return oops.Code("DATABASE_CONFIG_INVALID").With("key", "database.connect_timeout").Errorf("connect_timeout must be non-negative")
	}
	return nil
}

// PoolConfig translates c into a pgxpool configuration.
func (c DatabaseConfig) PoolConfig() (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(c.URL)
	if err != nil {
		return nil, oops.Code("DATABASE_CONFIG_INVALID").With("key", "database.url").Wrap(err)
	}
	if c.MaxConns > 0 {
		poolCfg.MaxConns = c.MaxConns
	}
	if c.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = c.ConnectTimeout
	}
	return poolCfg, nil
}

// Open connects a pool and verifies it with a ping. The caller owns the pool.
func Open(ctx context.Context, cfg DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DATABASE_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, oops.Code("DATABASE_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return pool, nil
}
