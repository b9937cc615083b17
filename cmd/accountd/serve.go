// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/cobra"

	"github.com/holomush/accountd/internal/account"
	"github.com/holomush/accountd/internal/config"
	"github.com/holomush/accountd/internal/httpapi"
	"github.com/holomush/accountd/internal/logging"
	"github.com/holomush/accountd/internal/notify"
	"github.com/holomush/accountd/internal/observability"
	"github.com/holomush/accountd/internal/token"
)

// shutdownTimeout bounds graceful shutdown of every server.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd(opts *rootOptions, deps *ServeDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account HTTP API",
		Long: `Start the account HTTP API together with the metrics/health server
and, when configured, the gRPC health endpoint.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, opts, deps)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// loadConfig validates the config file, loads every layer and checks the result.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	path, err := config.ResolvePath(opts.configFile)
	if err != nil {
		return config.Config{}, err
	}
	if path != "" {
		if err := config.ValidateFile(path); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// runServe starts accountd and blocks until ctx ends or a server fails.
func runServe(ctx context.Context, cmd *cobra.Command, opts *rootOptions, deps *ServeDeps) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return oops.With("operation", "load config").Wrap(err)
	}

	logger := logging.SetDefault(serviceName, version, cfg.Log)
	logger.Info("starting accountd",
		"http_addr", cfg.Server.Addr,
		"notify_driver", cfg.Notify.Driver,
		"hasher", cfg.Hasher.Algorithm,
	)

	if cfg.AutoMigrate {
		if err := migrateUp(deps, cfg.Database.URL, logger); err != nil {
			return err
		}
	}

	db, repo, err := connect(ctx, deps, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readiness := func(ctx context.Context) error { return db.Ping(ctx) }

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, readiness)
		metrics = obsServer.Metrics()
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	transport, err := deps.TransportFactory(cfg.Notify, logger)
	if err != nil {
		stopAll(logger, obsServer)
		return oops.With("operation", "create notification transport").Wrap(err)
	}
	dispatcherOpts := []notify.DispatcherOption{notify.WithDispatcherLogger(logger)}
	if metrics != nil {
		dispatcherOpts = append(dispatcherOpts, notify.WithNotificationRecorder(metrics))
	}
	dispatcher := notify.NewDispatcher(transport, cfg.Notify.Workers, cfg.Notify.QueueSize, cfg.Notify.SendTimeout, dispatcherOpts...)

	apiServer, err := buildAPI(cfg, repo, dispatcher, metrics, logger)
	if err != nil {
		stopAll(logger, obsServer)
		closeNotifications(logger, dispatcher, transport)
		return err
	}
	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopAll(logger, obsServer)
		closeNotifications(logger, dispatcher, transport)
		return oops.With("operation", "start http server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "http")

	var healthServer *observability.HealthServer
	if cfg.Server.GRPCHealthAddr != "" {
		healthServer = observability.NewHealthServer(cfg.Server.GRPCHealthAddr, readiness, observability.DefaultHealthInterval)
		healthErrCh, err := healthServer.Start()
		if err != nil {
			stopAll(logger, apiServer, obsServer)
			closeNotifications(logger, dispatcher, transport)
			return oops.With("operation", "start grpc health server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, healthErrCh, "grpc-health")
		logger.Info("grpc health server started", "addr", healthServer.Addr())
	}

	cmd.Println("accountd started")
	logger.Info("accountd ready", "http_addr", apiServer.Addr())
	if deps.Ready != nil {
		deps.Ready(apiServer.Addr())
	}

	<-ctx.Done()
	logger.Info("shutting down...")

	stoppers := []stopper{apiServer}
	if healthServer != nil {
		stoppers = append(stoppers, healthServer)
	}
	stopAll(logger, append(stoppers, obsServer)...)
	closeNotifications(logger, dispatcher, transport)

	logger.Info("shutdown complete")
	return nil
}

// connect opens the database, retrying with exponential backoff.
func connect(ctx context.Context, deps *ServeDeps, cfg config.Config, logger *slog.Logger) (Database, account.Repository, error) {
	var (
		db      Database
		repo    account.Repository
		attempt int
	)
	backoff := retry.WithMaxRetries(deps.ConnectRetries, retry.NewExponential(deps.ConnectBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var err error
		db, repo, err = deps.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Warn("database not reachable", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, oops.With("operation", "connect to database").With("attempts", attempt).Wrap(err)
	}
	logger.Info("connected to database", "attempts", attempt)
	return db, repo, nil
}

func migrateUp(deps *ServeDeps, databaseURL string, logger *slog.Logger) error {
	m, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return err
	}
	defer closeMigrator(logger, m)
	if err := m.Up(); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}

// buildAPI wires the account services behind the HTTP API.
func buildAPI(cfg config.Config, repo account.Repository, notifier notify.Notifier, metrics *observability.Metrics, logger *slog.Logger) (*httpapi.Server, error) {
	hasher, err := account.NewHasher(cfg.Hasher)
	if err != nil {
		return nil, err
	}
	issuer, err := token.NewIssuer(cfg.Token)
	if err != nil {
		return nil, err
	}
	verifier, err := token.NewVerifier(cfg.Token)
	if err != nil {
		return nil, err
	}

	opts := []account.Option{account.WithLogger(logger)}
	apiOpts := []httpapi.Option{httpapi.WithLogger(logger)}
	if metrics != nil {
		opts = append(opts, account.WithRecorder(metrics))
		apiOpts = append(apiOpts, httpapi.WithRecorder(metrics))
	}

	lifecycle, err := account.NewLifecycle(repo, hasher, notifier, opts...)
	if err != nil {
		return nil, err
	}
	gateway, err := account.NewGateway(repo, hasher, issuer, opts...)
	if err != nil {
		return nil, err
	}
	admin, err := account.NewAdmin(repo, hasher, opts...)
	if err != nil {
		return nil, err
	}

	return httpapi.NewServer(cfg.Server, httpapi.Services{
		Auth:      gateway,
		Lifecycle: lifecycle,
		Admin:     admin,
		Verifier:  verifier,
	}, apiOpts...)
}

type stopper interface {
	Stop(ctx context.Context) error
}

// stopAll stops each non-nil server within shutdownTimeout.
func stopAll(logger *slog.Logger, servers ...stopper) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, s := range servers {
		if s == nil {
			continue
		}
		if err := s.Stop(ctx); err != nil {
			logger.Warn("error stopping server", "error", err)
		}
	}
}

func closeNotifications(logger *slog.Logger, dispatcher *notify.Dispatcher, transport notify.Transport) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := dispatcher.Close(ctx); err != nil {
		logger.Warn("notifications not drained", "error", err)
	}
	if err := transport.Close(); err != nil {
		logger.Warn("error closing notification transport", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
