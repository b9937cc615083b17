// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported alongside "".
const ServiceName = "accountd"

// DefaultHealthInterval is how often readiness is re-evaluated.
const DefaultHealthInterval = 5 * time.Second

// HealthServer exposes the standard grpc.health.v1 service. Its serving
// status follows a ReadinessChecker.
type HealthServer struct {
	addr     string
	check    ReadinessChecker
	interval time.Duration

	health   *health.Server
	grpc     *grpc.Server
	listener net.Listener

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHealthServer creates a health server on addr that polls check every interval.
func NewHealthServer(addr string, check ReadinessChecker, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &HealthServer{addr: addr, check: check, interval: interval, health: hs, grpc: srv}
}

// Sync evaluates readiness once and publishes the result.
func (h *HealthServer) Sync(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if h.check != nil {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := h.check(checkCtx)
		cancel()
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
	return status
}

// Start listens and serves until Stop. The returned channel reports serve errors.
func (h *HealthServer) Start() (<-chan error, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return nil, oops.Errorf("grpc health server already running")
	}

	listener, err := net.Listen("tcp", h.addr)
	if err != nil {
		return nil, oops.With("addr", h.addr).Wrap(err)
	}
	h.listener = listener

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})
	h.Sync(ctx)
	go h.poll(ctx)

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := h.grpc.Serve(listener); err != nil && err != grpc.ErrServerStopped {
			slog.Error("grpc health server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("grpc health server started", "addr", listener.Addr().String())
	return errCh, nil
}

func (h *HealthServer) poll(ctx context.Context) {
	defer close(h.done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Sync(ctx)
		}
	}
}

// Stop marks the service NOT_SERVING and drains in-flight RPCs until ctx ends.
func (h *HealthServer) Stop(ctx context.Context) error {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel = nil
	h.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	<-done
	h.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		h.grpc.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		h.grpc.Stop()
		<-stopped
	}
	slog.Info("grpc health server stopped")
	return nil
}

// Addr returns the listen address, or "" before Start.
func (h *HealthServer) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return ""
}
